package upstream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const writeWait = 5 * time.Second

// client is one authenticated connection. gorilla allows a single writer at
// a time, hence the lock.
type client struct {
	conn   *websocket.Conn
	userID uint
	mu     sync.Mutex
}

func (cl *client) write(data []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.conn.WriteMessage(websocket.TextMessage, data)
}

func (cl *client) close(code int, text string) {
	_ = cl.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	_ = cl.conn.Close()
}

// Hub keeps one connection per user and relays every frame a client sends to
// all the others.
type Hub struct {
	Tokens *utils.TokenIssuer
	// AuthTimeout bounds the wait for the token frame.
	AuthTimeout time.Duration

	upgrader websocket.Upgrader
	clients  map[uint]*client
	mutex    sync.Mutex
}

func NewHub(tokens *utils.TokenIssuer) *Hub {
	return &Hub{
		Tokens:      tokens,
		AuthTimeout: 10 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[uint]*client),
	}
}

// register stores cl and returns the connection it replaces, if any.
func (h *Hub) register(cl *client) *client {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	old := h.clients[cl.userID]
	h.clients[cl.userID] = cl
	return old
}

func (h *Hub) unregister(cl *client) {
	h.mutex.Lock()
	if h.clients[cl.userID] == cl {
		delete(h.clients, cl.userID)
	}
	h.mutex.Unlock()
	_ = cl.conn.Close()
}

// Broadcast sends data to every client except from.
func (h *Hub) Broadcast(data []byte, from *client) {
	h.mutex.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		if cl != from {
			targets = append(targets, cl)
		}
	}
	h.mutex.Unlock()

	for _, cl := range targets {
		if err := cl.write(data); err != nil {
			utils.ErrorLogger.Printf("WS write to user %d: %v", cl.userID, err)
			h.unregister(cl)
		}
	}
}

// Count returns the number of connected users.
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// ServeWS handles GET /ws. The first frame must be a WS token; a bad one is
// answered with close code 1008. A second connection of the same user takes
// over: the old one receives {"status":409} and close code 1000.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("WS upgrade: %v", err)
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(h.AuthTimeout))
	_, token, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return
	}
	claims, err := h.Tokens.ParseToken(string(token), utils.TokenWS)
	if err != nil {
		utils.InfoLogger.Printf("WS rejected from %s: %v", c.ClientIP(), err)
		(&client{conn: conn}).close(websocket.ClosePolicyViolation, "Token Invalido")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	cl := &client{conn: conn, userID: claims.UserID}
	if old := h.register(cl); old != nil {
		utils.InfoLogger.Printf("WS session of user %d replaced", claims.UserID)
		_ = old.write([]byte(`{"status":409}`))
		old.close(websocket.CloseNormalClosure, "session replaced")
	}
	utils.InfoLogger.Printf("WS user %d connected", claims.UserID)

	defer h.unregister(cl)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				utils.ErrorLogger.Printf("WS user %d: %v", cl.userID, err)
			}
			return
		}
		h.Broadcast(data, cl)
	}
}
