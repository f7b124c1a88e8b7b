// Package wsclient keeps one WebSocket connection to the order notification
// hub open, re-dialing with capped exponential backoff when it drops.
//
// Life cycle: Idle -> Connecting -> Open -> (Backoff(n) -> Connecting ...)
// and finally Failed once MaxAttempts reconnects in a row did not open.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// MarkerUpdateOrder is the broadcast payload meaning "orders changed,
// refetch".
const MarkerUpdateOrder = "UpdateOrder"

const (
	DefaultBaseDelay   = 3 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 5

	// closeSessionReplaced is sent by the hub when the same user opened a
	// newer connection elsewhere.
	closeSessionReplaced = websocket.CloseNormalClosure
	closeReload          = websocket.ClosePolicyViolation

	messageLogSize = 100
)

var (
	ErrSessionReplaced = errors.New("sesión iniciada en otro dispositivo")
	ErrReload          = errors.New("connection rejected by policy, reload required")
	ErrGaveUp          = errors.New("no se pudo reconectar con el servidor de notificaciones")
	ErrNotConnected    = errors.New("websocket not connected")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateBackoff
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Message is one frame received from the hub.
type Message struct {
	Raw     string `json:"-"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"status,omitempty"`
}

type Options struct {
	URL string
	// Token is sent as the first raw text frame after the handshake.
	Token  string
	Dialer *websocket.Dialer
	Header http.Header

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	// After replaces time.After; tests use it to skip the waiting.
	After func(time.Duration) <-chan time.Time
	// OnStateChange is called on every transition with the current reconnect
	// attempt (0 outside Backoff/Failed).
	OnStateChange func(State, int)
}

type Client struct {
	opts Options

	mu      sync.Mutex
	state   State
	attempt int
	conn    *websocket.Conn
	log     []Message
	lastErr error

	writeMu sync.Mutex
	updates chan struct{}
}

func New(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.After == nil {
		opts.After = time.After
	}
	return &Client{opts: opts, updates: make(chan struct{}, 1)}
}

// Delay is the wait before reconnect attempt n (1-based): base*2^(n-1),
// capped at max.
func Delay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// State returns the current state and reconnect attempt.
func (c *Client) State() (State, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.attempt
}

// Err is the persistent error once the client gave up, nil otherwise.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Messages returns a copy of the most recent frames received.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.log))
	copy(out, c.log)
	return out
}

// Updates fires (coalesced) whenever an UpdateOrder broadcast arrives.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

// Send writes v as a JSON text frame.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Broadcast tells the other dashboards that orders changed.
func (c *Client) Broadcast() error {
	return c.Send(map[string]string{"message": MarkerUpdateOrder})
}

func (c *Client) setState(s State, attempt int) {
	c.mu.Lock()
	c.state = s
	c.attempt = attempt
	cb := c.opts.OnStateChange
	c.mu.Unlock()
	if cb != nil {
		cb(s, attempt)
	}
}

// Run connects and keeps the connection alive until ctx is cancelled or a
// terminal condition is reached:
//
//   - ErrSessionReplaced: close code 1000 or a {"status":409} frame; the
//     caller should log the user out.
//   - ErrReload: close code 1008; the caller should rebuild its view.
//   - ErrGaveUp: MaxAttempts reconnects failed in a row.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		opened, err := c.session(ctx, attempt)
		if ctx.Err() != nil {
			c.setState(StateIdle, 0)
			return ctx.Err()
		}
		if errors.Is(err, ErrSessionReplaced) || errors.Is(err, ErrReload) {
			utils.InfoLogger.Printf("WebSocket closed: %v", err)
			c.setState(StateIdle, 0)
			return err
		}

		if opened {
			attempt = 0
		}
		attempt++
		if attempt > c.opts.MaxAttempts {
			utils.ErrorLogger.Printf("WebSocket giving up after %d attempts: %v", c.opts.MaxAttempts, err)
			c.mu.Lock()
			c.lastErr = ErrGaveUp
			c.mu.Unlock()
			c.setState(StateFailed, c.opts.MaxAttempts)
			return ErrGaveUp
		}

		delay := Delay(c.opts.BaseDelay, c.opts.MaxDelay, attempt)
		utils.InfoLogger.Printf("WebSocket dropped (%v), reconnect %d/%d in %s", err, attempt, c.opts.MaxAttempts, delay)
		c.setState(StateBackoff, attempt)

		select {
		case <-ctx.Done():
			c.setState(StateIdle, 0)
			return ctx.Err()
		case <-c.opts.After(delay):
		}
	}
}

// session dials, authenticates and reads until the connection ends. opened
// reports whether the handshake succeeded.
func (c *Client) session(ctx context.Context, attempt int) (opened bool, err error) {
	c.setState(StateConnecting, attempt)

	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(c.opts.Token)); err != nil {
		return true, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()
	c.setState(StateOpen, 0)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, classify(err)
		}
		if c.handle(data) {
			return true, ErrSessionReplaced
		}
	}
}

// handle records one frame and reports whether it was a takeover signal.
func (c *Client) handle(data []byte) bool {
	msg := Message{Raw: string(data)}
	if err := json.Unmarshal(data, &msg); err != nil {
		utils.InfoLogger.Debugf("Ignoring non JSON frame: %q", data)
	}
	if msg.Status == http.StatusConflict {
		return true
	}

	c.mu.Lock()
	c.log = append(c.log, msg)
	if len(c.log) > messageLogSize {
		c.log = c.log[len(c.log)-messageLogSize:]
	}
	c.mu.Unlock()

	if msg.Message == MarkerUpdateOrder {
		select {
		case c.updates <- struct{}{}:
		default:
		}
	}
	return false
}

func classify(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case closeSessionReplaced:
			return ErrSessionReplaced
		case closeReload:
			return ErrReload
		}
	}
	return err
}
