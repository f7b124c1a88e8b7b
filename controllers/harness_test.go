package controllers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/templates"
	"github.com/yeremiapane/restaurant-pos/upstream"
	"github.com/yeremiapane/restaurant-pos/utils"
	"gorm.io/gorm"
)

const (
	adminUser = "admin"
	adminPass = "secret123"
)

type harness struct {
	db  *gorm.DB
	api *httptest.Server
	app *gin.Engine
}

// newHarness runs the reference upstream on an in-memory database and the
// web app in front of it.
func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()

	db, err := config.InitDB("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, upstream.Migrate(db))
	require.NoError(t, upstream.SeedAdmin(db, "admin@example.com", adminUser, adminPass))

	srv := upstream.NewServer(db, config.UpstreamConfig{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		WSTokenTTL: time.Hour,
	})
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)

	cfg := config.Config{
		Env:             "development",
		APIURL:          api.URL,
		WSURL:           "ws" + strings.TrimPrefix(api.URL, "http") + "/ws",
		SessionTTL:      time.Minute,
		UpstreamTimeout: 5 * time.Second,
		LoginRate:       1000,
	}
	backend := services.NewBackendService(cfg.APIURL, cfg.UpstreamTimeout)
	auth := services.NewAuthService(backend, services.NewMemorySessionStore(cfg.SessionTTL))

	return &harness{
		db:  db,
		api: api,
		app: router.SetupRouter(cfg, auth, notify.NewCenter(), templates.MustParse()),
	}
}

// browser keeps cookies between requests like a real one.
type browser struct {
	t       *testing.T
	app     http.Handler
	cookies map[string]*http.Cookie
}

func (h *harness) browser(t *testing.T) *browser {
	return &browser{t: t, app: h.app, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.app.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.send(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.send(req)
}

func (b *browser) json(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return b.send(req)
}

func (b *browser) login(username, password string) {
	b.t.Helper()
	w := b.post("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(b.t, http.StatusSeeOther, w.Code, w.Body.String())
	require.Equal(b.t, "/dashboard", w.Header().Get("Location"))
}

// mustPost submits a dashboard form that is expected to redirect.
func (b *browser) mustPost(path string, form url.Values) {
	b.t.Helper()
	w := b.post(path, form)
	require.Equal(b.t, http.StatusSeeOther, w.Code, w.Body.String())
}

// seedOrder creates through the dashboard a table, a dish type, a dish
// priced 12.50, a customer, a currency at rate 1 and an order for 2 dishes.
func seedOrder(b *browser) {
	b.t.Helper()
	b.mustPost("/dashboard/tables", url.Values{"name": {"Terraza"}, "state": {"available"}})
	b.mustPost("/dashboard/dish-types", url.Values{"name": {"Principal"}})
	b.mustPost("/dashboard/dishes", url.Values{"name": {"Pabellón"}, "price": {"12.50"}, "type_id": {"1"}})
	b.mustPost("/dashboard/customers", url.Values{
		"national_id_prefix": {"V"}, "national_id_number": {"12345678"},
		"name": {"Ana"}, "lastname": {"Pérez"},
	})
	b.mustPost("/dashboard/currencies", url.Values{"name": {"USD"}, "exchange_rate": {"1"}})
	b.mustPost("/dashboard/orders", url.Values{
		"table_id": {"1"}, "customer_id": {"1"}, "state": {"pending"},
		"items_dish": {"1", ""}, "items_quantity": {"2", ""},
	})
}
