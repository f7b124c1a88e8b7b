package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const (
	adminUser = "admin"
	adminPass = "secret123"
)

func setupTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()

	db, err := config.InitDB("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, SeedAdmin(db, "admin@example.com", adminUser, adminPass))

	s := NewServer(db, config.UpstreamConfig{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		WSTokenTTL: time.Hour,
	})
	return s, s.Router()
}

func login(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func do(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// seedOrder creates a table, a dish and an order of 2 of that dish.
func seedOrder(t *testing.T, r http.Handler, token string, customerID *uint) models.Order {
	t.Helper()
	w := do(t, r, http.MethodPost, "/tables", token, gin.H{"name": "Mesa 1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	table := decode[models.Table](t, w)
	assert.Equal(t, models.TableAvailable, table.State)

	w = do(t, r, http.MethodPost, "/dishes_types", token, gin.H{"name": "Principal"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dishType := decode[models.DishType](t, w)

	w = do(t, r, http.MethodPost, "/dishes", token, gin.H{"name": "Pabellón", "price": 12.5, "type_id": dishType.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dish := decode[models.Dish](t, w)
	require.NotNil(t, dish.Type)
	assert.Equal(t, "Principal", dish.Type.Name)

	body := gin.H{
		"table_id": table.ID,
		"items":    []gin.H{{"dish_id": dish.ID, "quantity": 2}},
	}
	if customerID != nil {
		body["customer_id"] = *customerID
	}
	w = do(t, r, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Order](t, w)
}

func TestIssueTokenAndValidate(t *testing.T) {
	s, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)
	assert.NotEmpty(t, token)

	w := do(t, r, http.MethodGet, "/validate_token", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := decode[models.Session](t, w)
	assert.Equal(t, adminUser, session.User.Username)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
	assert.Empty(t, session.User.Password)

	claims, err := s.Auth.Tokens.ParseToken(session.WSToken, utils.TokenWS)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	// The WS token is not an access token.
	w = do(t, r, http.MethodGet, "/validate_token", session.WSToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssueTokenRejectsBadCredentials(t *testing.T) {
	_, r := setupTestServer(t)

	form := url.Values{"username": {adminUser}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "detail")
}

func TestRequireUser(t *testing.T) {
	_, r := setupTestServer(t)

	w := do(t, r, http.MethodGet, "/tables", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodGet, "/tables", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDuplicateNameConflict(t *testing.T) {
	_, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)

	w := do(t, r, http.MethodPost, "/currencies", token, gin.H{"name": "Bs", "exchange_rate": 36.5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/currencies", token, gin.H{"name": "Bs", "exchange_rate": 40})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestValidationFailure(t *testing.T) {
	_, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)

	w := do(t, r, http.MethodPost, "/currencies", token, gin.H{"name": "Bs", "exchange_rate": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/dishes", token, gin.H{"name": "Arepa", "price": 3, "type_id": 99})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUnknownIDNotFound(t *testing.T) {
	_, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)

	for _, path := range []string{"/dishes/999", "/orders/999", "/customers/abc"} {
		w := do(t, r, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := do(t, r, http.MethodDelete, "/tables/999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteLinkedCustomerConflict(t *testing.T) {
	_, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)

	w := do(t, r, http.MethodPost, "/customers", token, gin.H{
		"national_id": "V-12345678", "name": "Ana", "lastname": "Pérez",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	customer := decode[models.Customer](t, w)

	order := seedOrder(t, r, token, &customer.ID)
	require.NotNil(t, order.Customer)

	w = do(t, r, http.MethodDelete, fmt.Sprintf("/customers/%d", customer.ID), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodDelete, fmt.Sprintf("/orders/%d", order.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodDelete, fmt.Sprintf("/customers/%d", customer.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOrderPartialUpdateAndCurrencies(t *testing.T) {
	_, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)

	order := seedOrder(t, r, token, nil)
	assert.Equal(t, models.OrderPending, order.State)
	assert.InDelta(t, 25.0, order.Total, 0.001)
	assert.False(t, order.Date.IsZero())

	w := do(t, r, http.MethodPost, "/currencies", token, gin.H{"name": "USD", "exchange_rate": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	usd := decode[models.Currency](t, w)

	path := fmt.Sprintf("/orders/%d/currencies", order.ID)
	w = do(t, r, http.MethodPut, path, token, []gin.H{{"currency_id": usd.ID, "quantity": 10}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Order](t, w)
	require.Len(t, updated.Currencies, 1)
	assert.Equal(t, 10.0, updated.Currencies[0].Quantity)

	// Upsert replaces the quantity of the existing line.
	w = do(t, r, http.MethodPut, path, token, []gin.H{{"currency_id": usd.ID, "quantity": 15}})
	require.Equal(t, http.StatusOK, w.Code)
	updated = decode[models.Order](t, w)
	require.Len(t, updated.Currencies, 1)
	assert.Equal(t, 15.0, updated.Currencies[0].Quantity)

	w = do(t, r, http.MethodPut, path, token, []gin.H{{"currency_id": usd.ID, "quantity": 0}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.Order](t, w).Currencies)

	w = do(t, r, http.MethodPut, fmt.Sprintf("/orders/%d", order.ID), token, gin.H{"state": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated = decode[models.Order](t, w)
	assert.Equal(t, models.OrderCompleted, updated.State)
	assert.Len(t, updated.Items, 1)
	assert.Equal(t, order.TableID, updated.TableID)

	w = do(t, r, http.MethodPut, fmt.Sprintf("/orders/%d", order.ID), token, gin.H{"state": "lost"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodDelete, fmt.Sprintf("/currencies/%d", usd.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSalesReport(t *testing.T) {
	_, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)

	order := seedOrder(t, r, token, nil)
	today := time.Now().Format(dateLayout)
	path := "/reports/sales?start_date=" + today + "&end_date=" + today

	w := do(t, r, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[models.SalesReport](t, w)
	assert.Empty(t, report.Orders)
	require.Len(t, report.Days, 1)

	w = do(t, r, http.MethodPut, fmt.Sprintf("/orders/%d", order.ID), token, gin.H{"state": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report = decode[models.SalesReport](t, w)
	assert.Len(t, report.Orders, 1)
	assert.InDelta(t, 25.0, report.Total, 0.001)
	assert.Equal(t, today, report.Days[0].Date)
	assert.Equal(t, 1, report.Days[0].Orders)

	w = do(t, r, http.MethodGet, "/reports/sales?start_date=2024-02-01&end_date=2024-01-01", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUsersAreAdminOnlyAndHidePasswords(t *testing.T) {
	_, r := setupTestServer(t)
	token := login(t, r, adminUser, adminPass)

	w := do(t, r, http.MethodPost, "/users", token, gin.H{
		"email": "mesero@example.com", "username": "mesero", "password": "mesero123", "role": "waiter",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	waiter := decode[models.User](t, w)
	assert.Empty(t, waiter.Password)

	// Updating without a password keeps the old one.
	w = do(t, r, http.MethodPut, fmt.Sprintf("/users/%d", waiter.ID), token, gin.H{"role": "cashier"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RoleCashier, decode[models.User](t, w).Role)

	waiterToken := login(t, r, "mesero", "mesero123")
	w = do(t, r, http.MethodGet, "/users", waiterToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodGet, "/tables", waiterToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/users", token, gin.H{
		"email": "x@example.com", "username": "x", "password": "x", "role": "boss",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
