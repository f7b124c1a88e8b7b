package controllers_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/models"
)

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	w := b.get("/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = b.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="username"`)

	w = b.post("/login", url.Values{"username": {adminUser}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Usuario o contraseña incorrectos")

	w = b.post("/login", url.Values{"username": {adminUser}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	b.login(adminUser, adminPass)

	w = b.get("/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = b.get("/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Pendiente")

	w = b.get("/logout")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = b.get("/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestListSearchAndPagination(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)

	for i := 1; i <= 7; i++ {
		b.mustPost("/dashboard/tables", url.Values{"name": {fmt.Sprintf("Mesa %d", i)}, "state": {"available"}})
	}

	w := b.get("/dashboard/tables")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Página 1 de 2 (7)")
	assert.Contains(t, body, "Mesa 5")
	assert.NotContains(t, body, "Mesa 6")

	w = b.get("/dashboard/tables?page=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mesa 7")
	assert.Contains(t, w.Body.String(), "Página 2 de 2 (7)")

	w = b.get("/dashboard/tables?q=mesa+7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Página 1 de 1 (1)")

	w = b.get("/dashboard/tables?q=nada")
	assert.Contains(t, w.Body.String(), "Sin resultados")
}

func TestCreateDuplicateRerendersForm(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)

	b.mustPost("/dashboard/currencies", url.Values{"name": {"USD"}, "exchange_rate": {"1"}})

	w := b.get("/dashboard/currencies")
	assert.Contains(t, w.Body.String(), "Moneda creado correctamente")

	w = b.post("/dashboard/currencies", url.Values{"name": {"USD"}, "exchange_rate": {"2"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Moneda ya existe")
	assert.Contains(t, w.Body.String(), `value="USD"`)
}

func TestFormValidationRerendersForm(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)

	w := b.post("/dashboard/currencies", url.Values{"name": {"Bs"}, "exchange_rate": {"0"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "debe ser mayor que cero")

	w = b.post("/dashboard/orders", url.Values{"table_id": {"1"}, "state": {"pending"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Agregue al menos un elemento")
}

func TestEditUpdatesEntity(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)

	b.mustPost("/dashboard/tables", url.Values{"name": {"Barra"}, "state": {"available"}})

	w := b.get("/dashboard/tables/1/edit")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="Barra"`)

	b.mustPost("/dashboard/tables/1", url.Values{"name": {"Barra"}, "state": {"occupied"}})

	var table models.Table
	require.NoError(t, h.db.First(&table, 1).Error)
	assert.Equal(t, models.TableOccupied, table.State)

	w = b.get("/dashboard/tables/99/edit")
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestOrderMutationsAnnounceBroadcast(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)
	seedOrder(b)

	w := b.post("/dashboard/orders/1", url.Values{
		"table_id": {"1"}, "state": {"made"},
		"items_dish": {"1"}, "items_quantity": {"3"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard/orders?broadcast=1", w.Header().Get("Location"))

	w = b.get("/dashboard/orders?broadcast=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `var broadcast =\s*true\s*;`, w.Body.String())

	w = b.get("/dashboard/orders")
	assert.Regexp(t, `var broadcast =\s*false\s*;`, w.Body.String())

	var order models.Order
	require.NoError(t, h.db.Preload("Items").First(&order, 1).Error)
	assert.Equal(t, models.OrderMade, order.State)
	assert.Nil(t, order.CustomerID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
}

func TestDeleteLinkedCustomerShowsToast(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)
	seedOrder(b)

	w := b.post("/dashboard/customers/1/delete", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard/customers", w.Header().Get("Location"))

	w = b.get("/dashboard/customers")
	assert.Contains(t, w.Body.String(), "No se puede eliminar Cliente con datos vinculados")
	assert.Contains(t, w.Body.String(), "V-12345678")

	w = b.post("/dashboard/orders/1/delete", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard/orders?broadcast=1", w.Header().Get("Location"))

	b.mustPost("/dashboard/customers/1/delete", nil)
	w = b.get("/dashboard/customers")
	assert.Contains(t, w.Body.String(), "Cliente eliminado correctamente")
	assert.NotContains(t, w.Body.String(), "V-12345678")
}

func TestRoleRedirects(t *testing.T) {
	h := newHarness(t)
	admin := h.browser(t)
	admin.login(adminUser, adminPass)
	admin.mustPost("/dashboard/users", url.Values{
		"username": {"mesero"}, "email": {"mesero@example.com"}, "password": {"mesero123"}, "role": {"waiter"},
	})

	waiter := h.browser(t)
	waiter.login("mesero", "mesero123")

	for _, path := range []string{"/dashboard/users", "/dashboard/dishes", "/dashboard/dish-types/new"} {
		w := waiter.get(path)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"), path)
	}

	w := waiter.get("/dashboard/orders")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `href="/dashboard/users"`)
}

func TestLiveReloadAlertsBeforeTakeoverLogout(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)

	w := b.get("/dashboard/orders")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `alert("Se inició sesión con su usuario en otro dispositivo.`)
	assert.Regexp(t, `msg\.status === 409\) \{ sessionReplaced\(\)`, body)
	assert.Regexp(t, `ev\.code === 1000\) \{ sessionReplaced\(\)`, body)
}

func TestBillingFlow(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)
	seedOrder(b)

	w := b.get("/dashboard/orders/1/billing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "25.00 USD")

	w = b.post("/dashboard/orders/1/billing", url.Values{"action": {"add"}, "currency_id": {"1"}, "quantity": {"10"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "15.00 USD")
	assert.Contains(t, w.Body.String(), `name="line_quantity" value="10"`)

	w = b.post("/dashboard/orders/1/billing", url.Values{
		"line_currency": {"1"}, "line_quantity": {"10"},
		"action": {"add"}, "currency_id": {"1"}, "quantity": {"50"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "el pago excede el monto pendiente")

	w = b.post("/dashboard/orders/1/billing", url.Values{
		"line_currency": {"1"}, "line_quantity": {"10"},
		"action": {"submit"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "se requiere confirmación")

	w = b.post("/dashboard/orders/1/billing", url.Values{
		"line_currency": {"1"}, "line_quantity": {"10"},
		"action": {"submit"}, "confirmed": {"1"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/dashboard/orders?broadcast=1", w.Header().Get("Location"))

	var order models.Order
	require.NoError(t, h.db.Preload("Currencies").First(&order, 1).Error)
	assert.Equal(t, models.OrderCompleted, order.State)
	require.Len(t, order.Currencies, 1)
	assert.Equal(t, 10.0, order.Currencies[0].Quantity)

	// Removing the saved line sends a zero quantity upstream.
	w = b.post("/dashboard/orders/1/billing", url.Values{
		"line_currency": {"1"}, "line_quantity": {"10"},
		"action": {"remove"}, "currency_id": {"1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = b.post("/dashboard/orders/1/billing", url.Values{"action": {"submit"}, "confirmed": {"1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	var lines int64
	require.NoError(t, h.db.Model(&models.OrderCurrencyItem{}).Count(&lines).Error)
	assert.Zero(t, lines)
}

func TestBillingOverpaidOrderCanBeEdited(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)
	seedOrder(b)

	w := b.post("/dashboard/orders/1/billing", url.Values{
		"line_currency": {"1"}, "line_quantity": {"25"},
		"action": {"submit"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	// One dish taken off after billing: 25 USD saved against 12.50.
	require.NoError(t, h.db.Model(&models.OrderItem{}).Where("order_id = ?", 1).Update("quantity", 1).Error)

	w = b.get("/dashboard/orders/1/billing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "-12.50 USD")

	w = b.post("/dashboard/orders/1/billing", url.Values{
		"line_currency": {"1"}, "line_quantity": {"25"},
		"action": {"remove"}, "currency_id": {"1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), `name="line_quantity"`)
	assert.NotContains(t, w.Body.String(), "-12.50 USD")
	assert.Contains(t, w.Body.String(), "12.50 USD")

	w = b.post("/dashboard/orders/1/billing", url.Values{
		"action": {"add"}, "currency_id": {"1"}, "quantity": {"12.5"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = b.post("/dashboard/orders/1/billing", url.Values{
		"line_currency": {"1"}, "line_quantity": {"12.5"},
		"action": {"submit"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, h.db.Preload("Currencies").First(&order, 1).Error)
	require.Len(t, order.Currencies, 1)
	assert.Equal(t, 12.5, order.Currencies[0].Quantity)
}

func TestDocuments(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login(adminUser, adminPass)
	seedOrder(b)

	w := b.get("/dashboard/orders/1/invoice.pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = b.get("/dashboard/orders/99/invoice.pdf")
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = b.get("/dashboard/reports")
	require.Equal(t, http.StatusOK, w.Code)

	today := time.Now().Format("2006-01-02")
	w = b.get("/dashboard/reports/sales.pdf?start_date=" + today + "&end_date=" + today)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	assert.True(t, strings.Contains(w.Header().Get("Content-Disposition"), "ventas_"))

	w = b.get("/dashboard/reports/sales.pdf?start_date=2024-02-01&end_date=2024-01-01")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard/reports", w.Header().Get("Location"))
}
