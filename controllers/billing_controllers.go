package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/apiclient"
	"github.com/yeremiapane/restaurant-pos/billing"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type billingCurrency struct {
	ID        uint
	Name      string
	Rate      string
	Remaining string
}

type billingLine struct {
	CurrencyID uint
	Name       string
	// Quantity is the exact value carried between requests.
	Quantity string
	Amount   string
}

type billingData struct {
	OrderID           uint
	Table             string
	State             string
	Total             string
	Action            string
	Currencies        []billingCurrency
	Lines             []billingLine
	NeedsConfirmation bool
}

func (dc *DashboardController) orders(c *gin.Context) *apiclient.Resource[models.Order] {
	return apiclient.NewResource[models.Order]("Orden", "/orders", dc.transport(c), dc.notifier(c))
}

// loadBill fetches the order and the currencies. It answers the request
// itself (redirect) when the bill cannot be built.
func (dc *DashboardController) loadBill(c *gin.Context) (*models.Order, *billing.Bill, bool) {
	ctx := c.Request.Context()
	order, err := dc.orders(c).Get(ctx, c.Param("id"), nil)
	if dc.signedOut(c, err) {
		return nil, nil, false
	}
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/dashboard/orders")
		return nil, nil, false
	}
	if order == nil {
		dc.notifier(c).Notify("Orden no encontrada", notify.Warning)
		c.Redirect(http.StatusSeeOther, "/dashboard/orders")
		return nil, nil, false
	}

	currencies, err := apiclient.NewResource[models.Currency]("Moneda", "/currencies", dc.transport(c), dc.notifier(c)).List(ctx, nil)
	if dc.signedOut(c, err) {
		return nil, nil, false
	}
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/dashboard/orders")
		return nil, nil, false
	}
	return order, billing.NewBill(*order, currencies), true
}

func (dc *DashboardController) renderBill(c *gin.Context, status int, order *models.Order, bill *billing.Bill) {
	data := billingData{
		OrderID:           order.ID,
		Table:             fmt.Sprintf("#%d", order.TableID),
		State:             order.State,
		Total:             strconv.FormatFloat(utils.Round2(bill.Total), 'f', 2, 64),
		Action:            fmt.Sprintf("/dashboard/orders/%d/billing", order.ID),
		NeedsConfirmation: bill.NeedsConfirmation(),
	}
	if order.Table != nil {
		data.Table = order.Table.Name
	}
	for _, s := range orderStates {
		if s.Value == order.State {
			data.State = s.Label
		}
	}
	for _, cur := range bill.Currencies() {
		bc := billingCurrency{
			ID:   cur.ID,
			Name: cur.Name,
			Rate: strconv.FormatFloat(cur.ExchangeRate, 'f', -1, 64),
		}
		if remaining, err := bill.Remaining(cur.ID); err == nil {
			bc.Remaining = utils.FormatMoney(remaining, cur.Name)
		}
		data.Currencies = append(data.Currencies, bc)
	}
	for _, l := range bill.Lines() {
		data.Lines = append(data.Lines, billingLine{
			CurrencyID: l.CurrencyID,
			Name:       l.Currency.Name,
			Quantity:   strconv.FormatFloat(l.Quantity, 'f', -1, 64),
			Amount:     utils.FormatMoney(l.Quantity, l.Currency.Name),
		})
	}
	dc.render(c, status, "billing.html", dc.view(c, fmt.Sprintf("Facturar orden #%d", order.ID), data))
}

// Billing shows the payments saved on the order.
func (dc *DashboardController) Billing(c *gin.Context) {
	order, bill, ok := dc.loadBill(c)
	if !ok {
		return
	}
	dc.renderBill(c, http.StatusOK, order, bill)
}

// postedLines reads the working payment lines carried by the form.
func postedLines(c *gin.Context) ([]models.OrderCurrencyItem, error) {
	ids := c.PostFormArray("line_currency")
	qtys := c.PostFormArray("line_quantity")
	if len(ids) != len(qtys) {
		return nil, errors.New("líneas de pago incompletas")
	}
	out := make([]models.OrderCurrencyItem, 0, len(ids))
	for i := range ids {
		id, err := strconv.ParseUint(ids[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("moneda inválida: %s", ids[i])
		}
		q, err := strconv.ParseFloat(qtys[i], 64)
		if err != nil {
			return nil, fmt.Errorf("cantidad inválida: %s", qtys[i])
		}
		out = append(out, models.OrderCurrencyItem{CurrencyID: uint(id), Quantity: q})
	}
	return out, nil
}

// BillingAction handles the add, remove and submit buttons of the billing
// page.
func (dc *DashboardController) BillingAction(c *gin.Context) {
	order, bill, ok := dc.loadBill(c)
	if !ok {
		return
	}
	n := dc.notifier(c)

	lines, err := postedLines(c)
	if err == nil {
		err = bill.Restore(lines)
	}
	if err != nil {
		n.Notify(err.Error(), notify.Warning)
		dc.renderBill(c, http.StatusUnprocessableEntity, order, bill)
		return
	}

	currencyID, _ := strconv.ParseUint(c.PostForm("currency_id"), 10, 64)

	switch c.PostForm("action") {
	case "add":
		qty, err := strconv.ParseFloat(c.PostForm("quantity"), 64)
		if err != nil {
			err = billing.ErrInvalidQuantity
		} else {
			err = bill.AddPayment(uint(currencyID), qty)
		}
		if err != nil {
			n.Notify(err.Error(), notify.Warning)
			dc.renderBill(c, http.StatusUnprocessableEntity, order, bill)
			return
		}

	case "remove":
		bill.RemovePayment(uint(currencyID))

	case "submit":
		err := billing.Submit(c.Request.Context(), dc.orders(c), bill, c.PostForm("confirmed") == "1")
		if errors.Is(err, billing.ErrConfirmationRequired) {
			n.Notify(err.Error(), notify.Warning)
			dc.renderBill(c, http.StatusConflict, order, bill)
			return
		}
		if dc.signedOut(c, err) {
			return
		}
		if err != nil {
			dc.renderBill(c, statusOf(err), order, bill)
			return
		}
		c.Redirect(http.StatusSeeOther, "/dashboard/orders?broadcast=1")
		return

	default:
		n.Notify("Acción desconocida", notify.Warning)
		dc.renderBill(c, http.StatusBadRequest, order, bill)
		return
	}

	dc.renderBill(c, http.StatusOK, order, bill)
}
