// Package billing splits an order total across payments in several
// currencies.
//
// Amounts are kept in the base unit internally. A currency's rate is the
// number of its units worth one base unit, so a payment of q units in a
// currency with rate r covers q/r of the total.
package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

var (
	ErrInvalidQuantity      = errors.New("la cantidad debe ser mayor que cero")
	ErrUnknownCurrency      = errors.New("moneda desconocida")
	ErrOverpayment          = errors.New("el pago excede el monto pendiente")
	ErrConfirmationRequired = errors.New("queda un monto pendiente, se requiere confirmación")
)

// Line is one payment expressed with its rate.
type Line struct {
	Quantity float64
	Rate     float64
}

// Paid returns how much of the base unit the lines cover.
func Paid(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		if l.Rate > 0 {
			sum += l.Quantity / l.Rate
		}
	}
	return sum
}

// Remaining is the unpaid part of total expressed in a currency with the
// given rate, rounded to 2 decimals: (total - sum(q_i/r_i)) * rate.
func Remaining(total float64, paid []Line, rate float64) float64 {
	return utils.Round2((total - Paid(paid)) * rate)
}

// Bill is the cashier's working copy of an order's payments.
type Bill struct {
	OrderID uint
	Total   float64

	currencies map[uint]models.Currency
	order      []uint
	lines      map[uint]float64
	saved      []models.OrderCurrencyItem
}

// NewBill starts from the payment lines already saved on the order.
func NewBill(order models.Order, currencies []models.Currency) *Bill {
	b := &Bill{
		OrderID:    order.ID,
		Total:      order.Total,
		currencies: make(map[uint]models.Currency, len(currencies)),
		lines:      make(map[uint]float64),
	}
	if b.Total == 0 {
		b.Total = order.ComputeTotal()
	}
	for _, c := range currencies {
		b.currencies[c.ID] = c
		b.order = append(b.order, c.ID)
	}
	for _, it := range order.Currencies {
		if it.Quantity <= 0 {
			continue
		}
		if it.Currency != nil {
			if _, ok := b.currencies[it.CurrencyID]; !ok {
				b.currencies[it.CurrencyID] = *it.Currency
				b.order = append(b.order, it.CurrencyID)
			}
		}
		b.lines[it.CurrencyID] += it.Quantity
		b.saved = append(b.saved, models.OrderCurrencyItem{CurrencyID: it.CurrencyID, Quantity: it.Quantity})
	}
	return b
}

// Currencies returns the known currencies in the order they were given.
func (b *Bill) Currencies() []models.Currency {
	out := make([]models.Currency, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.currencies[id])
	}
	return out
}

func (b *Bill) paidLines() []Line {
	out := make([]Line, 0, len(b.lines))
	for _, id := range b.sortedLineIDs() {
		out = append(out, Line{Quantity: b.lines[id], Rate: b.currencies[id].ExchangeRate})
	}
	return out
}

// Remaining is what is still owed, in the given currency.
func (b *Bill) Remaining(currencyID uint) (float64, error) {
	c, ok := b.currencies[currencyID]
	if !ok || c.ExchangeRate <= 0 {
		return 0, ErrUnknownCurrency
	}
	return Remaining(b.Total, b.paidLines(), c.ExchangeRate), nil
}

// checkLine validates a payment line on its own, regardless of the total.
func (b *Bill) checkLine(currencyID uint, qty float64) (models.Currency, float64, error) {
	c, ok := b.currencies[currencyID]
	if !ok || c.ExchangeRate <= 0 {
		return c, 0, ErrUnknownCurrency
	}
	qty = utils.Round2(qty)
	if qty <= 0 {
		return c, 0, ErrInvalidQuantity
	}
	return c, qty, nil
}

// AddPayment records qty units of a currency. The bill is left untouched
// when the payment would make the owed amount negative in any known
// currency.
func (b *Bill) AddPayment(currencyID uint, qty float64) error {
	c, qty, err := b.checkLine(currencyID, qty)
	if err != nil {
		return err
	}

	next := append(b.paidLines(), Line{Quantity: qty, Rate: c.ExchangeRate})
	for _, id := range b.order {
		rate := b.currencies[id].ExchangeRate
		if rate > 0 && Remaining(b.Total, next, rate) < 0 {
			return fmt.Errorf("%w: %s", ErrOverpayment, utils.FormatMoney(qty, c.Name))
		}
	}
	b.lines[currencyID] = utils.Round2(b.lines[currencyID] + qty)
	return nil
}

// Restore replaces the current lines with lines already accepted earlier.
// Only the currency and quantity of each line are checked: a rate change or
// a smaller order may have left the saved lines above the total, and they
// must still load so they can be removed. On error the bill keeps its
// previous lines.
func (b *Bill) Restore(lines []models.OrderCurrencyItem) error {
	next := make(map[uint]float64, len(lines))
	for _, l := range lines {
		_, qty, err := b.checkLine(l.CurrencyID, l.Quantity)
		if err != nil {
			return err
		}
		next[l.CurrencyID] = utils.Round2(next[l.CurrencyID] + qty)
	}
	b.lines = next
	return nil
}

// RemovePayment drops every payment made in a currency.
func (b *Bill) RemovePayment(currencyID uint) {
	delete(b.lines, currencyID)
}

// Lines returns the current payment lines ordered by currency id.
func (b *Bill) Lines() []models.OrderCurrencyItem {
	out := make([]models.OrderCurrencyItem, 0, len(b.lines))
	for _, id := range b.sortedLineIDs() {
		c := b.currencies[id]
		out = append(out, models.OrderCurrencyItem{CurrencyID: id, Currency: &c, Quantity: b.lines[id]})
	}
	return out
}

// NeedsConfirmation is true while some amount is still owed.
func (b *Bill) NeedsConfirmation() bool {
	paid := b.paidLines()
	for _, id := range b.order {
		rate := b.currencies[id].ExchangeRate
		if rate > 0 && Remaining(b.Total, paid, rate) > 0 {
			return true
		}
	}
	if len(b.order) == 0 {
		return Remaining(b.Total, paid, 1) > 0
	}
	return false
}

func (b *Bill) sortedLineIDs() []uint {
	ids := make([]uint, 0, len(b.lines))
	for id := range b.lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Diff returns the lines to send to the API: every current line, plus a
// zero-quantity line for each saved currency that is no longer present.
func Diff(saved, current []models.OrderCurrencyItem) []models.OrderCurrencyItem {
	present := make(map[uint]bool, len(current))
	out := make([]models.OrderCurrencyItem, 0, len(current)+len(saved))
	for _, c := range current {
		present[c.CurrencyID] = true
		out = append(out, models.OrderCurrencyItem{CurrencyID: c.CurrencyID, Quantity: c.Quantity})
	}
	removed := make(map[uint]bool)
	for _, s := range saved {
		if !present[s.CurrencyID] && !removed[s.CurrencyID] {
			removed[s.CurrencyID] = true
			out = append(out, models.OrderCurrencyItem{CurrencyID: s.CurrencyID, Quantity: 0})
		}
	}
	return out
}

// OrderUpdater is the part of the orders client Submit needs.
// *apiclient.Resource[models.Order] satisfies it.
type OrderUpdater interface {
	UpdateSub(ctx context.Context, id, sub string, body, out interface{}) error
	Update(ctx context.Context, id string, body interface{}) (*models.Order, error)
}

// Submit persists the payment lines and then marks the order completed. The
// second call is not made when the first one fails. confirmed must be true
// when NeedsConfirmation reports an outstanding amount.
func Submit(ctx context.Context, orders OrderUpdater, b *Bill, confirmed bool) error {
	if b.NeedsConfirmation() && !confirmed {
		return ErrConfirmationRequired
	}

	id := strconv.FormatUint(uint64(b.OrderID), 10)
	current := b.Lines()
	if err := orders.UpdateSub(ctx, id, "currencies", Diff(b.saved, current), nil); err != nil {
		return err
	}
	if _, err := orders.Update(ctx, id, map[string]string{"state": models.OrderCompleted}); err != nil {
		return err
	}

	b.saved = b.saved[:0]
	for _, l := range current {
		b.saved = append(b.saved, models.OrderCurrencyItem{CurrencyID: l.CurrencyID, Quantity: l.Quantity})
	}
	utils.InfoLogger.Printf("Order %d billed with %d currency lines", b.OrderID, len(current))
	return nil
}
