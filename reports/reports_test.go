package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/models"
)

func day(s string, hour int) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t.Add(time.Duration(hour) * time.Hour)
}

func sampleOrders() []models.Order {
	pizza := &models.Dish{ID: 1, Name: "Pizza", Price: 10}
	soda := &models.Dish{ID: 2, Name: "Refresco", Price: 2.5}
	return []models.Order{
		{ID: 1, TableID: 1, State: models.OrderCompleted, Date: day("2024-03-01", 12),
			Items: []models.OrderItem{{DishID: 1, Dish: pizza, Quantity: 2}}},
		{ID: 2, TableID: 2, State: models.OrderCompleted, Date: day("2024-03-01", 20),
			Items: []models.OrderItem{{DishID: 2, Dish: soda, Quantity: 4}}},
		{ID: 3, TableID: 1, State: models.OrderCompleted, Date: day("2024-03-03", 13), Total: 7.25},
		{ID: 4, TableID: 1, State: models.OrderCompleted, Date: day("2024-03-09", 13), Total: 100},
	}
}

func TestDaily(t *testing.T) {
	days := Daily(day("2024-03-01", 0), day("2024-03-03", 0), sampleOrders())

	require.Len(t, days, 3)
	assert.Equal(t, models.DailySale{Date: "2024-03-01", Orders: 2, Total: 30}, days[0])
	assert.Equal(t, models.DailySale{Date: "2024-03-02"}, days[1])
	assert.Equal(t, models.DailySale{Date: "2024-03-03", Orders: 1, Total: 7.25}, days[2])
}

func TestDailyReversedRange(t *testing.T) {
	assert.Nil(t, Daily(day("2024-03-03", 0), day("2024-03-01", 0), sampleOrders()))
}

func TestRevenueChart(t *testing.T) {
	png, err := RevenueChart([]models.DailySale{
		{Date: "2024-03-01", Total: 30},
		{Date: "2024-03-02", Total: 0},
		{Date: "2024-03-03", Total: 7.25},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = RevenueChart([]models.DailySale{{Date: "2024-03-02"}})
	assert.ErrorIs(t, err, ErrEmptyChart)
}

func TestSalesReport(t *testing.T) {
	var buf bytes.Buffer
	err := SalesReport(&buf, day("2024-03-01", 0), day("2024-03-03", 0), sampleOrders())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestSalesReportWithoutSales(t *testing.T) {
	var buf bytes.Buffer
	err := SalesReport(&buf, day("2024-04-01", 0), day("2024-04-02", 0), nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestInvoice(t *testing.T) {
	order := models.Order{
		ID:      9,
		TableID: 3,
		Table:   &models.Table{ID: 3, Name: "Terraza 1"},
		Customer: &models.Customer{
			NationalID: "V-12345678", Name: "Ana", Lastname: "Pérez",
		},
		State: models.OrderMade,
		Date:  day("2024-03-01", 12),
		Items: []models.OrderItem{
			{DishID: 1, Quantity: 2},
			{DishID: 7, Quantity: 1},
		},
		Currencies: []models.OrderCurrencyItem{
			{CurrencyID: 1, Quantity: 15},
		},
	}
	dishes := []models.Dish{{ID: 1, Name: "Arepa", Price: 10}}
	currencies := []models.Currency{
		{ID: 1, Name: "USD", ExchangeRate: 1},
		{ID: 2, Name: "VES", ExchangeRate: 36.5},
	}

	var buf bytes.Buffer
	require.NoError(t, Invoice(&buf, order, dishes, currencies))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}
