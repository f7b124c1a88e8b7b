package models

// Currency.ExchangeRate is the number of units of this currency worth one
// unit of the base currency.
type Currency struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"type:varchar(50);unique;not null" json:"name"`
	ExchangeRate float64 `gorm:"type:decimal(18,6);not null" json:"exchange_rate"`
}

// OrderCurrencyItem is a payment line: how much of a currency was paid for
// an order. A zero Quantity sent to the API removes the line.
type OrderCurrencyItem struct {
	ID         uint      `gorm:"primaryKey" json:"id,omitempty"`
	OrderID    uint      `gorm:"not null;uniqueIndex:idx_order_currency" json:"order_id,omitempty"`
	CurrencyID uint      `gorm:"not null;uniqueIndex:idx_order_currency" json:"currency_id"`
	Currency   *Currency `gorm:"foreignKey:CurrencyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"currency,omitempty"`
	Quantity   float64   `gorm:"type:decimal(12,2);not null" json:"quantity"`
}
