package models

import "time"

// Order states, in the order the kitchen moves through them.
const (
	OrderPending   = "pending"
	OrderPreparing = "preparing"
	OrderMade      = "made"
	OrderCompleted = "completed"
)

type Order struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	TableID    uint                `gorm:"not null;index" json:"table_id"`
	Table      *Table              `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table,omitempty"`
	CustomerID *uint               `gorm:"index" json:"customer_id,omitempty"`
	Customer   *Customer           `gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"customer,omitempty"`
	State      string              `gorm:"type:varchar(20);not null;default:'pending'" json:"state"`
	Notes      string              `gorm:"type:text" json:"notes"`
	Date       time.Time           `gorm:"not null;index" json:"date"`
	Items      []OrderItem         `gorm:"foreignKey:OrderID" json:"items"`
	Currencies []OrderCurrencyItem `gorm:"foreignKey:OrderID" json:"currencies"`
	// Total is computed from Items when the order is loaded.
	Total float64 `gorm:"-" json:"total"`
}

// ValidOrderState reports whether s is a known order state.
func ValidOrderState(s string) bool {
	switch s {
	case OrderPending, OrderPreparing, OrderMade, OrderCompleted:
		return true
	}
	return false
}

// ComputeTotal sums price*quantity over the items whose Dish is loaded.
func (o *Order) ComputeTotal() float64 {
	var total float64
	for _, it := range o.Items {
		if it.Dish != nil {
			total += it.Dish.Price * float64(it.Quantity)
		}
	}
	o.Total = total
	return total
}
