package models

type OrderItem struct {
	ID       uint  `gorm:"primaryKey" json:"id,omitempty"`
	OrderID  uint  `gorm:"not null;index" json:"order_id,omitempty"`
	DishID   uint  `gorm:"not null;index" json:"dish_id"`
	Dish     *Dish `gorm:"foreignKey:DishID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"dish,omitempty"`
	Quantity int   `gorm:"not null" json:"quantity"`
}
