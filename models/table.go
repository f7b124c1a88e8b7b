package models

const (
	TableAvailable = "available"
	TableOccupied  = "occupied"
)

type Table struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"type:varchar(50);unique;not null" json:"name"`
	State string `gorm:"type:varchar(20);not null;default:'available'" json:"state"`
}
