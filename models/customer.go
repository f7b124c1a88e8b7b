package models

import "time"

type Customer struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// NationalID is written as "<nationality>-<number>", e.g. "V-12345678".
	NationalID string    `gorm:"type:varchar(20);unique;not null" json:"national_id"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	Lastname   string    `gorm:"type:varchar(100);not null" json:"lastname"`
	Phone      string    `gorm:"type:varchar(30)" json:"phone"`
	Address    string    `gorm:"type:text" json:"address"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}
