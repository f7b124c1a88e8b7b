package models

import "time"

// Roles known to the dashboard.
const (
	RoleAdmin   = "admin"
	RoleWaiter  = "waiter"
	RoleChef    = "chef"
	RoleCashier = "cashier"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);unique;not null" json:"email"`
	Username  string    `gorm:"type:varchar(100);unique;not null" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"password,omitempty"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleWaiter, RoleChef, RoleCashier:
		return true
	}
	return false
}
