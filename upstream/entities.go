package upstream

import (
	"strings"

	"github.com/yeremiapane/restaurant-pos/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

func exists(tx *gorm.DB, model interface{}, id uint, name string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return invalid("%s %d does not exist", name, id)
	}
	return nil
}

// Users keeps only bcrypt hashes and never answers with the password.
func Users(db *gorm.DB) *Collection[models.User] {
	return &Collection[models.User]{
		DB:   db,
		Name: "User",
		Prepare: func(tx *gorm.DB, u, previous *models.User) error {
			if err := required("email", u.Email); err != nil {
				return err
			}
			if err := required("username", u.Username); err != nil {
				return err
			}
			if !models.ValidRole(u.Role) {
				return invalid("unknown role %q", u.Role)
			}
			switch {
			case previous != nil && (u.Password == "" || u.Password == previous.Password):
				u.Password = previous.Password
				return nil
			case u.Password == "":
				return invalid("password is required")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			u.Password = string(hash)
			return nil
		},
		Present: func(u *models.User) { u.Password = "" },
	}
}

func Customers(db *gorm.DB) *Collection[models.Customer] {
	return &Collection[models.Customer]{
		DB:   db,
		Name: "Customer",
		Prepare: func(tx *gorm.DB, c, _ *models.Customer) error {
			if err := required("national_id", c.NationalID); err != nil {
				return err
			}
			if err := required("name", c.Name); err != nil {
				return err
			}
			return required("lastname", c.Lastname)
		},
		References: []Reference{{Model: &models.Order{}, Column: "customer_id"}},
	}
}

func DishTypes(db *gorm.DB) *Collection[models.DishType] {
	return &Collection[models.DishType]{
		DB:   db,
		Name: "Dish type",
		Prepare: func(tx *gorm.DB, t, _ *models.DishType) error {
			return required("name", t.Name)
		},
		References: []Reference{{Model: &models.Dish{}, Column: "type_id"}},
	}
}

func Dishes(db *gorm.DB) *Collection[models.Dish] {
	return &Collection[models.Dish]{
		DB:       db,
		Name:     "Dish",
		Preloads: []string{"Type"},
		Prepare: func(tx *gorm.DB, d, _ *models.Dish) error {
			if err := required("name", d.Name); err != nil {
				return err
			}
			if d.Price <= 0 {
				return invalid("price must be positive")
			}
			return exists(tx, &models.DishType{}, d.TypeID, "dish type")
		},
		References: []Reference{{Model: &models.OrderItem{}, Column: "dish_id"}},
	}
}

func Tables(db *gorm.DB) *Collection[models.Table] {
	return &Collection[models.Table]{
		DB:   db,
		Name: "Table",
		Prepare: func(tx *gorm.DB, t, _ *models.Table) error {
			if err := required("name", t.Name); err != nil {
				return err
			}
			if t.State == "" {
				t.State = models.TableAvailable
			}
			if t.State != models.TableAvailable && t.State != models.TableOccupied {
				return invalid("unknown table state %q", t.State)
			}
			return nil
		},
		References: []Reference{{Model: &models.Order{}, Column: "table_id"}},
	}
}

func Currencies(db *gorm.DB) *Collection[models.Currency] {
	return &Collection[models.Currency]{
		DB:   db,
		Name: "Currency",
		Prepare: func(tx *gorm.DB, c, _ *models.Currency) error {
			if err := required("name", c.Name); err != nil {
				return err
			}
			if c.ExchangeRate <= 0 {
				return invalid("exchange_rate must be positive")
			}
			return nil
		},
		References: []Reference{{Model: &models.OrderCurrencyItem{}, Column: "currency_id"}},
	}
}
