package upstream

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/reports"
	"github.com/yeremiapane/restaurant-pos/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

type OrderController struct {
	DB *gorm.DB
}

// orderInput carries the writable fields of an order. Absent fields are
// left untouched on update.
type orderInput struct {
	TableID    *uint               `json:"table_id"`
	CustomerID json.RawMessage     `json:"customer_id"`
	State      *string             `json:"state"`
	Notes      *string             `json:"notes"`
	Date       *time.Time          `json:"date"`
	Items      *[]models.OrderItem `json:"items"`
}

func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Table").
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Dish").
		Preload("Currencies", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Currencies.Currency")
}

func (oc *OrderController) load(db *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	if err := preloadOrder(db).First(&order, id).Error; err != nil {
		return nil, err
	}
	order.ComputeTotal()
	return &order, nil
}

func (oc *OrderController) respondOrder(c *gin.Context, status int, id uint) {
	order, err := oc.load(oc.DB, id)
	if err != nil {
		respondDBError(c, "Order", err)
		return
	}
	c.JSON(status, order)
}

// apply copies the present fields of in onto order and checks the result.
func apply(tx *gorm.DB, order *models.Order, in orderInput) error {
	if in.TableID != nil {
		order.TableID = *in.TableID
	}
	if len(in.CustomerID) > 0 {
		var id *uint
		if err := json.Unmarshal(in.CustomerID, &id); err != nil {
			return invalid("invalid customer_id")
		}
		if id != nil && *id == 0 {
			id = nil
		}
		order.CustomerID = id
	}
	if in.State != nil {
		order.State = normalizeState(*in.State)
	}
	if in.Notes != nil {
		order.Notes = *in.Notes
	}
	if in.Date != nil {
		order.Date = *in.Date
	}

	if !models.ValidOrderState(order.State) {
		return invalid("unknown order state %q", order.State)
	}
	if err := exists(tx, &models.Table{}, order.TableID, "table"); err != nil {
		return err
	}
	if order.CustomerID != nil {
		if err := exists(tx, &models.Customer{}, *order.CustomerID, "customer"); err != nil {
			return err
		}
	}
	return nil
}

func checkItems(tx *gorm.DB, items []models.OrderItem) error {
	if len(items) == 0 {
		return invalid("an order needs at least one item")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return invalid("item quantity must be positive")
		}
		if err := exists(tx, &models.Dish{}, it.DishID, "dish"); err != nil {
			return err
		}
	}
	return nil
}

func replaceItems(tx *gorm.DB, orderID uint, items []models.OrderItem) error {
	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	rows := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, models.OrderItem{OrderID: orderID, DishID: it.DishID, Quantity: it.Quantity})
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

func (oc *OrderController) List(c *gin.Context) {
	var orders []models.Order
	if err := preloadOrder(oc.DB).Order("date desc, id desc").Find(&orders).Error; err != nil {
		respondDBError(c, "Order", err)
		return
	}
	for i := range orders {
		orders[i].ComputeTotal()
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	oc.respondOrder(c, http.StatusOK, id)
}

func (oc *OrderController) Create(c *gin.Context) {
	var in orderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	order := models.Order{State: models.OrderPending, Date: time.Now()}
	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		if in.TableID == nil {
			return invalid("table_id is required")
		}
		if err := apply(tx, &order, in); err != nil {
			return err
		}
		var items []models.OrderItem
		if in.Items != nil {
			items = *in.Items
		}
		if err := checkItems(tx, items); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return err
		}
		return replaceItems(tx, order.ID, items)
	})
	if err != nil {
		respondDBError(c, "Order", err)
		return
	}
	utils.InfoLogger.Printf("Order %d created for table %d", order.ID, order.TableID)
	oc.respondOrder(c, http.StatusCreated, order.ID)
}

// Update patches an order. Items, when present, replace the stored ones.
func (oc *OrderController) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in orderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, id).Error; err != nil {
			return err
		}
		if err := apply(tx, &order, in); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&order).Error; err != nil {
			return err
		}
		if in.Items == nil {
			return nil
		}
		if err := checkItems(tx, *in.Items); err != nil {
			return err
		}
		return replaceItems(tx, id, *in.Items)
	})
	if err != nil {
		respondDBError(c, "Order", err)
		return
	}
	if in.State != nil {
		utils.InfoLogger.Printf("Order %d is now %s", id, *in.State)
	}
	oc.respondOrder(c, http.StatusOK, id)
}

// Delete removes the order together with its items and payment lines.
func (oc *OrderController) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderCurrencyItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Order{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		respondDBError(c, "Order", err)
		return
	}
	utils.InfoLogger.Printf("Order %d deleted", id)
	c.Status(http.StatusNoContent)
}

// UpdateCurrencies upserts the payment lines of an order. A line with
// quantity 0 is removed.
func (oc *OrderController) UpdateCurrencies(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var lines []models.OrderCurrencyItem
	if err := c.ShouldBindJSON(&lines); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Order{}, id, "order"); err != nil {
			return gorm.ErrRecordNotFound
		}
		for _, l := range lines {
			if l.Quantity < 0 {
				return invalid("quantity cannot be negative")
			}
			scope := tx.Where("order_id = ? AND currency_id = ?", id, l.CurrencyID)
			if l.Quantity == 0 {
				if err := scope.Delete(&models.OrderCurrencyItem{}).Error; err != nil {
					return err
				}
				continue
			}
			if err := exists(tx, &models.Currency{}, l.CurrencyID, "currency"); err != nil {
				return err
			}
			row := models.OrderCurrencyItem{OrderID: id, CurrencyID: l.CurrencyID, Quantity: utils.Round2(l.Quantity)}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_id"}, {Name: "currency_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
			}).Omit(clause.Associations).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondDBError(c, "Order", err)
		return
	}
	oc.respondOrder(c, http.StatusOK, id)
}

// SalesReport answers GET /reports/sales: the completed orders between
// start_date and end_date, both inclusive, with one entry per day.
func (oc *OrderController) SalesReport(c *gin.Context) {
	from, errFrom := time.ParseInLocation(dateLayout, c.Query("start_date"), time.Local)
	to, errTo := time.ParseInLocation(dateLayout, c.Query("end_date"), time.Local)
	if errFrom != nil || errTo != nil {
		detail(c, http.StatusUnprocessableEntity, "start_date and end_date must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		detail(c, http.StatusUnprocessableEntity, "end_date is before start_date")
		return
	}

	var orders []models.Order
	err := preloadOrder(oc.DB).
		Where("state = ? AND date >= ? AND date < ?", models.OrderCompleted, from, to.AddDate(0, 0, 1)).
		Order("date, id").
		Find(&orders).Error
	if err != nil {
		respondDBError(c, "Order", err)
		return
	}

	report := models.SalesReport{
		StartDate: from.Format(dateLayout),
		EndDate:   to.Format(dateLayout),
		Orders:    orders,
	}
	for i := range report.Orders {
		report.Total += report.Orders[i].ComputeTotal()
	}
	report.Total = utils.Round2(report.Total)
	report.Days = reports.Daily(from, to, report.Orders)
	if report.Orders == nil {
		report.Orders = []models.Order{}
	}
	c.JSON(http.StatusOK, report)
}

func (oc *OrderController) Register(g gin.IRoutes) {
	g.GET("/orders", oc.List)
	g.GET("/orders/:id", oc.Get)
	g.POST("/orders", oc.Create)
	g.PUT("/orders/:id", oc.Update)
	g.DELETE("/orders/:id", oc.Delete)
	g.PUT("/orders/:id/currencies", oc.UpdateCurrencies)
	g.GET("/reports/sales", oc.SalesReport)
}

// normalizeState lowercases states sent by older clients.
func normalizeState(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
