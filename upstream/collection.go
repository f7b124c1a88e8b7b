package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValidationError is answered with 422.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrInUse is returned when a row is still referenced elsewhere.
var ErrInUse = errors.New("row is referenced by other records")

// detail writes the error body the way the API always does: {"detail": msg}.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// respondDBError maps storage errors to HTTP answers.
func respondDBError(c *gin.Context, name string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		detail(c, http.StatusUnprocessableEntity, verr.Message)
	case errors.Is(err, gorm.ErrRecordNotFound):
		detail(c, http.StatusNotFound, name+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		detail(c, http.StatusConflict, name+" already exists")
	case errors.Is(err, ErrInUse), errors.Is(err, gorm.ErrForeignKeyViolated):
		detail(c, http.StatusConflict, name+" has linked records")
	default:
		utils.ErrorLogger.Printf("%s: %v", name, err)
		detail(c, http.StatusInternalServerError, "internal error")
	}
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		detail(c, http.StatusNotFound, "not found")
		return 0, false
	}
	return uint(id), true
}

// Reference is a column of another table pointing at a collection's rows.
type Reference struct {
	Model  interface{}
	Column string
}

// Collection serves list/get/create/update/delete for one table.
type Collection[T any] struct {
	DB       *gorm.DB
	Name     string
	Preloads []string
	// Prepare validates and normalizes an item before it is written;
	// previous is nil on create.
	Prepare func(tx *gorm.DB, item, previous *T) error
	// Present cleans an item before it is sent, e.g. drops secrets.
	Present func(item *T)
	// References block deleting rows still in use.
	References []Reference
}

func (col *Collection[T]) query(db *gorm.DB) *gorm.DB {
	for _, p := range col.Preloads {
		db = db.Preload(p)
	}
	return db
}

func (col *Collection[T]) present(item *T) {
	if col.Present != nil {
		col.Present(item)
	}
}

func (col *Collection[T]) load(db *gorm.DB, id uint) (*T, error) {
	var item T
	if err := col.query(db).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (col *Collection[T]) List(c *gin.Context) {
	var items []T
	if err := col.query(col.DB).Order("id").Find(&items).Error; err != nil {
		respondDBError(c, col.Name, err)
		return
	}
	for i := range items {
		col.present(&items[i])
	}
	c.JSON(http.StatusOK, items)
}

func (col *Collection[T]) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	item, err := col.load(col.DB, id)
	if err != nil {
		respondDBError(c, col.Name, err)
		return
	}
	col.present(item)
	c.JSON(http.StatusOK, item)
}

func (col *Collection[T]) Create(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := clearID(&item); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	err := col.DB.Transaction(func(tx *gorm.DB) error {
		if col.Prepare != nil {
			if err := col.Prepare(tx, &item, nil); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Create(&item).Error
	})
	if err != nil {
		respondDBError(c, col.Name, err)
		return
	}

	id, _ := idOf(&item)
	created, err := col.load(col.DB, id)
	if err != nil {
		respondDBError(c, col.Name, err)
		return
	}
	utils.InfoLogger.Printf("%s %d created", col.Name, id)
	col.present(created)
	c.JSON(http.StatusCreated, created)
}

// Update applies the fields present in the body over the stored row.
func (col *Collection[T]) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	patch, err := patchBody(c)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	err = col.DB.Transaction(func(tx *gorm.DB) error {
		previous, err := col.load(tx, id)
		if err != nil {
			return err
		}
		item := *previous
		if err := json.Unmarshal(patch, &item); err != nil {
			return invalid("invalid body: %v", err)
		}
		if col.Prepare != nil {
			if err := col.Prepare(tx, &item, previous); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(&item).Error
	})
	if err != nil {
		respondDBError(c, col.Name, err)
		return
	}

	updated, err := col.load(col.DB, id)
	if err != nil {
		respondDBError(c, col.Name, err)
		return
	}
	col.present(updated)
	c.JSON(http.StatusOK, updated)
}

func (col *Collection[T]) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	err := col.DB.Transaction(func(tx *gorm.DB) error {
		for _, ref := range col.References {
			var n int64
			if err := tx.Model(ref.Model).Where(ref.Column+" = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrInUse
			}
		}
		res := tx.Delete(new(T), id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		respondDBError(c, col.Name, err)
		return
	}
	utils.InfoLogger.Printf("%s %d deleted", col.Name, id)
	c.Status(http.StatusNoContent)
}

// Register mounts the collection under path.
func (col *Collection[T]) Register(g gin.IRoutes, path string) {
	g.GET(path, col.List)
	g.GET(path+"/:id", col.Get)
	g.POST(path, col.Create)
	g.PUT(path+"/:id", col.Update)
	g.DELETE(path+"/:id", col.Delete)
}

// patchBody reads a JSON object and drops its "id" so a patch can never
// move a row.
func patchBody(c *gin.Context) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := c.ShouldBindJSON(&m); err != nil {
		return nil, err
	}
	delete(m, "id")
	return json.Marshal(m)
}

// idOf and clearID go through JSON so Collection works with any model that
// has an "id" field.
func idOf(item interface{}) (uint, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return 0, err
	}
	var v struct {
		ID uint `json:"id"`
	}
	err = json.Unmarshal(b, &v)
	return v.ID, err
}

func clearID(item interface{}) error {
	id, err := idOf(item)
	if err != nil || id == 0 {
		return err
	}
	b, err := json.Marshal(item)
	if err != nil {
		return err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	m["id"] = json.RawMessage("0")
	b, err = json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, item)
}
