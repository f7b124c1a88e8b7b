// Package upstream is a reference implementation of the REST API and the
// notification hub the back office talks to. It serves development setups
// and the end to end tests.
package upstream

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.DishType{},
		&models.Dish{},
		&models.Table{},
		&models.Currency{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderCurrencyItem{},
	)
}

type Server struct {
	DB   *gorm.DB
	Auth *AuthController
	Hub  *Hub
}

func NewServer(db *gorm.DB, cfg config.UpstreamConfig) *Server {
	tokens := utils.NewTokenIssuer(cfg.JWTSecret)
	return &Server{
		DB: db,
		Auth: &AuthController{
			DB:         db,
			Tokens:     tokens,
			AccessTTL:  cfg.AccessTTL,
			WSTokenTTL: cfg.WSTokenTTL,
		},
		Hub: NewHub(tokens),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/token", s.Auth.IssueToken)
	r.GET("/ws", s.Hub.ServeWS)

	api := r.Group("/")
	api.Use(s.Auth.RequireUser())
	{
		api.GET("/validate_token", s.Auth.ValidateToken)

		Customers(s.DB).Register(api, "/customers")
		Dishes(s.DB).Register(api, "/dishes")
		DishTypes(s.DB).Register(api, "/dishes_types")
		Tables(s.DB).Register(api, "/tables")
		Currencies(s.DB).Register(api, "/currencies")
		(&OrderController{DB: s.DB}).Register(api)

		users := api.Group("")
		users.Use(RequireRole(models.RoleAdmin))
		Users(s.DB).Register(users, "/users")
	}
	return r
}
