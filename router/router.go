package router

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/controllers"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/services"
)

func SetupRouter(cfg config.Config, auth *services.AuthService, toasts *notify.Center, tmpl *template.Template) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders(cfg.WSURL, cfg.IsProduction()))
	r.Use(middlewares.CORSMiddlewares(cfg.AllowedOrigins...))
	r.SetHTMLTemplate(tmpl)

	proxyCtrl := controllers.NewProxyController(cfg, auth)
	dashCtrl := controllers.NewDashboardController(cfg, auth, toasts)
	loginLimiter := middlewares.NewRateLimiter(cfg.LoginRate)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// ----------------------------------------------------------------
	//                      API PROXY
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.POST("/login", loginLimiter.RateLimit(), proxyCtrl.Login)
	api.POST("/logout", proxyCtrl.Logout)

	protected := api.Group("")
	protected.Use(middlewares.RequireAPIToken())
	{
		protected.GET("/validateToken", proxyCtrl.ValidateToken)
		protected.GET("/get", proxyCtrl.Get)
		protected.POST("/save", proxyCtrl.Save)
		protected.PUT("/save", proxyCtrl.Save)
		protected.DELETE("/delete", proxyCtrl.Delete)
	}

	// ----------------------------------------------------------------
	//                      PAGES
	// ----------------------------------------------------------------
	pages := r.Group("/")
	pages.Use(middlewares.ToastKeyMiddleware(cfg.IsProduction()))
	pages.Use(middlewares.SessionMiddleware(auth))
	pages.Use(middlewares.RouteGuard(middlewares.DashboardRules))

	pages.GET("/", dashCtrl.LoginPage)
	pages.POST("/login", loginLimiter.RateLimit(), dashCtrl.LoginSubmit)
	pages.GET("/logout", dashCtrl.Logout)

	pages.GET("/dashboard", dashCtrl.Home)
	for _, p := range dashCtrl.Pages {
		base := p.Base()
		pages.GET(base, dashCtrl.List(p))
		pages.GET(base+"/new", dashCtrl.New(p))
		pages.POST(base, dashCtrl.Create(p))
		pages.GET(base+"/:id/edit", dashCtrl.Edit(p))
		pages.POST(base+"/:id", dashCtrl.Update(p))
		pages.POST(base+"/:id/delete", dashCtrl.Delete(p))
	}

	pages.GET("/dashboard/orders/:id/billing", dashCtrl.Billing)
	pages.POST("/dashboard/orders/:id/billing", dashCtrl.BillingAction)
	pages.GET("/dashboard/reports", dashCtrl.Reports)

	pages.GET("/dashboard/orders/:id/invoice.pdf", middlewares.DocumentLoggerMiddleware("invoice"), dashCtrl.Invoice)
	pages.GET("/dashboard/reports/sales.pdf", middlewares.DocumentLoggerMiddleware("sales report"), dashCtrl.SalesReport)

	return r
}
