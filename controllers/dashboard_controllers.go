package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/apiclient"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// NavItem is a link of the dashboard menu.
type NavItem struct {
	Label  string
	Href   string
	Active bool
}

var navigation = []NavItem{
	{Label: "Inicio", Href: "/dashboard"},
	{Label: "Órdenes", Href: "/dashboard/orders"},
	{Label: "Mesas", Href: "/dashboard/tables"},
	{Label: "Clientes", Href: "/dashboard/customers"},
	{Label: "Platos", Href: "/dashboard/dishes"},
	{Label: "Tipos de plato", Href: "/dashboard/dish-types"},
	{Label: "Monedas", Href: "/dashboard/currencies"},
	{Label: "Usuarios", Href: "/dashboard/users"},
	{Label: "Reportes", Href: "/dashboard/reports"},
}

// View is what every page template receives.
type View struct {
	Title       string
	Session     *models.Session
	Nav         []NavItem
	Toast       *notify.Toast
	ToastMillis int64
	WSURL       string
	// LiveReload subscribes the page to order broadcasts.
	LiveReload bool
	// Broadcast makes the page announce an order change once connected.
	Broadcast bool
	Data      interface{}
}

// DashboardController renders the back office pages. Data is read and
// written through the upstream API with the caller's token.
type DashboardController struct {
	Cfg     config.Config
	Auth    *services.AuthService
	Backend *services.BackendService
	Toasts  *notify.Center
	Pages   []*EntityPage
}

func NewDashboardController(cfg config.Config, auth *services.AuthService, toasts *notify.Center) *DashboardController {
	return &DashboardController{
		Cfg:     cfg,
		Auth:    auth,
		Backend: auth.Backend,
		Toasts:  toasts,
		Pages:   EntityPages(),
	}
}

func (dc *DashboardController) notifier(c *gin.Context) notify.Notifier {
	return dc.Toasts.For(c.GetString(middlewares.CtxToastKey))
}

func (dc *DashboardController) transport(c *gin.Context) apiclient.Transport {
	return apiclient.BackendTransport{Backend: dc.Backend, Token: middlewares.CurrentToken(c)}
}

func (dc *DashboardController) view(c *gin.Context, title string, data interface{}) View {
	v := View{Title: title, WSURL: dc.Cfg.WSURL, Data: data}

	if session, ok := middlewares.CurrentSession(c); ok {
		v.Session = session
		path := c.Request.URL.Path
		for _, item := range navigation {
			if !middlewares.Allowed(middlewares.DashboardRules, item.Href, session.User.Role) {
				continue
			}
			item.Active = path == item.Href || (item.Href != "/dashboard" && strings.HasPrefix(path, item.Href+"/"))
			v.Nav = append(v.Nav, item)
		}
	}

	if toast, ok := dc.Toasts.Current(c.GetString(middlewares.CtxToastKey)); ok {
		v.Toast = &toast
		v.ToastMillis = time.Until(toast.ExpiresAt).Milliseconds()
		if v.ToastMillis <= 0 {
			v.ToastMillis = notify.DefaultTTL.Milliseconds()
		}
	}
	return v
}

func (dc *DashboardController) render(c *gin.Context, status int, name string, v View) {
	c.HTML(status, name, v)
}

// signedOut handles a token the upstream no longer accepts: the session is
// dropped and the browser is sent back to the login page.
func (dc *DashboardController) signedOut(c *gin.Context, err error) bool {
	if !errors.Is(err, services.ErrUnauthorized) {
		return false
	}
	dc.Auth.Forget(c.Request.Context(), middlewares.CurrentToken(c))
	ClearTokenCookie(c, dc.Cfg)
	c.Redirect(http.StatusSeeOther, "/")
	return true
}

// statusOf picks the status of a page rendered after a failed call.
func statusOf(err error) int {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

type loginData struct {
	Username string
}

// LoginPage is the root page for anonymous visitors.
func (dc *DashboardController) LoginPage(c *gin.Context) {
	dc.render(c, http.StatusOK, "login.html", dc.view(c, "Iniciar sesión", loginData{}))
}

// LoginSubmit handles the login form.
func (dc *DashboardController) LoginSubmit(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	n := dc.notifier(c)

	if username == "" || password == "" {
		n.Notify(errBadLoginBody.Error(), notify.Warning)
		dc.render(c, http.StatusBadRequest, "login.html", dc.view(c, "Iniciar sesión", loginData{Username: username}))
		return
	}

	token, _, err := dc.Auth.Login(c.Request.Context(), username, password)
	if err != nil {
		status := http.StatusBadGateway
		var upstreamErr *services.UpstreamError
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			status = http.StatusUnauthorized
			n.Notify("Usuario o contraseña incorrectos", notify.Error)
		case errors.As(err, &upstreamErr) && upstreamErr.Status == http.StatusUnauthorized:
			status = http.StatusUnauthorized
			n.Notify("Usuario o contraseña incorrectos", notify.Error)
		case errors.As(err, &upstreamErr):
			status = upstreamErr.Status
			n.Notify(upstreamErr.Message(), notify.Error)
		default:
			utils.ErrorLogger.Printf("Login failed: %v", err)
			n.Notify("Error de conexión: "+err.Error(), notify.Error)
		}
		dc.render(c, status, "login.html", dc.view(c, "Iniciar sesión", loginData{Username: username}))
		return
	}

	utils.InfoLogger.Printf("User %s signed in", username)
	SetTokenCookie(c, dc.Cfg, token)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout is also the target of the live reload script when the session was
// taken over by another terminal.
func (dc *DashboardController) Logout(c *gin.Context) {
	if token, err := c.Cookie(middlewares.CookieAccessToken); err == nil {
		dc.Auth.Forget(c.Request.Context(), token)
	}
	ClearTokenCookie(c, dc.Cfg)
	c.Redirect(http.StatusSeeOther, "/")
}

type stateCount struct {
	Label string
	Count int
}

type homeData struct {
	Counts []stateCount
}

// Home shows how many orders are in each state.
func (dc *DashboardController) Home(c *gin.Context) {
	orders := apiclient.NewResource[models.Order]("Orden", "/orders", dc.transport(c), dc.notifier(c))
	list, err := orders.List(c.Request.Context(), nil)
	if dc.signedOut(c, err) {
		return
	}

	counts := make(map[string]int)
	for _, o := range list {
		counts[o.State]++
	}
	data := homeData{}
	for _, opt := range orderStates {
		data.Counts = append(data.Counts, stateCount{Label: opt.Label, Count: counts[opt.Value]})
	}

	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
	}
	v := dc.view(c, "Inicio", data)
	v.LiveReload = true
	dc.render(c, status, "home.html", v)
}
