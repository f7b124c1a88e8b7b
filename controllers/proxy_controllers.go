package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Cookie lifetime of the access token.
const tokenMaxAge = 7 * 24 * 60 * 60

var (
	errMissingURL   = errors.New("el parámetro url es requerido")
	errUnreachable  = errors.New("no se pudo contactar al servidor")
	errBadLoginBody = errors.New("usuario y contraseña son requeridos")
)

// ProxyController forwards browser calls to the upstream API, attaching the
// bearer token kept in the access_token cookie.
type ProxyController struct {
	Cfg     config.Config
	Auth    *services.AuthService
	Backend *services.BackendService
}

func NewProxyController(cfg config.Config, auth *services.AuthService) *ProxyController {
	return &ProxyController{Cfg: cfg, Auth: auth, Backend: auth.Backend}
}

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Login -> credentials -> access token -> session, then sets the cookie.
func (pc *ProxyController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errBadLoginBody)
		return
	}

	token, session, err := pc.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		pc.respondFailure(c, err)
		return
	}

	SetTokenCookie(c, pc.Cfg, token)
	c.JSON(http.StatusOK, session)
}

// Logout drops the cached session and expires the cookie.
func (pc *ProxyController) Logout(c *gin.Context) {
	if token, err := c.Cookie(middlewares.CookieAccessToken); err == nil {
		pc.Auth.Forget(c.Request.Context(), token)
	}
	ClearTokenCookie(c, pc.Cfg)
	c.JSON(http.StatusOK, gin.H{"message": "Sesión cerrada"})
}

// ValidateToken -> GET /validate_token with the cookie token.
func (pc *ProxyController) ValidateToken(c *gin.Context) {
	session, err := pc.Auth.Validate(c.Request.Context(), middlewares.CurrentToken(c))
	if err != nil {
		pc.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Get -> GET ${API_URL}<url>
func (pc *ProxyController) Get(c *gin.Context) {
	pc.forward(c, http.MethodGet)
}

// Save -> POST or PUT ${API_URL}<url>, depending on the incoming method.
func (pc *ProxyController) Save(c *gin.Context) {
	pc.forward(c, c.Request.Method)
}

// Delete -> DELETE ${API_URL}<url>
func (pc *ProxyController) Delete(c *gin.Context) {
	pc.forward(c, http.MethodDelete)
}

func (pc *ProxyController) forward(c *gin.Context, method string) {
	path := c.Query("url")
	if path == "" {
		utils.RespondError(c, http.StatusBadRequest, errMissingURL)
		return
	}

	query := c.Request.URL.Query()
	query.Del("url")

	var body []byte
	if method == http.MethodPost || method == http.MethodPut {
		raw, err := c.GetRawData()
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		body = raw
	}

	resp, err := pc.Backend.Do(c.Request.Context(), services.BackendRequest{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
		Token:  middlewares.CurrentToken(c),
	})
	if err != nil {
		pc.respondFailure(c, err)
		return
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		utils.RespondError(c, http.StatusUnauthorized, services.ErrUnauthorized)
	case !resp.OK():
		utils.RespondErrorBody(c, resp.Status, services.DecodeBody(resp.Body))
	case len(resp.Body) == 0:
		c.Status(resp.Status)
	default:
		c.Data(resp.Status, "application/json", resp.Body)
	}
}

// respondFailure maps errors coming out of the services into {error:...}.
func (pc *ProxyController) respondFailure(c *gin.Context, err error) {
	var upstreamErr *services.UpstreamError
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		utils.RespondError(c, http.StatusUnauthorized, services.ErrUnauthorized)
	case errors.Is(err, services.ErrBadPath):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.As(err, &upstreamErr):
		if upstreamErr.Status == http.StatusUnauthorized {
			utils.RespondError(c, http.StatusUnauthorized, services.ErrUnauthorized)
			return
		}
		utils.RespondErrorBody(c, upstreamErr.Status, upstreamErr.Decoded())
	default:
		utils.ErrorLogger.Printf("Upstream call failed: %v", err)
		utils.RespondError(c, http.StatusBadGateway, errUnreachable)
	}
}

// SetTokenCookie stores the access token: 7 days, HttpOnly, Secure and
// SameSite=None in production, SameSite=Lax otherwise.
func SetTokenCookie(c *gin.Context, cfg config.Config, token string) {
	if cfg.IsProduction() {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(middlewares.CookieAccessToken, token, tokenMaxAge, "/", "", cfg.IsProduction(), true)
}

func ClearTokenCookie(c *gin.Context, cfg config.Config) {
	if cfg.IsProduction() {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(middlewares.CookieAccessToken, "", -1, "/", "", cfg.IsProduction(), true)
}
