package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Context keys set by SessionMiddleware.
const (
	CtxSession = "session"
	CtxToken   = "token"
)

// CookieAccessToken holds the upstream bearer token.
const CookieAccessToken = "access_token"

// SessionMiddleware resolves the access_token cookie into a session when
// possible. It never aborts; gating is done by RouteGuard.
func SessionMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieAccessToken)
		if err != nil || token == "" {
			c.Next()
			return
		}

		session, err := auth.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthorized) {
				utils.ErrorLogger.Printf("Session lookup failed: %v", err)
			}
			c.Next()
			return
		}

		c.Set(CtxSession, session)
		c.Set(CtxToken, token)
		c.Next()
	}
}

// CurrentSession returns the session resolved for this request, if any.
func CurrentSession(c *gin.Context) (*models.Session, bool) {
	v, ok := c.Get(CtxSession)
	if !ok {
		return nil, false
	}
	s, ok := v.(*models.Session)
	return s, ok && s != nil
}

// CurrentToken returns the raw access token of the request.
func CurrentToken(c *gin.Context) string {
	return c.GetString(CtxToken)
}

// RequireAPIToken rejects proxy calls without the cookie.
func RequireAPIToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieAccessToken)
		if err != nil || token == "" {
			utils.RespondError(c, http.StatusUnauthorized, services.ErrUnauthorized)
			return
		}
		c.Set(CtxToken, token)
		c.Next()
	}
}

// CookieToastKey identifies the browser tab group a toast belongs to.
const (
	CookieToastKey = "toast_sid"
	CtxToastKey    = "toast_key"
)

// ToastKeyMiddleware makes sure every browser carries a random toast key.
func ToastKeyMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := c.Cookie(CookieToastKey)
		if err != nil || key == "" {
			key = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CookieToastKey, key, 0, "/", "", secure, true)
		}
		c.Set(CtxToastKey, key)
		c.Next()
	}
}
