package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// RouteRule restricts a path prefix to some roles.
type RouteRule struct {
	Prefix string
	Roles  []string
}

// DashboardRules is the role table for dashboard pages.
var DashboardRules = []RouteRule{
	{Prefix: "/dashboard/users", Roles: []string{models.RoleAdmin}},
	{Prefix: "/dashboard/dishes", Roles: []string{models.RoleAdmin, models.RoleCashier}},
	{Prefix: "/dashboard/dish-types", Roles: []string{models.RoleAdmin, models.RoleCashier}},
}

func matches(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Allowed reports whether role may open path under rules.
func Allowed(rules []RouteRule, path, role string) bool {
	for _, r := range rules {
		if !matches(path, r.Prefix) {
			continue
		}
		for _, allowed := range r.Roles {
			if role == allowed {
				return true
			}
		}
		return false
	}
	return true
}

// RouteGuard redirects anonymous dashboard requests to "/", logged in
// requests for "/" to "/dashboard", and requests for pages the role may not
// see back to "/dashboard".
func RouteGuard(rules []RouteRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		session, ok := CurrentSession(c)

		switch {
		case path == "/" && ok:
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
			return
		case matches(path, "/dashboard") && !ok:
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		case ok && !Allowed(rules, path, session.User.Role):
			utils.InfoLogger.Printf("Role %s denied for %s", session.User.Role, path)
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
			return
		}
		c.Next()
	}
}
