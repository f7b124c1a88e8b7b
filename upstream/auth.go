package upstream

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const userKey = "upstream_user"

type AuthController struct {
	DB         *gorm.DB
	Tokens     *utils.TokenIssuer
	AccessTTL  time.Duration
	WSTokenTTL time.Duration
}

// IssueToken handles POST /token with form fields username and password.
func (ac *AuthController) IssueToken(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		detail(c, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	var user models.User
	err := ac.DB.Where("username = ? OR email = ?", username, username).First(&user).Error
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			utils.ErrorLogger.Printf("Login lookup for %s failed: %v", username, err)
		}
		utils.InfoLogger.Printf("Rejected login for %s", username)
		detail(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := ac.Tokens.GenerateToken(user.ID, user.Role, utils.TokenAccess, ac.AccessTTL)
	if err != nil {
		utils.ErrorLogger.Printf("Token for user %d: %v", user.ID, err)
		detail(c, http.StatusInternalServerError, "could not issue token")
		return
	}
	utils.InfoLogger.Printf("User %s logged in", user.Username)
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// RequireUser checks the bearer access token and loads its user.
func (ac *AuthController) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			detail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := ac.Tokens.ParseToken(token, utils.TokenAccess)
		if err != nil {
			detail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		var user models.User
		if err := ac.DB.First(&user, claims.UserID).Error; err != nil {
			detail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRole lets only the given roles through. It must run after
// RequireUser.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := c.MustGet(userKey).(models.User)
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		detail(c, http.StatusForbidden, "Not enough permissions")
	}
}

// ValidateToken answers the user behind the access token and a fresh
// WebSocket token.
func (ac *AuthController) ValidateToken(c *gin.Context) {
	user := c.MustGet(userKey).(models.User)
	ws, err := ac.Tokens.GenerateToken(user.ID, user.Role, utils.TokenWS, ac.WSTokenTTL)
	if err != nil {
		utils.ErrorLogger.Printf("WS token for user %d: %v", user.ID, err)
		detail(c, http.StatusInternalServerError, "could not issue token")
		return
	}
	user.Password = ""
	c.JSON(http.StatusOK, models.Session{User: user, WSToken: ws})
}

// SeedAdmin creates the first administrator when no user has its username.
func SeedAdmin(db *gorm.DB, email, username, password string) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{Email: email, Username: username, Password: string(hash), Role: models.RoleAdmin}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	utils.InfoLogger.Printf("Seeded admin user %s", username)
	return nil
}
