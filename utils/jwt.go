package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds. A WS token cannot be used as an access token and vice versa.
const (
	TokenAccess = "access"
	TokenWS     = "ws"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type CustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens with a shared secret.
type TokenIssuer struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{Secret: []byte(secret), Issuer: "RestaurantPOS", Now: time.Now}
}

func (ti *TokenIssuer) GenerateToken(userID uint, role, kind string, ttl time.Duration) (string, error) {
	now := ti.Now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    ti.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.Secret)
}

// ParseToken verifies signature, expiry and kind.
func (ti *TokenIssuer) ParseToken(tokenString, kind string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return ti.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(ti.Now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || claims.Kind != kind || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
