// Package auth decides whether a storefront session may submit an order:
// authenticated shoppers pass on their bearer token, guests through a
// verified OTP challenge.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Aniket7411/Gems-frontend-sub001/pkg/middleware"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type shopperClaims struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// NewTokenValidator returns a middleware.TokenValidator for HS256 tokens
// signed with secret.
func NewTokenValidator(secret string) middleware.TokenValidator {
	key := []byte(secret)
	return func(tokenString string) (*middleware.Claims, error) {
		token, err := jwt.ParseWithClaims(tokenString, &shopperClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			return nil, ErrInvalidToken
		}

		claims, ok := token.Claims.(*shopperClaims)
		if !ok || !token.Valid || claims.Subject == "" {
			return nil, ErrInvalidToken
		}

		return &middleware.Claims{
			ShopperID: claims.Subject,
			Email:     claims.Email,
			Phone:     claims.Phone,
		}, nil
	}
}

// IssueToken signs an HS256 shopper token valid for ttl.
func IssueToken(secret string, c middleware.Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := shopperClaims{
		Email: c.Email,
		Phone: c.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ShopperID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
