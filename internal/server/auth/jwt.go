// Package auth issues and verifies the bearer tokens of the invoicing API.
// The UserID claim names the tenant whose invoices a request may touch.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims plus the tenant UserID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

const issuer = "invoicer"

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", common.ErrorInvalidPayload)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken verifies tokenString and returns its UserID. Expired
// tokens yield common.ErrTokenExpired, anything else that fails verification
// yields common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
