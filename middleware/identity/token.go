package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"acquisitions-gateway/middleware/admission/domain"
)

// Mint assina um token HS256 para p. ttl zero gera token sem expiração.
func Mint(secret []byte, p domain.Principal, issuer string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("identity: empty JWT secret")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  p.ID,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: p.ID,
		Role:   string(p.Role),
		Email:  p.Email,
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
