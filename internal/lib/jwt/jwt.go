package jwt

import (
	"errors"
	"fmt"
	"time"

	"account_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims binds a session to an account. Sessions carry no expiry; the
// signing secret is the only thing that can invalidate them.
type Claims struct {
	Email     string `json:"email"`
	AccountID string `json:"id"`
	jwt.RegisteredClaims
}

// NewToken signs a session assertion for acc with secret.
func NewToken(acc models.Account, secret string, now time.Time) (string, error) {
	const op = "jwt.NewToken"

	if secret == "" {
		return "", fmt.Errorf("%s: empty signing secret", op)
	}

	claims := Claims{
		Email:     acc.Email,
		AccountID: acc.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// ParseToken verifies tokenStr against secret and returns its claims.
func ParseToken(tokenStr, secret string) (Claims, error) {
	const op = "jwt.ParseToken"

	var claims Claims

	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method %v", op, t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if !parsed.Valid || claims.AccountID == "" || claims.Email == "" {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}
