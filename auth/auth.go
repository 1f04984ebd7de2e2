package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims is carried by a reconnect token. It names a connection, not a user.
type SessionClaims struct {
	ConnectionID string `json:"cid"`
	jwt.StandardClaims
}

// TokenIssuer signs and verifies reconnect tokens.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token that lets the holder reclaim connectionID.
func (ti *TokenIssuer) Issue(connectionID string) (string, error) {
	now := ti.now()
	claims := &SessionClaims{
		ConnectionID: connectionID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ti.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.key)
}

// Parse verifies tokenString and returns the connection it names.
func (ti *TokenIssuer) Parse(tokenString string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrInvalidToken)
	}
	if !token.Valid || claims.ConnectionID == "" {
		return "", ErrInvalidToken
	}
	return claims.ConnectionID, nil
}
