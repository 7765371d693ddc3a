package mock

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

var errBadToken = errors.New("Invalid or expired token")

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// NewTokens returns a token issuer. An empty secret is replaced by a fixed
// development key.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if secret == "" {
		secret = "ledgerview-dev-secret"
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID string) (string, error) {
	now := t.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
	})
	return tok.SignedString(t.Secret)
}

// Parse verifies raw and returns its subject.
func (t *Tokens) Parse(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.Secret, nil
	}, jwt.WithTimeFunc(t.Now))
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", errBadToken
	}
	return claims.Subject, nil
}
