// Package tokens issues and verifies the stateless bearer tokens handed
// out on login.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"todo-service/apperr"
)

// Payload is the identity carried by a token.
type Payload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Claims are the JWT claims: the payload plus iat, jti and optional exp.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service signs with a single HMAC secret. A zero ttl issues tokens that
// never expire and accepts tokens without exp.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs payload with HS256.
func (s *Service) Issue(p Payload) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   p.UserID,
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.New().String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Internal("Failed to issue token", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry. It never touches a store.
func (s *Service) Verify(tokenString string) (*Payload, error) {
	if tokenString == "" {
		return nil, apperr.Verification("Missing token", nil)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.ttl > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, apperr.Verification(verificationMessage(err), err)
	}
	if !token.Valid {
		return nil, apperr.Verification("Invalid token", nil)
	}

	return &Payload{UserID: claims.UserID, Username: claims.Username}, nil
}

func verificationMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Malformed token"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "Token has no expiry"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}
