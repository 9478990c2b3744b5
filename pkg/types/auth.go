package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principleKey = "auth.principle"

var ErrInvalidToken = errors.New("invalid or expired token")

// Principle is the authenticated caller every handler operates on behalf of.
type Principle struct {
	UserID string
	Role   string
	Cefr   string
}

type sessionClaims struct {
	Role string `json:"role"`
	Cefr string `json:"cefr"`
	jwt.RegisteredClaims
}

// TokenVerifier validates a bearer token and resolves the caller.
type TokenVerifier interface {
	Verify(token string) (*Principle, error)
}

// TokenIssuer signs tokens; the server only verifies, issuance is here so
// tests and tooling can mint valid tokens against the same secret.
type TokenIssuer interface {
	Issue(principle *Principle, ttl time.Duration) (string, error)
}

// TokenService both verifies and issues tokens against the shared secret.
type TokenService interface {
	TokenVerifier
	TokenIssuer
}

type hmacTokenService struct {
	secret []byte
}

func NewTokenService(secret string) TokenService {
	return &hmacTokenService{secret: []byte(secret)}
}

func (s *hmacTokenService) Verify(token string) (*Principle, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Principle{
		UserID: claims.Subject,
		Role:   claims.Role,
		Cefr:   claims.Cefr,
	}, nil
}

func (s *hmacTokenService) Issue(principle *Principle, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Role: principle.Role,
		Cefr: principle.Cefr,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principle.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// SetAuthPrinciple attaches the resolved caller to the gin context.
func SetAuthPrinciple(c *gin.Context, principle *Principle) {
	c.Set(principleKey, principle)
}

// GetAuthPrinciple returns the caller resolved by the auth middleware.
func GetAuthPrinciple(c *gin.Context) (*Principle, bool) {
	v, ok := c.Get(principleKey)
	if !ok {
		return nil, false
	}
	principle, ok := v.(*Principle)
	return principle, ok
}
