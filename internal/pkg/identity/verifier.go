// Package identity verifies bearer tokens presented at the realtime
// handshake and resolves them to a caller identity. Verified identities
// are cached briefly so reconnect storms do not re-parse the same token.
package identity

import (
	"strings"
	"time"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type Identity struct {
	UserID uuid.UUID
	Role   entity.UserRole
	Name   string
}

type Verifier struct {
	secret string
	cache  *cache.Cache
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: secret,
		cache:  cache.New(2*time.Minute, 5*time.Minute),
	}
}

// Verify parses and validates tokenStr, returning the caller identity.
// An empty signing secret is a deployment fault, not a client fault.
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	if v.secret == "" {
		return nil, apperror.NewConfiguration("JWT secret is not configured")
	}
	if tokenStr == "" {
		return nil, apperror.NewAuthentication("Missing token")
	}

	if cached, ok := v.cache.Get(tokenStr); ok {
		id := cached.(Identity)
		return &id, nil
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(v.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.NewAuthentication("Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.NewAuthentication("Invalid claims")
	}

	rawId, _ := claims["user_id"].(string)
	userId, err := uuid.Parse(rawId)
	if err != nil {
		return nil, apperror.NewAuthentication("Invalid user id claim")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = string(entity.RoleCustomer)
	}

	firstName, _ := claims["first_name"].(string)
	lastName, _ := claims["last_name"].(string)
	name := strings.TrimSpace(firstName + " " + lastName)

	id := Identity{
		UserID: userId,
		Role:   entity.UserRole(role),
		Name:   name,
	}

	ttl := cacheTTL(claims)
	if ttl > 0 {
		v.cache.Set(tokenStr, id, ttl)
	}

	return &id, nil
}

// cacheTTL bounds the cache entry by the token expiry so a token never
// outlives itself in the cache.
func cacheTTL(claims jwt.MapClaims) time.Duration {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return cache.DefaultExpiration
	}
	remaining := time.Until(exp.Time)
	if remaining <= 0 {
		return 0
	}
	if remaining > 2*time.Minute {
		return 2 * time.Minute
	}
	return remaining
}
