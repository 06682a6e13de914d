package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"messenger-service/internal/models"
	"messenger-service/internal/providers"
)

// ActorKey is the gin context key holding the authenticated models.ProviderRef.
const ActorKey = "actor"

var ErrUnregisteredProvider = errors.New("provider alias is not registered")

// Claims identify the acting provider: its alias and its id as the subject.
type Claims struct {
	ProviderAlias string `json:"provider_alias"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens against the provider directory.
type TokenVerifier struct {
	secret    []byte
	directory *providers.Directory
}

func NewTokenVerifier(secret string, directory *providers.Directory) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), directory: directory}
}

// Sign issues a token for ref. It backs local tooling and tests.
func (v *TokenVerifier) Sign(ref models.ProviderRef, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ProviderAlias: ref.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ref.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify parses the token and returns the provider it was issued to.
func (v *TokenVerifier) Verify(tokenString string) (models.ProviderRef, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return models.ProviderRef{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return models.ProviderRef{}, errors.New("invalid token")
	}
	if !v.directory.IsRegistered(claims.ProviderAlias) {
		return models.ProviderRef{}, ErrUnregisteredProvider
	}
	return models.Ref(claims.ProviderAlias, claims.Subject), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware validates the Authorization header and stores the actor.
func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		token, ok := BearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		actor, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// Actor returns the authenticated provider, if any.
func Actor(c *gin.Context) (models.ProviderRef, bool) {
	val, ok := c.Get(ActorKey)
	if !ok {
		return models.ProviderRef{}, false
	}
	actor, ok := val.(models.ProviderRef)
	return actor, ok && !actor.IsZero()
}
