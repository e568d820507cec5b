package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/actor"
	"project-service/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the identity claims of a bearer token. The subject is the actor id.
type Claims struct {
	TenantID    string `json:"tenant_id"`
	TenantAdmin bool   `json:"tenant_admin,omitempty"`
	jwt.RegisteredClaims
}

// Identity validates HS256 bearer tokens and opens the actor scope of each request.
type Identity struct {
	secret []byte
	issuer string
}

func NewIdentity(secret, issuer string) *Identity {
	return &Identity{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for a. It backs local tooling and tests; production tokens come
// from the identity provider.
func (i *Identity) Issue(a domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		TenantID:    a.TenantID,
		TenantAdmin: a.TenantAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Identity) Parse(token string) (domain.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Actor{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" || claims.TenantID == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	if claims.Subject == domain.SystemActorID {
		return domain.Actor{}, ErrInvalidToken
	}

	return domain.Actor{
		ID:          claims.Subject,
		TenantID:    claims.TenantID,
		TenantAdmin: claims.TenantAdmin,
	}, nil
}

// Middleware rejects requests without a valid token and runs the rest of the chain
// inside the caller's actor scope.
func (i *Identity) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			}

			a, err := i.Parse(token)
			if err != nil {
				log.WithField("path", c.Path()).Info("Rejected request with invalid token")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			}

			req := c.Request()
			return actor.Run(req.Context(), a, func(ctx context.Context) error {
				c.SetRequest(req.WithContext(ctx))
				return next(c)
			})
		}
	}
}
