// Package gate guards operations with project-scoped permission checks.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/actor"
	"project-service/internal/domain"
)

const (
	ownerKey     = "gate.owner"
	ProjectIDKey = "project_id"
)

type ownerCtxKey struct{}

type OwnerResolver interface {
	Resolve(ctx context.Context, kind, id string) (domain.Owner, error)
}

type Authority interface {
	Check(ctx context.Context, actorID string, owner domain.Owner, resource, action string) (domain.Decision, error)
}

// Reference names the request parameter that identifies the guarded resource.
type Reference struct {
	Kind  string
	Param string
}

// Direct references a project id held in param.
func Direct(param string) Reference {
	return Reference{Kind: domain.KindProject, Param: param}
}

// Via references an entity of kind whose owning project is looked up.
func Via(kind, param string) Reference {
	return Reference{Kind: kind, Param: param}
}

type Gate struct {
	resolver  OwnerResolver
	authority Authority
}

func New(resolver OwnerResolver, authority Authority) *Gate {
	return &Gate{resolver: resolver, authority: authority}
}

// Authorize runs the full check for one operation. params returns the raw value of a
// request parameter, or "" when it is absent.
func (g *Gate) Authorize(ctx context.Context, resource, action string, ref Reference, params func(string) string) (domain.Owner, error) {
	id := params(ref.Param)
	if id == "" {
		return domain.Owner{}, fmt.Errorf("%w: missing `%s` in request", domain.ErrBadRequest, ref.Param)
	}

	current, ok := actor.Current(ctx)
	if !ok {
		return domain.Owner{}, domain.ErrUnauthenticated
	}

	owner, err := g.resolver.Resolve(ctx, ref.Kind, id)
	if err != nil {
		return domain.Owner{}, err
	}

	decision, err := g.authority.Check(ctx, current.ID, owner, resource, action)
	if err != nil {
		return domain.Owner{}, err
	}
	if !decision.Allowed {
		return domain.Owner{}, &domain.DeniedError{Kind: resource, Action: action, Decision: decision}
	}
	return owner, nil
}

// Guard is the echo middleware form of Authorize. Path parameters win over query
// parameters. The resolved owner is available to the handler through OwnerFrom and
// ProjectID.
func (g *Gate) Guard(resource, action string, ref Reference) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			owner, err := g.Authorize(req.Context(), resource, action, ref, func(name string) string {
				if v := c.Param(name); v != "" {
					return v
				}
				return c.QueryParam(name)
			})
			if err != nil {
				return deny(c, resource, action, err)
			}

			c.Set(ownerKey, owner)
			if c.Param(ProjectIDKey) == "" {
				c.Set(ProjectIDKey, owner.ProjectID)
			}
			c.SetRequest(req.WithContext(WithOwner(req.Context(), owner)))
			return next(c)
		}
	}
}

func deny(c echo.Context, resource, action string, err error) error {
	status, message := StatusFor(err)
	entry := log.WithError(err).WithFields(log.Fields{
		"resource": resource,
		"action":   action,
		"path":     c.Path(),
		"status":   status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Authorization gate failed")
	} else {
		entry.Info("Authorization gate rejected request")
	}
	return c.JSON(status, map[string]string{"error": message})
}

// StatusFor maps gate errors to an HTTP status and a caller-facing message.
func StatusFor(err error) (int, string) {
	var denied *domain.DeniedError
	switch {
	case errors.As(err, &denied):
		return http.StatusForbidden, denied.Message()
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, domain.ErrUnsupportedKind):
		return http.StatusInternalServerError, "unsupported lookup key"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func WithOwner(ctx context.Context, owner domain.Owner) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, owner)
}

// OwnerFromContext returns the owner a gate resolved for the request.
func OwnerFromContext(ctx context.Context) (domain.Owner, bool) {
	owner, ok := ctx.Value(ownerCtxKey{}).(domain.Owner)
	return owner, ok
}

func OwnerFrom(c echo.Context) (domain.Owner, bool) {
	owner, ok := c.Get(ownerKey).(domain.Owner)
	return owner, ok
}

// ProjectID returns the project id from the path, or the one the gate injected.
func ProjectID(c echo.Context) string {
	if id := c.Param(ProjectIDKey); id != "" {
		return id
	}
	id, _ := c.Get(ProjectIDKey).(string)
	return id
}
