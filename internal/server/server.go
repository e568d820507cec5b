package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/gate"
	"project-service/internal/service"
)

// Services bundles the use cases the HTTP layer exposes.
type Services struct {
	Projects    service.ProjectServiceInterface
	Boards      service.BoardServiceInterface
	Tasks       service.TaskServiceInterface
	Comments    service.CommentServiceInterface
	Labels      service.LabelServiceInterface
	Memberships service.MembershipServiceInterface
	Roles       service.RoleServiceInterface
	Audit       AuditReader
}

type AuditReader interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error)
}

type Server struct {
	Services
	db *sql.DB
}

func NewServer(services Services, db *sql.DB) *Server {
	return &Server{
		Services: services,
		db:       db,
	}
}

func (s *Server) HealthCheck(c echo.Context) error {
	if err := s.db.PingContext(c.Request().Context()); err != nil {
		log.WithField("error", err).Error("Health check failed: database is down")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection error",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleError writes the JSON error response for a failed use case. Audit failures are
// checked first: the change they accompany is already committed.
func handleError(c echo.Context, err error, msg string, fields log.Fields) error {
	entry := log.WithError(err).WithFields(fields)
	var denied *domain.DeniedError

	switch {
	case errors.Is(err, domain.ErrAuditWriteFailure):
		entry.Error(msg + ": audit write failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":     "change committed but audit write failed",
			"committed": "true",
		})
	case errors.As(err, &denied):
		return c.JSON(http.StatusForbidden, map[string]string{"error": denied.Message()})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrBadRequest):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "resource not found"})
	case errors.Is(err, domain.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "resource already exists"})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	entry.Error(msg)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func bindError(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error": "invalid request body",
	})
}

// owner returns the owner the route's gate resolved. Routes without a gate never call it.
func owner(c echo.Context) domain.Owner {
	o, _ := gate.OwnerFrom(c)
	return o
}

func pagination(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}
