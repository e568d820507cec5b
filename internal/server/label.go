package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/gate"
)

func (s *Server) CreateLabel(c echo.Context) error {
	var req domain.CreateLabelRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	label, err := s.Labels.CreateLabel(c.Request().Context(), owner(c), req)
	if err != nil {
		return handleError(c, err, "Failed to create label", log.Fields{"project_id": gate.ProjectID(c)})
	}
	return c.JSON(http.StatusCreated, label)
}

func (s *Server) ListLabels(c echo.Context) error {
	projectID := gate.ProjectID(c)
	labels, err := s.Labels.ListLabels(c.Request().Context(), projectID)
	if err != nil {
		return handleError(c, err, "Failed to list labels", log.Fields{"project_id": projectID})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"labels": labels,
		"count":  len(labels),
	})
}

func (s *Server) GetLabel(c echo.Context) error {
	id := c.Param("label_id")
	label, err := s.Labels.GetLabel(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get label", log.Fields{"label_id": id})
	}
	return c.JSON(http.StatusOK, label)
}

func (s *Server) UpdateLabel(c echo.Context) error {
	id := c.Param("label_id")
	var req domain.UpdateLabelRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	label, err := s.Labels.UpdateLabel(c.Request().Context(), id, req)
	if err != nil {
		return handleError(c, err, "Failed to update label", log.Fields{"label_id": id})
	}
	return c.JSON(http.StatusOK, label)
}

func (s *Server) DeleteLabel(c echo.Context) error {
	id := c.Param("label_id")
	if err := s.Labels.DeleteLabel(c.Request().Context(), id); err != nil {
		return handleError(c, err, "Failed to delete label", log.Fields{"label_id": id})
	}
	return c.NoContent(http.StatusNoContent)
}
