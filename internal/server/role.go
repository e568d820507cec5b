package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

func (s *Server) ListResources(c echo.Context) error {
	resources, err := s.Roles.ListResources(c.Request().Context())
	if err != nil {
		return handleError(c, err, "Failed to list resources", nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"resources": resources,
		"actions":   domain.ValidActions(),
	})
}

func (s *Server) CreateRole(c echo.Context) error {
	var req domain.CreateRoleRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	role, err := s.Roles.CreateRole(c.Request().Context(), req)
	if err != nil {
		return handleError(c, err, "Failed to create role", log.Fields{"name": req.Name})
	}
	return c.JSON(http.StatusCreated, role)
}

func (s *Server) ListRoles(c echo.Context) error {
	roles, err := s.Roles.ListRoles(c.Request().Context())
	if err != nil {
		return handleError(c, err, "Failed to list roles", nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"roles": roles,
		"count": len(roles),
	})
}

func (s *Server) GetRole(c echo.Context) error {
	roleID := c.Param("role_id")
	role, err := s.Roles.GetRole(c.Request().Context(), roleID)
	if err != nil {
		return handleError(c, err, "Failed to get role", log.Fields{"role_id": roleID})
	}
	return c.JSON(http.StatusOK, role)
}

func (s *Server) UpdateRole(c echo.Context) error {
	roleID := c.Param("role_id")
	var req domain.UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	role, err := s.Roles.UpdateRole(c.Request().Context(), roleID, req)
	if err != nil {
		return handleError(c, err, "Failed to update role", log.Fields{"role_id": roleID})
	}
	return c.JSON(http.StatusOK, role)
}

func (s *Server) DeleteRole(c echo.Context) error {
	roleID := c.Param("role_id")
	if err := s.Roles.DeleteRole(c.Request().Context(), roleID); err != nil {
		return handleError(c, err, "Failed to delete role", log.Fields{"role_id": roleID})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) SetGrant(c echo.Context) error {
	roleID := c.Param("role_id")
	var req domain.SetGrantRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	grant, err := s.Roles.SetGrant(c.Request().Context(), roleID, req)
	if err != nil {
		return handleError(c, err, "Failed to set grant", log.Fields{
			"role_id":  roleID,
			"resource": req.Resource,
			"action":   req.Action,
		})
	}
	return c.JSON(http.StatusOK, grant)
}

func (s *Server) ListGrants(c echo.Context) error {
	roleID := c.Param("role_id")
	grants, err := s.Roles.ListGrants(c.Request().Context(), roleID)
	if err != nil {
		return handleError(c, err, "Failed to list grants", log.Fields{"role_id": roleID})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"grants": grants,
		"count":  len(grants),
	})
}
