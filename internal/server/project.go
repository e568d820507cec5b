package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/gate"
)

func (s *Server) CreateProject(c echo.Context) error {
	var req domain.CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	project, err := s.Projects.CreateProject(c.Request().Context(), req)
	if err != nil {
		return handleError(c, err, "Failed to create project", log.Fields{"name": req.Name})
	}
	return c.JSON(http.StatusCreated, project)
}

func (s *Server) ListProjects(c echo.Context) error {
	limit, offset := pagination(c)
	projects, err := s.Projects.ListProjects(c.Request().Context(), limit, offset)
	if err != nil {
		return handleError(c, err, "Failed to list projects", nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

func (s *Server) GetProject(c echo.Context) error {
	id := gate.ProjectID(c)
	project, err := s.Projects.GetProject(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get project", log.Fields{"project_id": id})
	}
	return c.JSON(http.StatusOK, project)
}

func (s *Server) UpdateProject(c echo.Context) error {
	id := gate.ProjectID(c)
	var req domain.UpdateProjectRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	project, err := s.Projects.UpdateProject(c.Request().Context(), id, req)
	if err != nil {
		return handleError(c, err, "Failed to update project", log.Fields{"project_id": id})
	}
	return c.JSON(http.StatusOK, project)
}

func (s *Server) DeleteProject(c echo.Context) error {
	id := gate.ProjectID(c)
	if err := s.Projects.DeleteProject(c.Request().Context(), id); err != nil {
		return handleError(c, err, "Failed to delete project", log.Fields{"project_id": id})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ListMembers(c echo.Context) error {
	id := gate.ProjectID(c)
	members, err := s.Memberships.ListMembers(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to list members", log.Fields{"project_id": id})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// AssignRole answers 201 when the actor joined the project and 200 when an existing
// membership changed role.
func (s *Server) AssignRole(c echo.Context) error {
	var req domain.AssignRoleRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	membership, created, err := s.Memberships.AssignRole(c.Request().Context(), owner(c), req)
	if err != nil {
		return handleError(c, err, "Failed to assign role", log.Fields{
			"project_id": gate.ProjectID(c),
			"actor_id":   req.ActorID,
			"role_id":    req.RoleID,
		})
	}
	if created {
		return c.JSON(http.StatusCreated, membership)
	}
	return c.JSON(http.StatusOK, membership)
}

func (s *Server) RemoveMember(c echo.Context) error {
	projectID := gate.ProjectID(c)
	actorID := c.Param("actor_id")
	if err := s.Memberships.RemoveMember(c.Request().Context(), projectID, actorID); err != nil {
		return handleError(c, err, "Failed to remove member", log.Fields{
			"project_id": projectID,
			"actor_id":   actorID,
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ListAudit(c echo.Context) error {
	limit, offset := pagination(c)
	o := owner(c)
	entries, err := s.Audit.List(c.Request().Context(), domain.AuditFilter{
		TenantID:   o.TenantID,
		ProjectID:  o.ProjectID,
		TargetKind: c.QueryParam("target_kind"),
		TargetID:   c.QueryParam("target_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return handleError(c, err, "Failed to list audit entries", log.Fields{"project_id": o.ProjectID})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
