package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/gate"
)

func (s *Server) CreateBoard(c echo.Context) error {
	var req domain.CreateBoardRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	board, err := s.Boards.CreateBoard(c.Request().Context(), owner(c), req)
	if err != nil {
		return handleError(c, err, "Failed to create board", log.Fields{"project_id": gate.ProjectID(c)})
	}
	return c.JSON(http.StatusCreated, board)
}

func (s *Server) ListBoards(c echo.Context) error {
	projectID := gate.ProjectID(c)
	boards, err := s.Boards.ListBoards(c.Request().Context(), projectID)
	if err != nil {
		return handleError(c, err, "Failed to list boards", log.Fields{"project_id": projectID})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"boards": boards,
		"count":  len(boards),
	})
}

func (s *Server) GetBoard(c echo.Context) error {
	id := c.Param("board_id")
	board, err := s.Boards.GetBoard(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get board", log.Fields{"board_id": id})
	}
	return c.JSON(http.StatusOK, board)
}

func (s *Server) UpdateBoard(c echo.Context) error {
	id := c.Param("board_id")
	var req domain.UpdateBoardRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	board, err := s.Boards.UpdateBoard(c.Request().Context(), id, req)
	if err != nil {
		return handleError(c, err, "Failed to update board", log.Fields{"board_id": id})
	}
	return c.JSON(http.StatusOK, board)
}

func (s *Server) DeleteBoard(c echo.Context) error {
	id := c.Param("board_id")
	if err := s.Boards.DeleteBoard(c.Request().Context(), id); err != nil {
		return handleError(c, err, "Failed to delete board", log.Fields{"board_id": id})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) CreateSprint(c echo.Context) error {
	boardID := c.Param("board_id")
	var req domain.CreateSprintRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	sprint, err := s.Boards.CreateSprint(c.Request().Context(), owner(c), boardID, req)
	if err != nil {
		return handleError(c, err, "Failed to create sprint", log.Fields{"board_id": boardID})
	}
	return c.JSON(http.StatusCreated, sprint)
}

func (s *Server) ListSprints(c echo.Context) error {
	boardID := c.Param("board_id")
	sprints, err := s.Boards.ListSprints(c.Request().Context(), boardID)
	if err != nil {
		return handleError(c, err, "Failed to list sprints", log.Fields{"board_id": boardID})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sprints": sprints,
		"count":   len(sprints),
	})
}

func (s *Server) GetSprint(c echo.Context) error {
	id := c.Param("sprint_id")
	sprint, err := s.Boards.GetSprint(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get sprint", log.Fields{"sprint_id": id})
	}
	return c.JSON(http.StatusOK, sprint)
}

func (s *Server) UpdateSprint(c echo.Context) error {
	id := c.Param("sprint_id")
	var req domain.UpdateSprintRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	sprint, err := s.Boards.UpdateSprint(c.Request().Context(), id, req)
	if err != nil {
		return handleError(c, err, "Failed to update sprint", log.Fields{"sprint_id": id})
	}
	return c.JSON(http.StatusOK, sprint)
}

func (s *Server) DeleteSprint(c echo.Context) error {
	id := c.Param("sprint_id")
	if err := s.Boards.DeleteSprint(c.Request().Context(), id); err != nil {
		return handleError(c, err, "Failed to delete sprint", log.Fields{"sprint_id": id})
	}
	return c.NoContent(http.StatusNoContent)
}
