package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

// CreateTask files the task under the board's project; the gate resolved it from the
// board and it is not taken from the body.
func (s *Server) CreateTask(c echo.Context) error {
	boardID := c.Param("board_id")
	var req domain.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	task, err := s.Tasks.CreateTask(c.Request().Context(), owner(c), boardID, req)
	if err != nil {
		return handleError(c, err, "Failed to create task", log.Fields{"board_id": boardID})
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) ListTasks(c echo.Context) error {
	boardID := c.Param("board_id")
	limit, offset := pagination(c)
	tasks, err := s.Tasks.ListTasks(c.Request().Context(), boardID, limit, offset)
	if err != nil {
		return handleError(c, err, "Failed to list tasks", log.Fields{"board_id": boardID})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (s *Server) GetTask(c echo.Context) error {
	id := c.Param("task_id")
	task, err := s.Tasks.GetTask(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err, "Failed to get task", log.Fields{"task_id": id})
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) UpdateTask(c echo.Context) error {
	id := c.Param("task_id")
	var req domain.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	task, err := s.Tasks.UpdateTask(c.Request().Context(), id, req)
	if err != nil {
		return handleError(c, err, "Failed to update task", log.Fields{"task_id": id})
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) DeleteTask(c echo.Context) error {
	id := c.Param("task_id")
	if err := s.Tasks.DeleteTask(c.Request().Context(), id); err != nil {
		return handleError(c, err, "Failed to delete task", log.Fields{"task_id": id})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) AddComment(c echo.Context) error {
	taskID := c.Param("task_id")
	var req domain.CommentRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	comment, err := s.Comments.AddComment(c.Request().Context(), owner(c), taskID, req)
	if err != nil {
		return handleError(c, err, "Failed to add comment", log.Fields{"task_id": taskID})
	}
	return c.JSON(http.StatusCreated, comment)
}

func (s *Server) ListComments(c echo.Context) error {
	taskID := c.Param("task_id")
	comments, err := s.Comments.ListComments(c.Request().Context(), taskID)
	if err != nil {
		return handleError(c, err, "Failed to list comments", log.Fields{"task_id": taskID})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"comments": comments,
		"count":    len(comments),
	})
}

func (s *Server) EditComment(c echo.Context) error {
	id := c.Param("comment_id")
	var req domain.CommentRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c)
	}

	comment, err := s.Comments.EditComment(c.Request().Context(), id, req)
	if err != nil {
		return handleError(c, err, "Failed to edit comment", log.Fields{"comment_id": id})
	}
	return c.JSON(http.StatusOK, comment)
}

func (s *Server) DeleteComment(c echo.Context) error {
	id := c.Param("comment_id")
	if err := s.Comments.DeleteComment(c.Request().Context(), id); err != nil {
		return handleError(c, err, "Failed to delete comment", log.Fields{"comment_id": id})
	}
	return c.NoContent(http.StatusNoContent)
}
