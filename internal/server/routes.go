package server

import (
	"github.com/labstack/echo/v4"

	"project-service/internal/domain"
	"project-service/internal/gate"
)

// Register mounts the API. Every route sits behind the identity middleware; routes
// that touch a project also pass the gate for the resource and action they perform.
func (s *Server) Register(e *echo.Echo, identity *Identity, g *gate.Gate) {
	e.GET("/health", s.HealthCheck)

	api := e.Group("/api/v1", identity.Middleware())

	api.GET("/resources", s.ListResources)
	api.GET("/roles", s.ListRoles)
	api.POST("/roles", s.CreateRole)
	api.GET("/roles/:role_id", s.GetRole)
	api.PUT("/roles/:role_id", s.UpdateRole)
	api.DELETE("/roles/:role_id", s.DeleteRole)
	api.GET("/roles/:role_id/grants", s.ListGrants)
	api.PUT("/roles/:role_id/grants", s.SetGrant)

	project := gate.Direct("project_id")
	api.POST("/projects", s.CreateProject)
	api.GET("/projects", s.ListProjects)
	api.GET("/projects/:project_id", s.GetProject, g.Guard(domain.KindProject, domain.ActionView, project))
	api.PATCH("/projects/:project_id", s.UpdateProject, g.Guard(domain.KindProject, domain.ActionChange, project))
	api.DELETE("/projects/:project_id", s.DeleteProject, g.Guard(domain.KindProject, domain.ActionDelete, project))

	api.GET("/projects/:project_id/members", s.ListMembers, g.Guard(domain.KindMembership, domain.ActionView, project))
	api.PUT("/projects/:project_id/members", s.AssignRole, g.Guard(domain.KindMembership, domain.ActionChange, project))
	api.DELETE("/projects/:project_id/members/:actor_id", s.RemoveMember, g.Guard(domain.KindMembership, domain.ActionDelete, project))

	api.GET("/projects/:project_id/audit", s.ListAudit, g.Guard(domain.KindAudit, domain.ActionView, project))

	api.GET("/projects/:project_id/boards", s.ListBoards, g.Guard(domain.KindBoard, domain.ActionView, project))
	api.POST("/projects/:project_id/boards", s.CreateBoard, g.Guard(domain.KindBoard, domain.ActionAdd, project))

	api.GET("/projects/:project_id/labels", s.ListLabels, g.Guard(domain.KindLabel, domain.ActionView, project))
	api.POST("/projects/:project_id/labels", s.CreateLabel, g.Guard(domain.KindLabel, domain.ActionAdd, project))

	label := gate.Via(domain.KindLabel, "label_id")
	api.GET("/labels/:label_id", s.GetLabel, g.Guard(domain.KindLabel, domain.ActionView, label))
	api.PATCH("/labels/:label_id", s.UpdateLabel, g.Guard(domain.KindLabel, domain.ActionChange, label))
	api.DELETE("/labels/:label_id", s.DeleteLabel, g.Guard(domain.KindLabel, domain.ActionDelete, label))

	board := gate.Via(domain.KindBoard, "board_id")
	api.GET("/boards/:board_id", s.GetBoard, g.Guard(domain.KindBoard, domain.ActionView, board))
	api.PATCH("/boards/:board_id", s.UpdateBoard, g.Guard(domain.KindBoard, domain.ActionChange, board))
	api.DELETE("/boards/:board_id", s.DeleteBoard, g.Guard(domain.KindBoard, domain.ActionDelete, board))
	api.GET("/boards/:board_id/sprints", s.ListSprints, g.Guard(domain.KindSprint, domain.ActionView, board))
	api.POST("/boards/:board_id/sprints", s.CreateSprint, g.Guard(domain.KindSprint, domain.ActionAdd, board))
	api.GET("/boards/:board_id/tasks", s.ListTasks, g.Guard(domain.KindTask, domain.ActionView, board))
	api.POST("/boards/:board_id/tasks", s.CreateTask, g.Guard(domain.KindTask, domain.ActionAdd, board))

	sprint := gate.Via(domain.KindSprint, "sprint_id")
	api.GET("/sprints/:sprint_id", s.GetSprint, g.Guard(domain.KindSprint, domain.ActionView, sprint))
	api.PATCH("/sprints/:sprint_id", s.UpdateSprint, g.Guard(domain.KindSprint, domain.ActionChange, sprint))
	api.DELETE("/sprints/:sprint_id", s.DeleteSprint, g.Guard(domain.KindSprint, domain.ActionDelete, sprint))

	task := gate.Via(domain.KindTask, "task_id")
	api.GET("/tasks/:task_id", s.GetTask, g.Guard(domain.KindTask, domain.ActionView, task))
	api.PATCH("/tasks/:task_id", s.UpdateTask, g.Guard(domain.KindTask, domain.ActionChange, task))
	api.DELETE("/tasks/:task_id", s.DeleteTask, g.Guard(domain.KindTask, domain.ActionDelete, task))
	api.GET("/tasks/:task_id/comments", s.ListComments, g.Guard(domain.KindComment, domain.ActionView, task))
	api.POST("/tasks/:task_id/comments", s.AddComment, g.Guard(domain.KindComment, domain.ActionAdd, task))

	comment := gate.Via(domain.KindComment, "comment_id")
	api.PATCH("/comments/:comment_id", s.EditComment, g.Guard(domain.KindComment, domain.ActionChange, comment))
	api.DELETE("/comments/:comment_id", s.DeleteComment, g.Guard(domain.KindComment, domain.ActionDelete, comment))
}
