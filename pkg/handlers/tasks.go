package handlers

import (
	"net/http"
	"strings"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/gateway"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// TaskHandler handles task mutations. All three routes go through the
// gateway so the access check and the broadcast are never skipped.
type TaskHandler struct {
	config  *config.Config
	db      database.DatabaseInterface
	gateway *gateway.Gateway
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(cfg *config.Config, db database.DatabaseInterface, gw *gateway.Gateway) *TaskHandler {
	return &TaskHandler{
		config:  cfg,
		db:      db,
		gateway: gw,
	}
}

// CreateTask handles POST /api/projects/{projectId}/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")

	var req models.CreateTaskRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		utils.WriteBadRequestResponse(w, "Task title is required")
		return
	}
	if req.Status != "" && !models.ValidStatus(req.Status) {
		utils.WriteBadRequestResponse(w, "Invalid task status")
		return
	}

	task, err := h.gateway.CreateTask(user.ID, projectID, req)
	if err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	utils.WriteCreatedResponse(w, task)
}

// UpdateTask handles PATCH /api/tasks/{taskId}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	taskID := chi.URLParam(r, "taskId")

	var req models.UpdateTaskRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Status != nil && !models.ValidStatus(*req.Status) {
		utils.WriteBadRequestResponse(w, "Invalid task status")
		return
	}

	task, err := h.gateway.UpdateTask(user.ID, taskID, req)
	if err != nil {
		writeGatewayError(w, err, "Task not found")
		return
	}

	utils.WriteSuccessResponse(w, task)
}

// DeleteTask handles DELETE /api/tasks/{taskId}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	taskID := chi.URLParam(r, "taskId")

	if err := h.gateway.DeleteTask(user.ID, taskID); err != nil {
		writeGatewayError(w, err, "Task not found")
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{
		"message": "Task deleted successfully",
	})
}
