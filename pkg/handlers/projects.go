package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"taskboard-backend/pkg/authz"
	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/gateway"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// ProjectHandler handles project CRUD, membership management and the
// read-side endpoints (detail, analytics, export, public directory)
type ProjectHandler struct {
	config  *config.Config
	db      database.DatabaseInterface
	gateway *gateway.Gateway
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(cfg *config.Config, db database.DatabaseInterface, gw *gateway.Gateway) *ProjectHandler {
	return &ProjectHandler{
		config:  cfg,
		db:      db,
		gateway: gw,
	}
}

// ListProjects handles GET /api/projects
// Returns the projects the caller owns or is a member of.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projects, err := h.db.ListUserProjects(user.ID)
	if err != nil {
		writeGatewayError(w, err, "Projects not found")
		return
	}

	utils.WriteSuccessResponse(w, projects)
}

// CreateProject handles POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.CreateProjectRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		utils.WriteBadRequestResponse(w, "Project name is required")
		return
	}

	project, err := h.gateway.CreateProject(user.ID, req.Name)
	if err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	utils.WriteCreatedResponse(w, project)
}

// GetProject handles GET /api/projects/{projectId}
// The full read: project, owner email, tasks and members in one response.
// Reconnecting clients use this to rebuild board state before replaying
// live events.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")

	detail, err := h.projectDetail(user.ID, projectID)
	if err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	utils.WriteSuccessResponse(w, detail)
}

// projectDetail authorizes a read and assembles the full project view
func (h *ProjectHandler) projectDetail(actorID, projectID string) (*models.ProjectDetail, error) {
	snap, err := h.gateway.Authorize(actorID, projectID, authz.ActionRead)
	if err != nil {
		return nil, err
	}

	tasks, err := h.db.ListProjectTasks(projectID)
	if err != nil {
		return nil, err
	}
	members, err := h.db.ListProjectMembers(projectID)
	if err != nil {
		return nil, err
	}

	ownerEmail := ""
	if owner, err := h.db.GetUserByID(snap.Project.OwnerID); err == nil {
		ownerEmail = owner.Email
	}

	return &models.ProjectDetail{
		Project:    *snap.Project,
		OwnerEmail: ownerEmail,
		Tasks:      tasks,
		Members:    members,
	}, nil
}

// RenameProject handles PUT /api/projects/{projectId}
func (h *ProjectHandler) RenameProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")

	var req models.RenameProjectRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		utils.WriteBadRequestResponse(w, "Project name is required")
		return
	}

	project, err := h.gateway.RenameProject(user.ID, projectID, req.Name)
	if err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	utils.WriteSuccessResponse(w, project)
}

// DeleteProject handles DELETE /api/projects/{projectId}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")

	if err := h.gateway.DeleteProject(user.ID, projectID); err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{
		"message": "Project deleted successfully",
	})
}

// InviteMember handles POST /api/projects/{projectId}/invite
func (h *ProjectHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")

	var req models.InviteMemberRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		utils.WriteBadRequestResponse(w, "Email is required")
		return
	}

	membership, err := h.gateway.InviteMember(user.ID, projectID, req.Email)
	if err != nil {
		writeGatewayError(w, err, "User or project not found")
		return
	}

	utils.WriteCreatedResponse(w, membership)
}

// RemoveMember handles DELETE /api/projects/{projectId}/members/{userId}
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")
	targetUserID := chi.URLParam(r, "userId")

	if err := h.gateway.RemoveMember(user.ID, projectID, targetUserID); err != nil {
		writeGatewayError(w, err, "Project or member not found")
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{
		"message": "Member removed successfully",
	})
}

// GetAnalytics handles GET /api/projects/{projectId}/analytics
// Returns a count per board column, zero-filled so every status appears.
func (h *ProjectHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")

	if _, err := h.gateway.Authorize(user.ID, projectID, authz.ActionRead); err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	counts, err := h.db.CountTasksByStatus(projectID)
	if err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	result := make([]models.StatusCount, 0, 3)
	for _, status := range []models.TaskStatus{models.StatusTodo, models.StatusInProgress, models.StatusDone} {
		result = append(result, models.StatusCount{
			Status: status,
			Count:  counts[status],
		})
	}

	utils.WriteSuccessResponse(w, result)
}

// ExportProject handles GET /api/projects/{projectId}/export
// Serves the full project view as a JSON download.
func (h *ProjectHandler) ExportProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	projectID := chi.URLParam(r, "projectId")

	detail, err := h.projectDetail(user.ID, projectID)
	if err != nil {
		writeGatewayError(w, err, "Project not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=project-%s.json", projectID))
	utils.WriteSuccessResponse(w, detail)
}

// ListAllProjects handles GET /api/all-projects
// The public directory: every project's name and owner, no authentication.
// Tasks and members stay behind the per-project access check.
func (h *ProjectHandler) ListAllProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.db.ListAllProjects()
	if err != nil {
		writeGatewayError(w, err, "Projects not found")
		return
	}

	utils.WriteSuccessResponse(w, projects)
}

// ListUserEmails handles GET /api/users/emails?ids=a,b,c
// Public batch lookup of user ids to emails; unknown ids are omitted.
func (h *ProjectHandler) ListUserEmails(w http.ResponseWriter, r *http.Request) {
	idsParam := utils.GetQueryParam(r, "ids", "")
	if idsParam == "" {
		utils.WriteSuccessResponse(w, map[string]string{})
		return
	}

	ids := make([]string, 0)
	for _, id := range strings.Split(idsParam, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	emails, err := h.db.ListUserEmails(ids)
	if err != nil {
		writeGatewayError(w, err, "Users not found")
		return
	}

	utils.WriteSuccessResponse(w, emails)
}
