// Package gateway is the single entry point for mutations. Every request
// follows the same path: resolve the target, ask the authorization oracle,
// apply the change through the store, then hand the resulting ChangeEvent to
// the broadcaster before returning. The caller's own mutation has therefore
// always begun broadcasting by the time the call returns, though nothing is
// guaranteed about when other clients see it.
//
// Two concurrent updates to the same task may both pass authorization and
// both reach the store; the store's atomicity orders them, both events are
// broadcast, and the later-arriving update wins on every client. No
// application-level merge is attempted — this is a documented limitation.
package gateway

import (
	"errors"
	"fmt"

	"taskboard-backend/pkg/authz"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
)

// Gateway errors, layered on the store's sentinels. The HTTP layer maps
// ErrForbidden to 403 and ErrInvalidOperation to 400.
var (
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidOperation = errors.New("invalid operation")
)

// Broadcaster receives the ChangeEvent of every accepted mutation.
// Delivery failures are the broadcaster's problem, never the mutation's.
type Broadcaster interface {
	Publish(ev models.ChangeEvent)
}

// Gateway validates and applies mutations. The hub is injected, not reached
// through package state, so tests can substitute a recording broadcaster.
type Gateway struct {
	db  database.DatabaseInterface
	bus Broadcaster
}

// New creates a gateway over the given store and broadcaster
func New(db database.DatabaseInterface, bus Broadcaster) *Gateway {
	return &Gateway{db: db, bus: bus}
}

// Snapshot fetches the project and its memberships for an authorization
// decision. An unknown project yields an empty snapshot (oracle says
// NotFound), not an error.
func (g *Gateway) Snapshot(projectID string) (authz.Snapshot, error) {
	project, err := g.db.GetProject(projectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return authz.Snapshot{}, nil
		}
		return authz.Snapshot{}, err
	}
	memberships, err := g.db.ListProjectMemberships(projectID)
	if err != nil {
		return authz.Snapshot{}, err
	}
	return authz.Snapshot{Project: project, Memberships: memberships}, nil
}

// Authorize runs the oracle for an actor against a project and translates a
// denial into the gateway's error taxonomy.
func (g *Gateway) Authorize(actorID, projectID string, action authz.Action) (authz.Snapshot, error) {
	snap, err := g.Snapshot(projectID)
	if err != nil {
		return authz.Snapshot{}, err
	}
	decision := authz.Authorize(actorID, snap, action)
	if decision.Allowed {
		return snap, nil
	}
	if decision.Reason == authz.DenyNotFound {
		return authz.Snapshot{}, fmt.Errorf("authorize: %w", database.ErrNotFound)
	}
	return authz.Snapshot{}, fmt.Errorf("authorize: %w", ErrForbidden)
}

// ==== Project mutations ====

// CreateProject creates a project owned by the actor. Any authenticated user
// may create projects; the resulting event goes out on the global directory
// topic, not a per-project room.
func (g *Gateway) CreateProject(actorID, name string) (*models.Project, error) {
	project := &models.Project{Name: name, OwnerID: actorID}
	if err := g.db.CreateProject(project); err != nil {
		return nil, err
	}
	g.bus.Publish(models.ProjectCreated(project))
	return project, nil
}

// RenameProject renames a project; owner only
func (g *Gateway) RenameProject(actorID, projectID, name string) (*models.Project, error) {
	snap, err := g.Authorize(actorID, projectID, authz.ActionManage)
	if err != nil {
		return nil, err
	}
	project := snap.Project
	project.Name = name
	if err := g.db.UpdateProject(project); err != nil {
		return nil, err
	}
	g.bus.Publish(models.ProjectUpdated(project))
	return project, nil
}

// DeleteProject removes the project and cascades its tasks and memberships
// atomically; owner only. The broadcast is a project-level delete that tells
// subscribed clients to tear the whole board down.
func (g *Gateway) DeleteProject(actorID, projectID string) error {
	if _, err := g.Authorize(actorID, projectID, authz.ActionManage); err != nil {
		return err
	}
	if err := g.db.DeleteProject(projectID); err != nil {
		return err
	}
	g.bus.Publish(models.ProjectDeleted(projectID))
	return nil
}

// InviteMember adds the user with the given email to the project; owner only.
// Idempotent: inviting an existing member succeeds and leaves exactly one
// membership row. An unknown email is NotFound. Inviting the owner is
// rejected — the owner never holds a membership row.
func (g *Gateway) InviteMember(actorID, projectID, email string) (*models.Membership, error) {
	snap, err := g.Authorize(actorID, projectID, authz.ActionManage)
	if err != nil {
		return nil, err
	}
	user, err := g.db.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user.ID == snap.Project.OwnerID {
		// The owner never appears as a membership row
		return nil, fmt.Errorf("invite member: target is the owner: %w", ErrInvalidOperation)
	}

	membership := &models.Membership{ProjectID: projectID, UserID: user.ID}
	if err := g.db.UpsertMembership(membership); err != nil {
		return nil, err
	}
	g.bus.Publish(models.MemberAdded(membership))
	return membership, nil
}

// RemoveMember removes a member from the project; owner only. Removing the
// owner's own identifier is an invalid operation, never a silent no-op.
func (g *Gateway) RemoveMember(actorID, projectID, targetUserID string) error {
	snap, err := g.Authorize(actorID, projectID, authz.ActionManage)
	if err != nil {
		return err
	}
	if targetUserID == snap.Project.OwnerID {
		return fmt.Errorf("remove member: target is the owner: %w", ErrInvalidOperation)
	}
	if err := g.db.DeleteMembership(projectID, targetUserID); err != nil {
		return err
	}
	g.bus.Publish(models.MemberRemoved(&models.Membership{ProjectID: projectID, UserID: targetUserID}))
	return nil
}

// ==== Task mutations ====

// CreateTask adds a task to a project; owner or member
func (g *Gateway) CreateTask(actorID, projectID string, req models.CreateTaskRequest) (*models.Task, error) {
	if _, err := g.Authorize(actorID, projectID, authz.ActionWrite); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("create task: invalid status %q", status)
	}

	task := &models.Task{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		AssigneeID:  req.AssigneeID,
	}
	if err := g.db.CreateTask(task); err != nil {
		return nil, err
	}
	g.bus.Publish(models.TaskCreated(task))
	return task, nil
}

// UpdateTask applies a partial patch to a task; owner or member of the task's
// project. The task's project is derived from the task itself — project
// assignment never changes after creation.
func (g *Gateway) UpdateTask(actorID, taskID string, req models.UpdateTaskRequest) (*models.Task, error) {
	task, err := g.db.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if _, err := g.Authorize(actorID, task.ProjectID, authz.ActionWrite); err != nil {
		return nil, err
	}

	patch := make(map[string]interface{})
	if req.Title != nil {
		patch["title"] = *req.Title
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	if req.Status != nil {
		if !models.ValidStatus(*req.Status) {
			return nil, fmt.Errorf("update task: invalid status %q", *req.Status)
		}
		patch["status"] = string(*req.Status)
	}
	if req.AssigneeID != nil {
		patch["assignee_id"] = *req.AssigneeID
	}

	if len(patch) > 0 {
		if err := g.db.UpdateTaskPartial(taskID, patch); err != nil {
			return nil, err
		}
	}

	updated, err := g.db.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	g.bus.Publish(models.TaskUpdated(updated))
	return updated, nil
}

// DeleteTask removes a task; owner or member of the task's project
func (g *Gateway) DeleteTask(actorID, taskID string) error {
	task, err := g.db.GetTask(taskID)
	if err != nil {
		return err
	}
	if _, err := g.Authorize(actorID, task.ProjectID, authz.ActionWrite); err != nil {
		return err
	}
	if err := g.db.DeleteTask(taskID); err != nil {
		return err
	}
	g.bus.Publish(models.TaskDeleted(task.ProjectID, task.ID))
	return nil
}
