package models

// EventKind tags what happened to the entity
type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// EntityType tags which entity a ChangeEvent is about
type EntityType string

const (
	EntityTask       EntityType = "task"
	EntityProject    EntityType = "project"
	EntityMembership EntityType = "membership"
)

// ChangeEvent is the canonical notification of an accepted mutation, scoped to
// a project. The payload schema is fixed per (kind, entity_type) pair:
//
//	create/update task       -> Task set
//	delete task              -> TaskID set
//	create/update project    -> Project set
//	delete project           -> no payload; clients tear down all local state
//	create/delete membership -> Membership set
//
// Events are best-effort: a client that missed events reconciles by re-reading
// the project detail, never by waiting for a replay.
type ChangeEvent struct {
	ProjectID  string      `json:"project_id"`
	Kind       EventKind   `json:"kind"`
	Entity     EntityType  `json:"entity_type"`
	Task       *Task       `json:"task,omitempty"`
	TaskID     string      `json:"task_id,omitempty"`
	Project    *Project    `json:"project,omitempty"`
	Membership *Membership `json:"membership,omitempty"`
}

// TaskCreated builds the event for an accepted task creation
func TaskCreated(t *Task) ChangeEvent {
	return ChangeEvent{ProjectID: t.ProjectID, Kind: EventCreate, Entity: EntityTask, Task: t}
}

// TaskUpdated builds the event for an accepted task update
func TaskUpdated(t *Task) ChangeEvent {
	return ChangeEvent{ProjectID: t.ProjectID, Kind: EventUpdate, Entity: EntityTask, Task: t}
}

// TaskDeleted builds the event for an accepted task deletion
func TaskDeleted(projectID, taskID string) ChangeEvent {
	return ChangeEvent{ProjectID: projectID, Kind: EventDelete, Entity: EntityTask, TaskID: taskID}
}

// ProjectCreated builds the event for a new project (broadcast on the global topic)
func ProjectCreated(p *Project) ChangeEvent {
	return ChangeEvent{ProjectID: p.ID, Kind: EventCreate, Entity: EntityProject, Project: p}
}

// ProjectUpdated builds the event for a renamed project
func ProjectUpdated(p *Project) ChangeEvent {
	return ChangeEvent{ProjectID: p.ID, Kind: EventUpdate, Entity: EntityProject, Project: p}
}

// ProjectDeleted builds the teardown event; it supersedes any queued
// task-level events for the same project.
func ProjectDeleted(projectID string) ChangeEvent {
	return ChangeEvent{ProjectID: projectID, Kind: EventDelete, Entity: EntityProject}
}

// MemberAdded builds the event for an accepted invite
func MemberAdded(m *Membership) ChangeEvent {
	return ChangeEvent{ProjectID: m.ProjectID, Kind: EventCreate, Entity: EntityMembership, Membership: m}
}

// MemberRemoved builds the event for a member removal
func MemberRemoved(m *Membership) ChangeEvent {
	return ChangeEvent{ProjectID: m.ProjectID, Kind: EventDelete, Entity: EntityMembership, Membership: m}
}
