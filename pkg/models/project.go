package models

import "time"

// Project is a board owned by exactly one user. Ownership never transfers;
// the owner is never represented by a Membership row.
type Project struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Membership grants a non-owner user access to a project.
// The (user_id, project_id) pair is unique.
type Membership struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProjectMember is a membership joined with the member's email for display
type ProjectMember struct {
	Membership
	Email string `json:"email" db:"email"`
}

// ProjectDetail is the full read used by the detail and export endpoints
// and by reconnecting clients to rebuild local state.
type ProjectDetail struct {
	Project
	OwnerEmail string          `json:"owner_email"`
	Tasks      []Task          `json:"tasks"`
	Members    []ProjectMember `json:"members"`
}

// CreateProjectRequest represents the request payload for project creation
type CreateProjectRequest struct {
	Name string `json:"name" validate:"required"`
}

// RenameProjectRequest represents the request payload for renaming a project
type RenameProjectRequest struct {
	Name string `json:"name" validate:"required"`
}

// InviteMemberRequest represents the request payload for inviting a member
type InviteMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}
