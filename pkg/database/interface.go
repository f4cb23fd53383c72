package database

import (
	"fmt"

	"taskboard-backend/pkg/models"
)

// DatabaseInterface is the persistence store contract. Single-row writes and
// the project cascade delete are atomic; that atomicity is the only
// serialization point for conflicting writes (no optimistic locking on top).
type DatabaseInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	// ListUserEmails resolves a batch of user ids to emails; unknown ids are
	// simply absent from the result.
	ListUserEmails(ids []string) (map[string]string, error)

	// Projects
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	UpdateProject(p *models.Project) error
	// DeleteProject removes the project and cascades its tasks and
	// memberships in one transaction.
	DeleteProject(id string) error
	ListUserProjects(userID string) ([]models.Project, error)
	ListAllProjects() ([]models.Project, error)

	// Memberships
	// UpsertMembership is idempotent on the (user_id, project_id) pair:
	// inviting an existing member leaves exactly one row.
	UpsertMembership(m *models.Membership) error
	DeleteMembership(projectID, userID string) error
	ListProjectMemberships(projectID string) ([]models.Membership, error)
	ListProjectMembers(projectID string) ([]models.ProjectMember, error)

	// Tasks
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	// UpdateTaskPartial patches only the provided fields.
	// Allowed keys: "title", "description", "status", "assignee_id".
	UpdateTaskPartial(taskID string, patch map[string]interface{}) error
	DeleteTask(id string) error
	ListProjectTasks(projectID string) ([]models.Task, error)
	CountTasksByStatus(projectID string) (map[models.TaskStatus]int, error)

	// Health check
	HealthCheck() error

	// Close releases the underlying connections
	Close() error
}

// DatabaseConfig selects the backend
type DatabaseConfig struct {
	UseMemoryDB bool
	PostgresDSN string
	Debug       bool
}

// NewDatabase picks a backend from the config. PostgreSQL is the durable
// store; the in-memory backend exists for local development and tests.
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if config.UseMemoryDB {
		fmt.Printf("🧰  Using in-memory database (data is not durable)\n")
		return NewMemoryDatabase()
	}

	panic("No valid database configuration found. Please configure POSTGRES_DSN or set USE_MEMORY_DB=true")
}
