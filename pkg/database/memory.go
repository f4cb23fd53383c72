package database

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"taskboard-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is an in-process store implementing the same interface as
// the PostgreSQL backend. Used for local development and tests. All methods
// take the write lock for mutations, mirroring the store's atomicity contract.
type MemoryDatabase struct {
	mu          sync.RWMutex
	users       map[string]models.User
	projects    map[string]models.Project
	memberships map[string]models.Membership // keyed by project_id+"/"+user_id
	tasks       map[string]models.Task
}

// NewMemoryDatabase creates an empty in-memory store
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:       make(map[string]models.User),
		projects:    make(map[string]models.Project),
		memberships: make(map[string]models.Membership),
		tasks:       make(map[string]models.Task),
	}
}

func membershipKey(projectID, userID string) string {
	return projectID + "/" + userID
}

// ==== Users ====

// CreateUser inserts a user; duplicate emails surface as ErrConflict
func (db *MemoryDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == user.Email {
			return fmt.Errorf("create user: %w", ErrConflict)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	db.users[user.ID] = *user
	return nil
}

// GetUserByEmail looks a user up by unique email
func (db *MemoryDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", ErrNotFound)
}

// GetUserByID looks a user up by id
func (db *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", ErrNotFound)
	}
	copied := u
	return &copied, nil
}

// ListUserEmails resolves ids to emails; unknown ids are skipped
func (db *MemoryDatabase) ListUserEmails(ids []string) (map[string]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			result[id] = u.Email
		}
	}
	return result, nil
}

// ==== Projects ====

// CreateProject inserts a project
func (db *MemoryDatabase) CreateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	db.projects[p.ID] = *p
	return nil
}

// GetProject loads a single project
func (db *MemoryDatabase) GetProject(id string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.projects[id]
	if !ok {
		return nil, fmt.Errorf("get project: %w", ErrNotFound)
	}
	copied := p
	return &copied, nil
}

// UpdateProject writes back mutable project fields
func (db *MemoryDatabase) UpdateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.projects[p.ID]
	if !ok {
		return fmt.Errorf("update project: %w", ErrNotFound)
	}
	existing.Name = p.Name
	existing.UpdatedAt = time.Now()
	db.projects[p.ID] = existing
	*p = existing
	return nil
}

// DeleteProject removes the project and cascades tasks and memberships
// under one lock acquisition (the in-memory transaction)
func (db *MemoryDatabase) DeleteProject(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.projects[id]; !ok {
		return fmt.Errorf("delete project: %w", ErrNotFound)
	}
	delete(db.projects, id)
	for key, m := range db.memberships {
		if m.ProjectID == id {
			delete(db.memberships, key)
		}
	}
	for taskID, t := range db.tasks {
		if t.ProjectID == id {
			delete(db.tasks, taskID)
		}
	}
	return nil
}

// ListUserProjects returns projects the user owns or is a member of
func (db *MemoryDatabase) ListUserProjects(userID string) ([]models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var projects []models.Project
	for _, p := range db.projects {
		if p.OwnerID == userID {
			projects = append(projects, p)
			continue
		}
		if _, ok := db.memberships[membershipKey(p.ID, userID)]; ok {
			projects = append(projects, p)
		}
	}
	sortProjects(projects)
	return projects, nil
}

// ListAllProjects returns every project (public directory listing)
func (db *MemoryDatabase) ListAllProjects() ([]models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	projects := make([]models.Project, 0, len(db.projects))
	for _, p := range db.projects {
		projects = append(projects, p)
	}
	sortProjects(projects)
	return projects, nil
}

func sortProjects(projects []models.Project) {
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
}

// ==== Memberships ====

// UpsertMembership is idempotent on the (project, user) pair
func (db *MemoryDatabase) UpsertMembership(m *models.Membership) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.projects[m.ProjectID]; !ok {
		return fmt.Errorf("upsert membership: %w", ErrConflict)
	}
	key := membershipKey(m.ProjectID, m.UserID)
	if existing, ok := db.memberships[key]; ok {
		*m = existing
		return nil
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	db.memberships[key] = *m
	return nil
}

// DeleteMembership removes the pair; absence is ErrNotFound
func (db *MemoryDatabase) DeleteMembership(projectID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := membershipKey(projectID, userID)
	if _, ok := db.memberships[key]; !ok {
		return fmt.Errorf("delete membership: %w", ErrNotFound)
	}
	delete(db.memberships, key)
	return nil
}

// ListProjectMemberships returns the membership rows for a project
func (db *MemoryDatabase) ListProjectMemberships(projectID string) ([]models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var memberships []models.Membership
	for _, m := range db.memberships {
		if m.ProjectID == projectID {
			memberships = append(memberships, m)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].CreatedAt.Before(memberships[j].CreatedAt)
	})
	return memberships, nil
}

// ListProjectMembers returns memberships joined with member emails
func (db *MemoryDatabase) ListProjectMembers(projectID string) ([]models.ProjectMember, error) {
	memberships, err := db.ListProjectMemberships(projectID)
	if err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	members := make([]models.ProjectMember, 0, len(memberships))
	for _, m := range memberships {
		pm := models.ProjectMember{Membership: m}
		if u, ok := db.users[m.UserID]; ok {
			pm.Email = u.Email
		}
		members = append(members, pm)
	}
	return members, nil
}

// ==== Tasks ====

// CreateTask inserts a task; the project must still exist
func (db *MemoryDatabase) CreateTask(t *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.projects[t.ProjectID]; !ok {
		return fmt.Errorf("create task: %w", ErrConflict)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	db.tasks[t.ID] = *t
	return nil
}

// GetTask loads a single task
func (db *MemoryDatabase) GetTask(id string) (*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task: %w", ErrNotFound)
	}
	copied := t
	return &copied, nil
}

// UpdateTaskPartial patches only the provided fields atomically
func (db *MemoryDatabase) UpdateTaskPartial(taskID string, patch map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tasks[taskID]
	if !ok {
		return fmt.Errorf("update task: %w", ErrNotFound)
	}
	for col, val := range patch {
		switch col {
		case "title":
			t.Title, _ = val.(string)
		case "description":
			t.Description, _ = val.(string)
		case "status":
			switch s := val.(type) {
			case models.TaskStatus:
				t.Status = s
			case string:
				t.Status = models.TaskStatus(s)
			}
		case "assignee_id":
			t.AssigneeID, _ = val.(string)
		default:
			return fmt.Errorf("update task: unsupported column %q", col)
		}
	}
	t.UpdatedAt = time.Now()
	db.tasks[taskID] = t
	return nil
}

// DeleteTask removes a task; absence is ErrNotFound
func (db *MemoryDatabase) DeleteTask(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tasks[id]; !ok {
		return fmt.Errorf("delete task: %w", ErrNotFound)
	}
	delete(db.tasks, id)
	return nil
}

// ListProjectTasks returns all tasks for a project, oldest first
func (db *MemoryDatabase) ListProjectTasks(projectID string) ([]models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var tasks []models.Task
	for _, t := range db.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// CountTasksByStatus groups task counts by status
func (db *MemoryDatabase) CountTasksByStatus(projectID string) (map[models.TaskStatus]int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	counts := make(map[models.TaskStatus]int)
	for _, t := range db.tasks {
		if t.ProjectID == projectID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

// HealthCheck always succeeds for the in-memory store
func (db *MemoryDatabase) HealthCheck() error {
	return nil
}

// Close is a no-op for the in-memory store
func (db *MemoryDatabase) Close() error {
	return nil
}
