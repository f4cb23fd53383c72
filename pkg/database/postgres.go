package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskboard-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase is the lib/pq backed store implementation
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a connection pool and verifies it with a ping
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		panic(fmt.Sprintf("Failed to open PostgreSQL connection: %v", err))
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		panic(fmt.Sprintf("Failed to ping PostgreSQL: %v", err))
	}

	fmt.Printf("✅ PostgreSQL connection established\n")
	return &PostgresDatabase{db: db}
}

// translateError maps driver errors onto the package sentinels
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case "23503": // foreign_key_violation (e.g. concurrent delete of the parent)
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// ==== Users ====

// CreateUser inserts a user row; duplicate emails surface as ErrConflict
func (db *PostgresDatabase) CreateUser(user *models.User) error {
	query := `
		INSERT INTO public.users (email, password_hash, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, user.Email, user.Password).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translateError("create user", err)
	}
	return nil
}

// GetUserByEmail looks a user up by unique email
func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(password_hash,''), created_at, updated_at
		FROM public.users
		WHERE email = $1
	`
	var u models.User
	err := db.db.QueryRow(query, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, translateError("get user by email", err)
	}
	return &u, nil
}

// GetUserByID looks a user up by id
func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
		SELECT id, email, created_at, updated_at
		FROM public.users
		WHERE id = $1
	`
	var u models.User
	err := db.db.QueryRow(query, id).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translateError("get user", err)
	}
	return &u, nil
}

// ListUserEmails resolves ids to emails in one query
func (db *PostgresDatabase) ListUserEmails(ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT id, email FROM public.users WHERE id = ANY($1)`
	rows, err := db.db.Query(query, pq.Array(ids))
	if err != nil {
		return nil, translateError("list user emails", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("failed to scan user email: %w", err)
		}
		result[id] = email
	}
	return result, rows.Err()
}

// ==== Projects ====

// CreateProject inserts a project owned by p.OwnerID
func (db *PostgresDatabase) CreateProject(p *models.Project) error {
	query := `
		INSERT INTO public.projects (name, owner_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, p.Name, p.OwnerID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translateError("create project", err)
	}
	return nil
}

// GetProject loads a single project row
func (db *PostgresDatabase) GetProject(id string) (*models.Project, error) {
	query := `
		SELECT id, name, owner_id, created_at, updated_at
		FROM public.projects
		WHERE id = $1
	`
	var p models.Project
	err := db.db.QueryRow(query, id).Scan(
		&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, translateError("get project", err)
	}
	return &p, nil
}

// UpdateProject writes back mutable project fields (name)
func (db *PostgresDatabase) UpdateProject(p *models.Project) error {
	query := `
		UPDATE public.projects
		SET name = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, p.Name, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		return translateError("update project", err)
	}
	return nil
}

// DeleteProject removes a project plus its tasks and memberships in one
// transaction. No partial cascade is ever observable.
func (db *PostgresDatabase) DeleteProject(id string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete project tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM public.tasks WHERE project_id = $1`, id); err != nil {
		return translateError("delete project tasks", err)
	}
	if _, err := tx.Exec(`DELETE FROM public.memberships WHERE project_id = $1`, id); err != nil {
		return translateError("delete project memberships", err)
	}
	res, err := tx.Exec(`DELETE FROM public.projects WHERE id = $1`, id)
	if err != nil {
		return translateError("delete project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete project: %w", ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete project tx: %w", err)
	}
	return nil
}

// ListUserProjects returns projects the user owns or is a member of,
// de-duplicated
func (db *PostgresDatabase) ListUserProjects(userID string) ([]models.Project, error) {
	query := `
		SELECT DISTINCT p.id, p.name, p.owner_id, p.created_at, p.updated_at
		FROM public.projects p
		LEFT JOIN public.memberships m ON m.project_id = p.id
		WHERE p.owner_id = $1 OR m.user_id = $1
		ORDER BY p.created_at
	`
	return db.scanProjects(query, userID)
}

// ListAllProjects returns every project (public directory listing)
func (db *PostgresDatabase) ListAllProjects() ([]models.Project, error) {
	query := `
		SELECT id, name, owner_id, created_at, updated_at
		FROM public.projects
		ORDER BY created_at
	`
	return db.scanProjects(query)
}

func (db *PostgresDatabase) scanProjects(query string, args ...interface{}) ([]models.Project, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, translateError("list projects", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ==== Memberships ====

// UpsertMembership creates the membership if absent; inviting an existing
// member is a no-op that still succeeds (ON CONFLICT DO NOTHING)
func (db *PostgresDatabase) UpsertMembership(m *models.Membership) error {
	query := `
		INSERT INTO public.memberships (project_id, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (project_id, user_id) DO NOTHING
	`
	if _, err := db.db.Exec(query, m.ProjectID, m.UserID); err != nil {
		return translateError("upsert membership", err)
	}
	// Read back so the caller always sees the canonical row
	row := db.db.QueryRow(
		`SELECT id, created_at FROM public.memberships WHERE project_id = $1 AND user_id = $2`,
		m.ProjectID, m.UserID,
	)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return translateError("load membership", err)
	}
	return nil
}

// DeleteMembership removes the (project, user) pair; absence is ErrNotFound
func (db *PostgresDatabase) DeleteMembership(projectID, userID string) error {
	res, err := db.db.Exec(
		`DELETE FROM public.memberships WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	)
	if err != nil {
		return translateError("delete membership", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete membership: %w", ErrNotFound)
	}
	return nil
}

// ListProjectMemberships returns the raw membership rows for a project
func (db *PostgresDatabase) ListProjectMemberships(projectID string) ([]models.Membership, error) {
	query := `
		SELECT id, project_id, user_id, created_at
		FROM public.memberships
		WHERE project_id = $1
		ORDER BY created_at
	`
	rows, err := db.db.Query(query, projectID)
	if err != nil {
		return nil, translateError("list memberships", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListProjectMembers returns memberships joined with member emails
func (db *PostgresDatabase) ListProjectMembers(projectID string) ([]models.ProjectMember, error) {
	query := `
		SELECT m.id, m.project_id, m.user_id, m.created_at, u.email
		FROM public.memberships m
		JOIN public.users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.created_at
	`
	rows, err := db.db.Query(query, projectID)
	if err != nil {
		return nil, translateError("list project members", err)
	}
	defer rows.Close()

	var members []models.ProjectMember
	for rows.Next() {
		var pm models.ProjectMember
		if err := rows.Scan(&pm.ID, &pm.ProjectID, &pm.UserID, &pm.CreatedAt, &pm.Email); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		members = append(members, pm)
	}
	return members, rows.Err()
}

// ==== Tasks ====

// CreateTask inserts a task; a concurrent project delete surfaces as
// ErrConflict via the foreign key
func (db *PostgresDatabase) CreateTask(t *models.Task) error {
	query := `
		INSERT INTO public.tasks (project_id, title, description, status, assignee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, t.ProjectID, t.Title, t.Description, t.Status, t.AssigneeID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return translateError("create task", err)
	}
	return nil
}

// GetTask loads a single task row
func (db *PostgresDatabase) GetTask(id string) (*models.Task, error) {
	query := `
		SELECT id, project_id, title, COALESCE(description,''), status, COALESCE(assignee_id::text,''), created_at, updated_at
		FROM public.tasks
		WHERE id = $1
	`
	var t models.Task
	err := db.db.QueryRow(query, id).Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, translateError("get task", err)
	}
	return &t, nil
}

// taskPatchColumns guards UpdateTaskPartial against unexpected keys
var taskPatchColumns = map[string]bool{
	"title":       true,
	"description": true,
	"status":      true,
	"assignee_id": true,
}

// UpdateTaskPartial patches only the provided columns in one statement
func (db *PostgresDatabase) UpdateTaskPartial(taskID string, patch map[string]interface{}) error {
	if len(patch) == 0 {
		return nil
	}

	sets := make([]string, 0, len(patch)+1)
	args := make([]interface{}, 0, len(patch)+1)
	i := 1
	for col, val := range patch {
		if !taskPatchColumns[col] {
			return fmt.Errorf("update task: unsupported column %q", col)
		}
		if col == "assignee_id" {
			sets = append(sets, fmt.Sprintf("%s = NULLIF($%d, '')", col, i))
		} else {
			sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		}
		args = append(args, val)
		i++
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, taskID)

	query := fmt.Sprintf(`UPDATE public.tasks SET %s WHERE id = $%d`, strings.Join(sets, ", "), i)
	res, err := db.db.Exec(query, args...)
	if err != nil {
		return translateError("update task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task: %w", ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task row; absence is ErrNotFound
func (db *PostgresDatabase) DeleteTask(id string) error {
	res, err := db.db.Exec(`DELETE FROM public.tasks WHERE id = $1`, id)
	if err != nil {
		return translateError("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete task: %w", ErrNotFound)
	}
	return nil
}

// ListProjectTasks returns all tasks for a project, oldest first
func (db *PostgresDatabase) ListProjectTasks(projectID string) ([]models.Task, error) {
	query := `
		SELECT id, project_id, title, COALESCE(description,''), status, COALESCE(assignee_id::text,''), created_at, updated_at
		FROM public.tasks
		WHERE project_id = $1
		ORDER BY created_at
	`
	rows, err := db.db.Query(query, projectID)
	if err != nil {
		return nil, translateError("list tasks", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountTasksByStatus groups task counts by status for the analytics endpoint
func (db *PostgresDatabase) CountTasksByStatus(projectID string) (map[models.TaskStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM public.tasks
		WHERE project_id = $1
		GROUP BY status
	`
	rows, err := db.db.Query(query, projectID)
	if err != nil {
		return nil, translateError("count tasks by status", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status models.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// HealthCheck pings the database
func (db *PostgresDatabase) HealthCheck() error {
	if err := db.db.Ping(); err != nil {
		return fmt.Errorf("health check: %w", ErrUnavailable)
	}
	return nil
}

// Close closes the connection pool
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
