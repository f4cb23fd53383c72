package gateway

import (
	"errors"
	"sync"
	"testing"

	"taskboard-backend/pkg/authz"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures published events in order
type recorder struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (r *recorder) Publish(ev models.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []models.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChangeEvent(nil), r.events...)
}

func (r *recorder) last() models.ChangeEvent {
	events := r.all()
	return events[len(events)-1]
}

func newFixture(t *testing.T) (*Gateway, *database.MemoryDatabase, *recorder, *models.User, *models.User) {
	t.Helper()
	db := database.NewMemoryDatabase()
	bus := &recorder{}
	g := New(db, bus)

	alice := &models.User{Email: "a@x.com", Password: "hash"}
	require.NoError(t, db.CreateUser(alice))
	bob := &models.User{Email: "b@x.com", Password: "hash"}
	require.NoError(t, db.CreateUser(bob))
	return g, db, bus, alice, bob
}

func TestCreateProjectBroadcastsGlobally(t *testing.T) {
	g, _, bus, alice, _ := newFixture(t)

	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, project.OwnerID)

	ev := bus.last()
	assert.Equal(t, models.EventCreate, ev.Kind)
	assert.Equal(t, models.EntityProject, ev.Entity)
	assert.Equal(t, project.ID, ev.ProjectID)
}

func TestInviteMemberIsIdempotent(t *testing.T) {
	g, db, _, alice, bob := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)

	first, err := g.InviteMember(alice.ID, project.ID, bob.Email)
	require.NoError(t, err)

	second, err := g.InviteMember(alice.ID, project.ID, bob.Email)
	require.NoError(t, err, "re-inviting an existing member must succeed")
	assert.Equal(t, first.ID, second.ID)

	memberships, err := db.ListProjectMemberships(project.ID)
	require.NoError(t, err)
	assert.Len(t, memberships, 1, "exactly one membership row after a duplicate invite")
}

func TestInviteUnknownEmailIsNotFound(t *testing.T) {
	g, _, _, alice, _ := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)

	_, err = g.InviteMember(alice.ID, project.ID, "nobody@x.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestInviteRequiresOwner(t *testing.T) {
	g, _, _, alice, bob := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)

	_, err = g.InviteMember(bob.ID, project.ID, bob.Email)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRemoveOwnerIsInvalidOperation(t *testing.T) {
	g, _, _, alice, bob := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)
	_, err = g.InviteMember(alice.ID, project.ID, bob.Email)
	require.NoError(t, err)

	err = g.RemoveMember(alice.ID, project.ID, alice.ID)
	assert.ErrorIs(t, err, ErrInvalidOperation, "removing the owner must fail loudly, whatever the project state")

	// Still invalid when the project has no members at all
	empty, err := g.CreateProject(alice.ID, "Empty")
	require.NoError(t, err)
	err = g.RemoveMember(alice.ID, empty.ID, alice.ID)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestDeleteProjectCascades(t *testing.T) {
	g, db, bus, alice, bob := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)
	_, err = g.InviteMember(alice.ID, project.ID, bob.Email)
	require.NoError(t, err)
	task, err := g.CreateTask(alice.ID, project.ID, models.CreateTaskRequest{Title: "Design"})
	require.NoError(t, err)

	require.NoError(t, g.DeleteProject(alice.ID, project.ID))

	_, err = db.GetProject(project.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = db.GetTask(task.ID)
	assert.ErrorIs(t, err, database.ErrNotFound, "no task may survive the cascade")
	memberships, err := db.ListProjectMemberships(project.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships, "no membership may survive the cascade")

	ev := bus.last()
	assert.Equal(t, models.EventDelete, ev.Kind)
	assert.Equal(t, models.EntityProject, ev.Entity)
}

func TestTaskLifecycleEvents(t *testing.T) {
	g, _, bus, alice, bob := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)
	_, err = g.InviteMember(alice.ID, project.ID, bob.Email)
	require.NoError(t, err)

	// Members can write, not just the owner
	task, err := g.CreateTask(bob.ID, project.ID, models.CreateTaskRequest{Title: "Design", Status: models.StatusTodo})
	require.NoError(t, err)
	assert.Equal(t, models.EntityTask, bus.last().Entity)
	assert.Equal(t, models.EventCreate, bus.last().Kind)

	done := models.StatusDone
	updated, err := g.UpdateTask(bob.ID, task.ID, models.UpdateTaskRequest{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Status)
	assert.Equal(t, "Design", updated.Title, "unpatched fields are untouched")
	assert.Equal(t, models.EventUpdate, bus.last().Kind)

	require.NoError(t, g.DeleteTask(alice.ID, task.ID))
	last := bus.last()
	assert.Equal(t, models.EventDelete, last.Kind)
	assert.Equal(t, task.ID, last.TaskID)
}

func TestTaskWriteDeniedForStranger(t *testing.T) {
	g, _, bus, alice, bob := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)
	before := len(bus.all())

	_, err = g.CreateTask(bob.ID, project.ID, models.CreateTaskRequest{Title: "Sneak"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Len(t, bus.all(), before, "denied mutations must not broadcast")
}

func TestUnknownTargetsAreNotFound(t *testing.T) {
	g, _, _, alice, _ := newFixture(t)

	_, err := g.CreateTask(alice.ID, "missing-project", models.CreateTaskRequest{Title: "x"})
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = g.UpdateTask(alice.ID, "missing-task", models.UpdateTaskRequest{})
	assert.ErrorIs(t, err, database.ErrNotFound)

	err = g.DeleteTask(alice.ID, "missing-task")
	assert.ErrorIs(t, err, database.ErrNotFound)

	err = g.DeleteProject(alice.ID, "missing-project")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestInvalidStatusRejected(t *testing.T) {
	g, _, _, alice, _ := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)

	_, err = g.CreateTask(alice.ID, project.ID, models.CreateTaskRequest{Title: "x", Status: "blocked"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrForbidden))
}

// End-to-end authorization flow: invite grants access, removal revokes it.
func TestMembershipGatesAccessEndToEnd(t *testing.T) {
	g, _, _, alice, bob := newFixture(t)
	project, err := g.CreateProject(alice.ID, "Roadmap")
	require.NoError(t, err)

	snap, err := g.Snapshot(project.ID)
	require.NoError(t, err)
	assert.True(t, authz.Authorize(alice.ID, snap, authz.ActionManage).Allowed)
	assert.False(t, authz.Authorize(bob.ID, snap, authz.ActionRead).Allowed)

	_, err = g.InviteMember(alice.ID, project.ID, bob.Email)
	require.NoError(t, err)

	snap, err = g.Snapshot(project.ID)
	require.NoError(t, err)
	assert.True(t, authz.Authorize(bob.ID, snap, authz.ActionWrite).Allowed)

	require.NoError(t, g.RemoveMember(alice.ID, project.ID, bob.ID))

	snap, err = g.Snapshot(project.ID)
	require.NoError(t, err)
	assert.False(t, authz.Authorize(bob.ID, snap, authz.ActionRead).Allowed)
	assert.True(t, authz.Authorize(alice.ID, snap, authz.ActionManage).Allowed,
		"removing a member never touches the owner's structural access")
}
