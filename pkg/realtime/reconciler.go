package realtime

import "taskboard-backend/pkg/models"

// Board is a client's local view of one project: an ordered task collection
// keyed by id. It is the state the reconciler folds ChangeEvents into.
// Consumers seed it from a full project read, then apply streamed events;
// after a reconnect they must re-seed before trusting the stream again,
// because missed events are never replayed.
type Board struct {
	ProjectID string
	Name      string
	Tasks     []models.Task
	// Gone is set when a project-level delete arrives: the consumer must
	// discard the board entirely.
	Gone bool
}

// NewBoard seeds a board from a full read of current server state
func NewBoard(projectID, name string, tasks []models.Task) Board {
	b := Board{ProjectID: projectID, Name: name}
	b.Tasks = append(b.Tasks, tasks...)
	return b
}

// Reduce folds one ChangeEvent into the board and returns the next state.
// It is a pure function of (prior state, event) and is defensive about
// duplicate or gap-straddling deliveries:
//
//	create: insert if absent; a duplicate create is ignored
//	update: replace the matching task; if absent (missed create), insert
//	delete: remove the matching task; absence is not an error
//	project delete: drop all task state and mark the board Gone
//
// The second return value is false when the event is malformed (unknown kind
// or entity, missing payload); the consumer should then fall back to a full
// re-read instead of trusting its local state.
func Reduce(b Board, ev models.ChangeEvent) (Board, bool) {
	if ev.ProjectID != b.ProjectID {
		// Cross-project events never touch this board
		return b, true
	}
	if b.Gone {
		return b, true
	}

	switch ev.Entity {
	case models.EntityTask:
		return reduceTask(b, ev)

	case models.EntityProject:
		switch ev.Kind {
		case models.EventDelete:
			b.Tasks = nil
			b.Gone = true
			return b, true
		case models.EventUpdate, models.EventCreate:
			if ev.Project == nil {
				return b, false
			}
			b.Name = ev.Project.Name
			return b, true
		}
		return b, false

	case models.EntityMembership:
		// Membership changes do not alter task state
		if ev.Membership == nil {
			return b, false
		}
		return b, true
	}

	return b, false
}

func reduceTask(b Board, ev models.ChangeEvent) (Board, bool) {
	switch ev.Kind {
	case models.EventCreate:
		if ev.Task == nil {
			return b, false
		}
		if indexOfTask(b.Tasks, ev.Task.ID) >= 0 {
			return b, true // duplicate delivery
		}
		b.Tasks = append(copyTasks(b.Tasks), *ev.Task)
		return b, true

	case models.EventUpdate:
		if ev.Task == nil {
			return b, false
		}
		idx := indexOfTask(b.Tasks, ev.Task.ID)
		if idx < 0 {
			// Missed the create (reconnect gap): treat as create
			b.Tasks = append(copyTasks(b.Tasks), *ev.Task)
			return b, true
		}
		tasks := copyTasks(b.Tasks)
		tasks[idx] = *ev.Task
		b.Tasks = tasks
		return b, true

	case models.EventDelete:
		if ev.TaskID == "" {
			return b, false
		}
		idx := indexOfTask(b.Tasks, ev.TaskID)
		if idx < 0 {
			return b, true // already gone
		}
		tasks := copyTasks(b.Tasks)
		b.Tasks = append(tasks[:idx], tasks[idx+1:]...)
		return b, true
	}

	return b, false
}

func indexOfTask(tasks []models.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func copyTasks(tasks []models.Task) []models.Task {
	copied := make([]models.Task, len(tasks))
	copy(copied, tasks)
	return copied
}
