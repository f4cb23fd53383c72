// Package authz holds the pure authorization predicate for project access.
// It performs no I/O: callers fetch a project snapshot (project row plus its
// membership set) from the store and ask for a decision. Because the predicate
// is read-only over a caller-supplied snapshot it is safe to call from any
// number of concurrent requests.
package authz

import "taskboard-backend/pkg/models"

// Action is the capability class a request needs
type Action string

const (
	// ActionRead covers detail reads, analytics and export
	ActionRead Action = "read"
	// ActionWrite covers task create/update/delete
	ActionWrite Action = "write"
	// ActionManage covers rename, delete project, invite and remove member
	ActionManage Action = "manage"
	// ActionPublicRead covers the public project directory; it needs no
	// membership, only an existing project
	ActionPublicRead Action = "public-read"
)

// Reason explains a decision
type Reason string

const (
	ReasonOwner    Reason = "owner"
	ReasonMember   Reason = "member"
	ReasonPublic   Reason = "public"
	DenyNotFound   Reason = "not-found"
	DenyForbidden  Reason = "forbidden"
	DenyBadRequest Reason = "bad-request"
)

// Decision is the oracle's verdict. NotFound and Forbidden are distinct so
// callers can keep the 404/403 split without leaking more than that.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Snapshot is the project state the decision is made over. Callers must fetch
// the project and its memberships together (or close enough that a concurrent
// invite cannot break the owner-never-a-member invariant mid-check).
type Snapshot struct {
	Project     *models.Project
	Memberships []models.Membership
}

// IsMember reports whether userID holds a membership row in the snapshot
func (s Snapshot) IsMember(userID string) bool {
	for _, m := range s.Memberships {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Authorize decides whether actorID may perform action on the snapshot.
// Read/Write require owner or member; Manage requires exactly the owner;
// PublicRead only requires the project to exist.
func Authorize(actorID string, snap Snapshot, action Action) Decision {
	if snap.Project == nil {
		return Decision{Allowed: false, Reason: DenyNotFound}
	}

	switch action {
	case ActionPublicRead:
		return Decision{Allowed: true, Reason: ReasonPublic}

	case ActionRead, ActionWrite:
		if actorID == snap.Project.OwnerID {
			return Decision{Allowed: true, Reason: ReasonOwner}
		}
		if snap.IsMember(actorID) {
			return Decision{Allowed: true, Reason: ReasonMember}
		}
		return Decision{Allowed: false, Reason: DenyForbidden}

	case ActionManage:
		if actorID == snap.Project.OwnerID {
			return Decision{Allowed: true, Reason: ReasonOwner}
		}
		return Decision{Allowed: false, Reason: DenyForbidden}
	}

	return Decision{Allowed: false, Reason: DenyBadRequest}
}
