package authz

import (
	"testing"

	"taskboard-backend/pkg/models"

	"github.com/stretchr/testify/assert"
)

func snapshot(ownerID string, memberIDs ...string) Snapshot {
	project := &models.Project{ID: "p1", Name: "Roadmap", OwnerID: ownerID}
	var memberships []models.Membership
	for _, id := range memberIDs {
		memberships = append(memberships, models.Membership{ProjectID: "p1", UserID: id})
	}
	return Snapshot{Project: project, Memberships: memberships}
}

// Exhaustive enumeration over a small synthetic set: every (actor, action)
// pair against a project owned by "owner" with member "member".
func TestAuthorizeEnumeration(t *testing.T) {
	snap := snapshot("owner", "member")

	cases := []struct {
		actor   string
		action  Action
		allowed bool
		reason  Reason
	}{
		{"owner", ActionRead, true, ReasonOwner},
		{"owner", ActionWrite, true, ReasonOwner},
		{"owner", ActionManage, true, ReasonOwner},
		{"member", ActionRead, true, ReasonMember},
		{"member", ActionWrite, true, ReasonMember},
		{"member", ActionManage, false, DenyForbidden},
		{"stranger", ActionRead, false, DenyForbidden},
		{"stranger", ActionWrite, false, DenyForbidden},
		{"stranger", ActionManage, false, DenyForbidden},
		{"owner", ActionPublicRead, true, ReasonPublic},
		{"stranger", ActionPublicRead, true, ReasonPublic},
		{"", ActionPublicRead, true, ReasonPublic},
	}

	for _, tc := range cases {
		d := Authorize(tc.actor, snap, tc.action)
		assert.Equal(t, tc.allowed, d.Allowed, "actor=%s action=%s", tc.actor, tc.action)
		assert.Equal(t, tc.reason, d.Reason, "actor=%s action=%s", tc.actor, tc.action)
	}
}

func TestAuthorizeUnknownProject(t *testing.T) {
	for _, action := range []Action{ActionRead, ActionWrite, ActionManage, ActionPublicRead} {
		d := Authorize("anyone", Snapshot{}, action)
		assert.False(t, d.Allowed, "action=%s", action)
		assert.Equal(t, DenyNotFound, d.Reason, "NotFound must stay distinct from Forbidden")
	}
}

func TestAuthorizeUnknownAction(t *testing.T) {
	d := Authorize("owner", snapshot("owner"), Action("fly"))
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyBadRequest, d.Reason)
}

// Removing a membership never removes owner access: owner access is
// structural, not membership-based.
func TestOwnerAccessIsStructural(t *testing.T) {
	withMember := snapshot("owner", "member")
	withoutMember := snapshot("owner")

	for _, snap := range []Snapshot{withMember, withoutMember} {
		for _, action := range []Action{ActionRead, ActionWrite, ActionManage} {
			d := Authorize("owner", snap, action)
			assert.True(t, d.Allowed)
			assert.Equal(t, ReasonOwner, d.Reason)
		}
	}

	// The revoked member loses everything but public reads
	d := Authorize("member", withoutMember, ActionRead)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyForbidden, d.Reason)
}
