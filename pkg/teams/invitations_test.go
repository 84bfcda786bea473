package teams

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/taskdeck/pkg/access"
)

func TestCreateInvitation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := access.MustCreateUser(t, db, "owner")
	team, err := svc.CreateTeam(ctx, owner, "team")
	require.NoError(t, err)

	inv, result, err := svc.CreateInvitation(ctx, owner, team.ID, "Dana@Example.com", access.RoleMember)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.NotNil(t, inv)
	assert.Equal(t, "dana@example.com", inv.Email, "email is normalized")
	assert.NotEmpty(t, inv.Token)
	assert.True(t, inv.ExpiresAt.After(time.Now()))
}

func TestCreateInvitationGuarded(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := access.MustCreateUser(t, db, "owner")
	member := access.MustCreateUser(t, db, "member")
	outsider := access.MustCreateUser(t, db, "outsider")
	team, err := svc.CreateTeam(ctx, owner, "team")
	require.NoError(t, err)
	access.MustAddMember(t, db, team.ID, member, access.RoleMember)

	// Members hold no invite right.
	_, result, err := svc.CreateInvitation(ctx, member, team.ID, "x@example.com", access.RoleMember)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, access.ReasonForbidden, result.Reason)

	// Outsiders get not_found, same leakage policy as everywhere else.
	_, result, err = svc.CreateInvitation(ctx, outsider, team.ID, "x@example.com", access.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, access.ReasonNotFound, result.Reason)

	// Owner-role invites are refused.
	_, result, err = svc.CreateInvitation(ctx, owner, team.ID, "x@example.com", access.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, access.ReasonInvariantViolation, result.Reason)

	// Blank email.
	_, result, err = svc.CreateInvitation(ctx, owner, team.ID, "   ", access.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, access.ReasonInvariantViolation, result.Reason)
}

func TestCreateInvitationReplacesPending(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := access.MustCreateUser(t, db, "owner")
	team, err := svc.CreateTeam(ctx, owner, "team")
	require.NoError(t, err)

	first, result, err := svc.CreateInvitation(ctx, owner, team.ID, "dana@example.com", access.RoleViewer)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	second, result, err := svc.CreateInvitation(ctx, owner, team.ID, "dana@example.com", access.RoleAdmin)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	invites, result, err := svc.ListInvitations(ctx, owner, team.ID)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Len(t, invites, 1)
	assert.Equal(t, access.RoleAdmin, invites[0].Role)
	assert.NotEqual(t, first.Token, second.Token, "re-invite rotates the token")
}

func TestAcceptInvitation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := access.MustCreateUser(t, db, "owner")
	dana := access.MustCreateUser(t, db, "dana")
	team, err := svc.CreateTeam(ctx, owner, "team")
	require.NoError(t, err)

	inv, _, err := svc.CreateInvitation(ctx, owner, team.ID, "dana@example.com", access.RoleMember)
	require.NoError(t, err)

	member, err := svc.AcceptInvitation(ctx, dana, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, team.ID, member.TeamID)
	assert.Equal(t, dana, member.UserID)
	assert.Equal(t, access.RoleMember, member.Role)

	// The token is consumed.
	_, err = svc.AcceptInvitation(ctx, dana, inv.Token)
	assert.ErrorIs(t, err, ErrInviteNotFound)

	// And the membership exists.
	invites, result, err := svc.ListInvitations(ctx, owner, team.ID)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	assert.Empty(t, invites)
}

func TestAcceptInvitationErrors(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := access.MustCreateUser(t, db, "owner")
	dana := access.MustCreateUser(t, db, "dana")
	team, err := svc.CreateTeam(ctx, owner, "team")
	require.NoError(t, err)

	_, err = svc.AcceptInvitation(ctx, dana, "no-such-token")
	assert.ErrorIs(t, err, ErrInviteNotFound)

	// Expired token.
	expired := NewService(db, svc.guard, time.Nanosecond)
	inv, _, err := expired.CreateInvitation(ctx, owner, team.ID, "dana@example.com", access.RoleMember)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.AcceptInvitation(ctx, dana, inv.Token)
	assert.ErrorIs(t, err, ErrInviteExpired)

	// Existing member accepting a fresh invite.
	access.MustAddMember(t, db, team.ID, dana, access.RoleViewer)
	inv, _, err = svc.CreateInvitation(ctx, owner, team.ID, "dana2@example.com", access.RoleMember)
	require.NoError(t, err)
	_, err = svc.AcceptInvitation(ctx, dana, inv.Token)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestPurgeExpired(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := access.MustCreateUser(t, db, "owner")
	team, err := svc.CreateTeam(ctx, owner, "team")
	require.NoError(t, err)

	shortLived := NewService(db, svc.guard, time.Nanosecond)
	_, _, err = shortLived.CreateInvitation(ctx, owner, team.ID, "a@example.com", access.RoleMember)
	require.NoError(t, err)
	_, _, err = svc.CreateInvitation(ctx, owner, team.ID, "b@example.com", access.RoleMember)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	invites, result, err := svc.ListInvitations(ctx, owner, team.ID)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Len(t, invites, 1)
	assert.Equal(t, "b@example.com", invites[0].Email)
}
