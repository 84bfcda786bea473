package teams

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/taskdeck/pkg/access"
)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db := access.SetupTestDB(t)
	store := access.NewStoreWithTxOptions(db, nil, nil, false)
	return NewService(db, access.NewGuard(store), 7*24*time.Hour), db
}

func TestCreateTeamSeedsOwner(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ownerID := access.MustCreateUser(t, db, "alice")

	team, err := svc.CreateTeam(ctx, ownerID, "hackathon")
	require.NoError(t, err)
	require.NotNil(t, team)
	assert.Equal(t, "hackathon", team.Name)
	assert.Equal(t, ownerID, team.OwnerID)
	assert.NotZero(t, team.ID)

	var role string
	err = db.QueryRow(`SELECT role FROM team_members WHERE team_id = $1 AND user_id = $2`,
		team.ID, ownerID).Scan(&role)
	require.NoError(t, err)
	assert.Equal(t, string(access.RoleOwner), role)
}

func TestCreateTeamValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ownerID := access.MustCreateUser(t, db, "alice")

	_, err := svc.CreateTeam(ctx, ownerID, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.CreateTeam(ctx, ownerID, string(long))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCreateTeamDuplicateName(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := access.MustCreateUser(t, db, "alice")
	bob := access.MustCreateUser(t, db, "bob")

	_, err := svc.CreateTeam(ctx, alice, "hackathon")
	require.NoError(t, err)

	_, err = svc.CreateTeam(ctx, bob, "hackathon")
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestGetTeam(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ownerID := access.MustCreateUser(t, db, "alice")
	created, err := svc.CreateTeam(ctx, ownerID, "hackathon")
	require.NoError(t, err)

	team, err := svc.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, team.ID)
	assert.Equal(t, "hackathon", team.Name)

	_, err = svc.GetTeam(ctx, 9999)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestListTeamsForUser(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := access.MustCreateUser(t, db, "alice")
	bob := access.MustCreateUser(t, db, "bob")

	zebra, err := svc.CreateTeam(ctx, alice, "zebra")
	require.NoError(t, err)
	_, err = svc.CreateTeam(ctx, alice, "apple")
	require.NoError(t, err)
	_, err = svc.CreateTeam(ctx, bob, "bob-team")
	require.NoError(t, err)

	access.MustAddMember(t, db, zebra.ID, bob, access.RoleViewer)

	teams, err := svc.ListTeamsForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "apple", teams[0].Name)
	assert.Equal(t, "zebra", teams[1].Name)

	teams, err = svc.ListTeamsForUser(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, teams, 2)
}
