package access

import (
	"context"
	"testing"
)

func TestResolverOwnershipGrantsEverything(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	owner := MustCreateUser(t, db, "alice")
	taskID := MustCreateTask(t, db, owner, nil, "write report")

	resolver := NewResolver(store)
	decision, err := resolver.Resolve(ctx, owner, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if !decision.CanView || !decision.CanEdit || !decision.CanDelete || !decision.CanShare {
		t.Errorf("Expected owner to hold all rights, got %+v", decision)
	}
	if len(decision.Channels) != 1 || decision.Channels[0] != ChannelOwner {
		t.Errorf("Expected single owner channel, got %v", decision.Channels)
	}
}

// Ownership is resolved before any team lookup, so an owner whose team
// role is viewer keeps full rights on their own task.
func TestResolverOwnershipBeatsWeakTeamRole(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	boss := MustCreateUser(t, db, "boss")
	alice := MustCreateUser(t, db, "alice")
	teamID := MustCreateTeam(t, db, "hackathon", boss)
	MustAddMember(t, db, teamID, alice, RoleViewer)
	taskID := MustCreateTask(t, db, alice, &teamID, "alice's own task")

	decision, err := NewResolver(store).Resolve(ctx, alice, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !decision.CanDelete || !decision.CanShare {
		t.Errorf("Expected ownership to override viewer role, got %+v", decision)
	}
}

func TestResolverTeamChannel(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		canView   bool
		canEdit   bool
		canDelete bool
	}{
		{"owner role edits and deletes any team task", RoleOwner, true, true, true},
		{"admin role edits and deletes any team task", RoleAdmin, true, true, true},
		{"member role views only", RoleMember, true, false, false},
		{"viewer role views only", RoleViewer, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, db := NewTestStore(t)
			ctx := context.Background()

			author := MustCreateUser(t, db, "author")
			caller := MustCreateUser(t, db, "caller")
			var teamID int64
			if tt.role == RoleOwner {
				teamID = MustCreateTeam(t, db, "team", caller)
				MustAddMember(t, db, teamID, author, RoleMember)
			} else {
				teamID = MustCreateTeam(t, db, "team", author)
				MustAddMember(t, db, teamID, caller, tt.role)
			}
			taskID := MustCreateTask(t, db, author, &teamID, "team task")

			decision, err := NewResolver(store).Resolve(ctx, caller, taskID)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if decision.CanView != tt.canView || decision.CanEdit != tt.canEdit || decision.CanDelete != tt.canDelete {
				t.Errorf("Role %s: got view=%v edit=%v delete=%v, want %v/%v/%v",
					tt.role, decision.CanView, decision.CanEdit, decision.CanDelete,
					tt.canView, tt.canEdit, tt.canDelete)
			}
			// No team role grants sharing of somebody else's task.
			if decision.CanShare {
				t.Errorf("Role %s must not grant share on a task it does not own", tt.role)
			}
		})
	}
}

func TestResolverShareChannel(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	owner := MustCreateUser(t, db, "owner")
	viewer := MustCreateUser(t, db, "viewer")
	editor := MustCreateUser(t, db, "editor")
	taskID := MustCreateTask(t, db, owner, nil, "shared task")
	MustCreateShare(t, db, taskID, viewer, owner, PermissionView)
	MustCreateShare(t, db, taskID, editor, owner, PermissionEdit)

	resolver := NewResolver(store)

	viewDec, err := resolver.Resolve(ctx, viewer, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !viewDec.CanView || viewDec.CanEdit {
		t.Errorf("Expected view share to grant view only, got %+v", viewDec)
	}

	editDec, err := resolver.Resolve(ctx, editor, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !editDec.CanView || !editDec.CanEdit {
		t.Errorf("Expected edit share to grant view and edit, got %+v", editDec)
	}
	if editDec.CanDelete || editDec.CanShare {
		t.Errorf("A share must never grant delete or onward share, got %+v", editDec)
	}
}

// A weak share must not mask stronger team rights; channels union, they
// never subtract.
func TestResolverUnionIsMonotone(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	owner := MustCreateUser(t, db, "owner")
	admin := MustCreateUser(t, db, "admin")
	teamID := MustCreateTeam(t, db, "team", owner)
	MustAddMember(t, db, teamID, admin, RoleAdmin)
	taskID := MustCreateTask(t, db, owner, &teamID, "team task")
	MustCreateShare(t, db, taskID, admin, owner, PermissionView)

	decision, err := NewResolver(store).Resolve(ctx, admin, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !decision.CanEdit || !decision.CanDelete {
		t.Errorf("Expected admin rights to survive a weaker view share, got %+v", decision)
	}
	if len(decision.Channels) != 2 {
		t.Errorf("Expected both team and share channels recorded, got %v", decision.Channels)
	}
}

// Roles outside the closed set grant nothing, even if a row carries one.
func TestResolverUnknownRoleFailsClosed(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	owner := MustCreateUser(t, db, "owner")
	intruder := MustCreateUser(t, db, "intruder")
	teamID := MustCreateTeam(t, db, "team", owner)
	MustAddMember(t, db, teamID, intruder, Role("superadmin"))
	taskID := MustCreateTask(t, db, owner, &teamID, "team task")

	decision, err := NewResolver(store).Resolve(ctx, intruder, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if decision.CanView || decision.CanEdit || decision.CanDelete || decision.CanShare {
		t.Errorf("Expected unknown role to grant nothing, got %+v", decision)
	}
}

func TestResolverStrangerHasNoRights(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	owner := MustCreateUser(t, db, "owner")
	stranger := MustCreateUser(t, db, "stranger")
	taskID := MustCreateTask(t, db, owner, nil, "private task")

	decision, err := NewResolver(store).Resolve(ctx, stranger, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if decision.CanView {
		t.Errorf("Expected stranger to have no rights, got %+v", decision)
	}
	if len(decision.Channels) != 1 || decision.Channels[0] != ChannelNone {
		t.Errorf("Expected the none channel, got %v", decision.Channels)
	}
}

func TestResolverMissingTask(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	caller := MustCreateUser(t, db, "caller")

	decision, err := NewResolver(store).Resolve(ctx, caller, 9999)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if decision.CanView || decision.CanEdit || decision.CanDelete || decision.CanShare {
		t.Errorf("Expected a missing task to resolve to zero rights, got %+v", decision)
	}
}

// A personal task with no team attachment is invisible to teammates of
// its owner.
func TestResolverPersonalTaskInvisibleToTeammates(t *testing.T) {
	store, db := NewTestStore(t)
	ctx := context.Background()

	owner := MustCreateUser(t, db, "owner")
	teammate := MustCreateUser(t, db, "teammate")
	teamID := MustCreateTeam(t, db, "team", owner)
	MustAddMember(t, db, teamID, teammate, RoleAdmin)
	taskID := MustCreateTask(t, db, owner, nil, "personal task")

	decision, err := NewResolver(store).Resolve(ctx, teammate, taskID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if decision.CanView {
		t.Errorf("Expected personal task to be invisible to teammates, got %+v", decision)
	}
}
