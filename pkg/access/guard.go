package access

import (
	"context"
	"database/sql"
)

// Guard enforces the membership business rules that plain role comparison
// cannot express: the exactly-one-owner invariant, admin-vs-admin removal,
// role-change restrictions, and owner-only sharing. Guard methods that
// mutate state perform the check and the mutation in one transaction that
// holds the team row, so two racing mutations cannot both pass a check
// that only one of them may survive.
type Guard struct {
	store *Store
}

// NewGuard creates a guard over the given store
func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

// Mutation describes a guarded team mutation for pre-flight checks
type Mutation struct {
	Kind         MutationKind
	TargetUserID int64
	Role         Role // invited or new role, when the kind takes one
}

// GuardMutation evaluates a team mutation without applying it. Routes call
// this before running their own side effects; the applying methods below
// re-evaluate under the team lock, which is the authoritative check.
func (g *Guard) GuardMutation(ctx context.Context, callerID, teamID int64, m Mutation) (GuardResult, error) {
	caller, err := g.store.GetMembership(ctx, teamID, callerID)
	if err != nil {
		return denied(ReasonStorageError), err
	}
	var target *Membership
	if m.TargetUserID != 0 {
		target, err = g.store.GetMembership(ctx, teamID, m.TargetUserID)
		if err != nil {
			return denied(ReasonStorageError), err
		}
	}
	return evaluateTeamMutation(caller, target, callerID, m), nil
}

// evaluateTeamMutation applies the membership rules to a loaded state.
// Callers outside the team get not_found for every kind: a denial must not
// disclose that the team exists.
func evaluateTeamMutation(caller, target *Membership, callerID int64, m Mutation) GuardResult {
	if caller == nil {
		return denied(ReasonNotFound)
	}
	actions := TeamActions(caller.Role)

	switch m.Kind {
	case MutationInviteMember:
		if !actions.Has(ActionInviteMember) {
			return denied(ReasonForbidden)
		}
		// Nobody is invited as owner; the single owner is seeded at team
		// creation and only an explicit ownership transfer could mint
		// another, which this core does not implement.
		if !m.Role.Valid() || m.Role == RoleOwner {
			return denied(ReasonInvariantViolation)
		}
		if target != nil {
			return denied(ReasonInvariantViolation)
		}
		return allowed()

	case MutationChangeRole:
		if caller.Role != RoleOwner {
			return denied(ReasonForbidden)
		}
		if target == nil {
			return denied(ReasonNotFound)
		}
		// Changing to or from owner would break the exactly-one-owner
		// invariant; ownership transfer is a separate operation.
		if target.Role == RoleOwner || !m.Role.Valid() || m.Role == RoleOwner {
			return denied(ReasonInvariantViolation)
		}
		return allowed()

	case MutationRemoveMember, MutationLeaveTeam:
		if callerID == m.TargetUserID {
			// Self-leave: always allowed for non-owners. The owner leaving
			// would strand the team with zero owners.
			if caller.Role == RoleOwner {
				return denied(ReasonInvariantViolation)
			}
			return allowed()
		}
		if !actions.Has(ActionRemoveMember) {
			return denied(ReasonForbidden)
		}
		if target == nil {
			return denied(ReasonNotFound)
		}
		if target.Role == RoleOwner {
			return denied(ReasonInvariantViolation)
		}
		// An admin removing another admin would allow two admins to race
		// each other out of the team; only the owner may do it.
		if target.Role == RoleAdmin && caller.Role != RoleOwner {
			return denied(ReasonForbidden)
		}
		return allowed()

	case MutationDeleteTeam:
		if caller.Role != RoleOwner {
			return denied(ReasonForbidden)
		}
		return allowed()
	}

	return denied(ReasonForbidden)
}

// AddMember adds a user to a team with the given role, subject to the
// invite rules. The check and the insert run under the team lock.
func (g *Guard) AddMember(ctx context.Context, callerID, teamID, userID int64, role Role) (GuardResult, error) {
	result := denied(ReasonStorageError)
	err := g.store.inTeamMutation(ctx, teamID, func(tx *sql.Tx) error {
		caller, err := getMembership(ctx, tx, teamID, callerID)
		if err != nil {
			return err
		}
		target, err := getMembership(ctx, tx, teamID, userID)
		if err != nil {
			return err
		}
		result = evaluateTeamMutation(caller, target, callerID, Mutation{
			Kind:         MutationInviteMember,
			TargetUserID: userID,
			Role:         role,
		})
		if !result.Allowed {
			return nil
		}

		exists, err := userExists(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !exists {
			result = denied(ReasonNotFound)
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO team_members (team_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		`, teamID, userID, role)
		if err != nil {
			return storageErr("add member", err)
		}
		return nil
	})
	if err == ErrTeamNotFound {
		return denied(ReasonNotFound), nil
	}
	if err != nil {
		return denied(ReasonStorageError), err
	}
	return result, nil
}

// ChangeRole changes a member's role. Only the owner may change roles, and
// never to or from owner.
func (g *Guard) ChangeRole(ctx context.Context, callerID, teamID, targetID int64, newRole Role) (GuardResult, error) {
	result := denied(ReasonStorageError)
	err := g.store.inTeamMutation(ctx, teamID, func(tx *sql.Tx) error {
		caller, err := getMembership(ctx, tx, teamID, callerID)
		if err != nil {
			return err
		}
		target, err := getMembership(ctx, tx, teamID, targetID)
		if err != nil {
			return err
		}
		result = evaluateTeamMutation(caller, target, callerID, Mutation{
			Kind:         MutationChangeRole,
			TargetUserID: targetID,
			Role:         newRole,
		})
		if !result.Allowed {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE team_members SET role = $1 WHERE team_id = $2 AND user_id = $3
		`, newRole, teamID, targetID)
		if err != nil {
			return storageErr("change role", err)
		}
		return nil
	})
	if err == ErrTeamNotFound {
		return denied(ReasonNotFound), nil
	}
	if err != nil {
		return denied(ReasonStorageError), err
	}
	return result, nil
}

// RemoveMember removes a member from a team, or lets a non-owner member
// leave when callerID == targetID. Removing a user who is not a member is
// a safe no-op denial, not an error.
func (g *Guard) RemoveMember(ctx context.Context, callerID, teamID, targetID int64) (GuardResult, error) {
	result := denied(ReasonStorageError)
	err := g.store.inTeamMutation(ctx, teamID, func(tx *sql.Tx) error {
		caller, err := getMembership(ctx, tx, teamID, callerID)
		if err != nil {
			return err
		}
		target, err := getMembership(ctx, tx, teamID, targetID)
		if err != nil {
			return err
		}
		kind := MutationRemoveMember
		if callerID == targetID {
			kind = MutationLeaveTeam
		}
		result = evaluateTeamMutation(caller, target, callerID, Mutation{
			Kind:         kind,
			TargetUserID: targetID,
		})
		if !result.Allowed {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM team_members WHERE team_id = $1 AND user_id = $2
		`, teamID, targetID)
		if err != nil {
			return storageErr("remove member", err)
		}
		return nil
	})
	if err == ErrTeamNotFound {
		return denied(ReasonNotFound), nil
	}
	if err != nil {
		return denied(ReasonStorageError), err
	}
	return result, nil
}

// DeleteTeam deletes a team and, through the schema, its memberships.
// Owner only.
func (g *Guard) DeleteTeam(ctx context.Context, callerID, teamID int64) (GuardResult, error) {
	result := denied(ReasonStorageError)
	err := g.store.inTeamMutation(ctx, teamID, func(tx *sql.Tx) error {
		caller, err := getMembership(ctx, tx, teamID, callerID)
		if err != nil {
			return err
		}
		result = evaluateTeamMutation(caller, nil, callerID, Mutation{Kind: MutationDeleteTeam})
		if !result.Allowed {
			return nil
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
		if err != nil {
			return storageErr("delete team", err)
		}
		return nil
	})
	if err == ErrTeamNotFound {
		return denied(ReasonNotFound), nil
	}
	if err != nil {
		return denied(ReasonStorageError), err
	}
	return result, nil
}

// CreateShare shares a task with a user. Only the task owner may share;
// team roles grant no sharing rights. Re-sharing with the same user
// updates the permission in place.
func (g *Guard) CreateShare(ctx context.Context, callerID, taskID, withUserID int64, permission SharePermission) (GuardResult, error) {
	result := denied(ReasonStorageError)
	err := g.store.inMutation(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = g.evaluateShareMutation(ctx, tx, callerID, taskID)
		if err != nil || !result.Allowed {
			return err
		}

		if !permission.Valid() || withUserID == callerID {
			result = denied(ReasonInvariantViolation)
			return nil
		}
		exists, err := userExists(ctx, tx, withUserID)
		if err != nil {
			return err
		}
		if !exists {
			result = denied(ReasonNotFound)
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_shares (task_id, shared_with_user_id, shared_by_user_id, permission, created_at)
			VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
			ON CONFLICT (task_id, shared_with_user_id)
			DO UPDATE SET permission = EXCLUDED.permission
		`, taskID, withUserID, callerID, permission)
		if err != nil {
			return storageErr("create share", err)
		}
		return nil
	})
	if err != nil {
		return denied(ReasonStorageError), err
	}
	return result, nil
}

// RevokeShare revokes a task share. Revoking a share that does not exist
// is a safe no-op denial.
func (g *Guard) RevokeShare(ctx context.Context, callerID, taskID, withUserID int64) (GuardResult, error) {
	result := denied(ReasonStorageError)
	err := g.store.inMutation(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = g.evaluateShareMutation(ctx, tx, callerID, taskID)
		if err != nil || !result.Allowed {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM task_shares WHERE task_id = $1 AND shared_with_user_id = $2
		`, taskID, withUserID)
		if err != nil {
			return storageErr("revoke share", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return storageErr("revoke share", err)
		}
		if affected == 0 {
			result = denied(ReasonNotFound)
		}
		return nil
	})
	if err != nil {
		return denied(ReasonStorageError), err
	}
	return result, nil
}

// evaluateShareMutation checks that the caller owns the task. A non-owner
// who can at least view the task gets forbidden; anyone else gets
// not_found, same leakage policy as the gate.
func (g *Guard) evaluateShareMutation(ctx context.Context, tx *sql.Tx, callerID, taskID int64) (GuardResult, error) {
	task, err := getTask(ctx, tx, taskID)
	if err != nil {
		return denied(ReasonStorageError), err
	}
	if task == nil {
		return denied(ReasonNotFound), nil
	}
	if task.OwnerID == callerID {
		return allowed(), nil
	}

	decision, err := resolveTask(ctx, tx, callerID, task)
	if err != nil {
		return denied(ReasonStorageError), err
	}
	if decision.CanView {
		return denied(ReasonForbidden), nil
	}
	return denied(ReasonNotFound), nil
}

// userExists reports whether a user row exists
func userExists(ctx context.Context, q querier, userID int64) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1`, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get user", err)
	}
	return true, nil
}
