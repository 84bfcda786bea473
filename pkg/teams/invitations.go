package teams

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillback/taskdeck/pkg/access"
)

// CreateInvitation creates a tokened invite into a team. The caller must
// pass the invite guard; an invite for an e-mail that already has a
// pending invite replaces it.
func (s *Service) CreateInvitation(ctx context.Context, callerID, teamID int64, email string, role access.Role) (*Invitation, access.GuardResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, access.GuardResult{Reason: access.ReasonInvariantViolation}, nil
	}

	result, err := s.guard.GuardMutation(ctx, callerID, teamID, access.Mutation{
		Kind: access.MutationInviteMember,
		Role: role,
	})
	if err != nil {
		return nil, result, err
	}
	if !result.Allowed {
		return nil, result, nil
	}

	now := time.Now().UTC()
	inv := &Invitation{
		TeamID:    teamID,
		Email:     email,
		Role:      role,
		Token:     uuid.NewString(),
		InvitedBy: callerID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.inviteTTL),
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO team_invitations (team_id, email, role, token, invited_by, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (team_id, email)
		DO UPDATE SET role = EXCLUDED.role, token = EXCLUDED.token,
			invited_by = EXCLUDED.invited_by, created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		RETURNING id
	`, inv.TeamID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.CreatedAt, inv.ExpiresAt).Scan(&inv.ID)
	if err != nil {
		return nil, access.GuardResult{Reason: access.ReasonStorageError}, fmt.Errorf("create invitation: %w", err)
	}

	return inv, result, nil
}

// AcceptInvitation redeems a token for the accepting user, creating the
// membership row and consuming the invite in one transaction.
func (s *Service) AcceptInvitation(ctx context.Context, userID int64, token string) (*access.Membership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv := &Invitation{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, team_id, email, role, token, invited_by, created_at, expires_at
		FROM team_invitations
		WHERE token = $1
	`, token).Scan(&inv.ID, &inv.TeamID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	if inv.Expired(time.Now().UTC()) {
		return nil, ErrInviteExpired
	}

	var existing int64
	err = tx.QueryRowContext(ctx, `
		SELECT user_id FROM team_members WHERE team_id = $1 AND user_id = $2
	`, inv.TeamID, userID).Scan(&existing)
	if err == nil {
		return nil, ErrAlreadyMember
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check membership: %w", err)
	}

	// The role was validated at invite creation and is never owner, so the
	// insert cannot trip the single-owner index.
	member := &access.Membership{
		TeamID:   inv.TeamID,
		UserID:   userID,
		Role:     inv.Role,
		JoinedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, member.TeamID, member.UserID, member.Role, member.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM team_invitations WHERE id = $1`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("consume invitation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return member, nil
}

// ListInvitations lists the pending invitations for a team. The caller
// must hold the invite right; others get the same denial as for inviting.
func (s *Service) ListInvitations(ctx context.Context, callerID, teamID int64) ([]Invitation, access.GuardResult, error) {
	result, err := s.guard.GuardMutation(ctx, callerID, teamID, access.Mutation{
		Kind: access.MutationInviteMember,
		Role: access.RoleMember,
	})
	if err != nil {
		return nil, result, err
	}
	if !result.Allowed {
		return nil, result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, email, role, token, invited_by, created_at, expires_at
		FROM team_invitations
		WHERE team_id = $1
		ORDER BY created_at
	`, teamID)
	if err != nil {
		return nil, result, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invites []Invitation
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.TeamID, &inv.Email, &inv.Role, &inv.Token,
			&inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt); err != nil {
			return nil, result, fmt.Errorf("scan invitation: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, result, rows.Err()
}

// PurgeExpired deletes invitations past their expiry and returns the count
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM team_invitations WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge invitations: %w", err)
	}
	return res.RowsAffected()
}
