package teams

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/quillback/taskdeck/pkg/access"
)

// Service implements team lifecycle over PostgreSQL. Membership and share
// mutations that need guard rules live in pkg/access; this service covers
// creation, lookup, and invitations.
type Service struct {
	db        *sql.DB
	guard     *access.Guard
	inviteTTL time.Duration
}

// NewService creates a new team service
func NewService(db *sql.DB, guard *access.Guard, inviteTTL time.Duration) *Service {
	if inviteTTL <= 0 {
		inviteTTL = 7 * 24 * time.Hour
	}
	return &Service{
		db:        db,
		guard:     guard,
		inviteTTL: inviteTTL,
	}
}

// CreateTeam creates a team and seeds the creator's owner membership in
// the same transaction, so a team is never observable without its owner
// row.
func (s *Service) CreateTeam(ctx context.Context, ownerID int64, name string) (*Team, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	team := &Team{
		Name:    name,
		OwnerID: ownerID,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO teams (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, name, ownerID).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("create team: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
	`, team.ID, ownerID, access.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("seed owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return team, nil
}

// GetTeam retrieves a team by ID
func (s *Service) GetTeam(ctx context.Context, teamID int64) (*Team, error) {
	team := &Team{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM teams
		WHERE id = $1
	`, teamID).Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

// ListTeamsForUser lists the teams the user belongs to
func (s *Service) ListTeamsForUser(ctx context.Context, userID int64) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.owner_id, t.created_at, t.updated_at
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1
		ORDER BY t.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// isUniqueViolation reports whether the error is a unique constraint
// violation. lib/pq surfaces class 23505; sqlite (unit tests) reports the
// constraint in the message.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE")
}
