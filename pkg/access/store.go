package access

import (
	"context"
	"database/sql"
	"fmt"
)

// StorageError wraps a failure of the membership/share store. It is
// surfaced to HTTP callers as an opaque 500; the wrapped cause is for
// server-side logs only.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("access store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// querier is the subset of *sql.DB / *sql.Tx the read paths need, so the
// same lookups run directly or inside a snapshot transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Store provides keyed reads over the membership, share and task relations,
// plus the transactional entry points the resolver and guard run inside.
type Store struct {
	db *sql.DB

	// snapshotOpts is the transaction mode for resolver reads. On Postgres
	// this is a read-only REPEATABLE READ transaction so the three channel
	// lookups of one decision observe a single snapshot.
	snapshotOpts *sql.TxOptions

	// mutationOpts is the transaction mode for guard mutations.
	mutationOpts *sql.TxOptions

	// rowLocks enables SELECT ... FOR UPDATE on the team row to serialize
	// membership mutations per team. Disabled for engines without row
	// locks, where the transaction itself serializes writers.
	rowLocks bool
}

// NewStore creates a store backed by PostgreSQL
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		snapshotOpts: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
		mutationOpts: &sql.TxOptions{},
		rowLocks:     true,
	}
}

// NewStoreWithTxOptions creates a store with explicit transaction modes.
// Intended for engines without REPEATABLE READ or row-level locks (sqlite);
// such engines serialize writers at the database level instead.
func NewStoreWithTxOptions(db *sql.DB, snapshot, mutation *sql.TxOptions, rowLocks bool) *Store {
	return &Store{
		db:           db,
		snapshotOpts: snapshot,
		mutationOpts: mutation,
		rowLocks:     rowLocks,
	}
}

// inSnapshot runs fn inside a single read transaction. Every resolve
// decision goes through here: a role change racing with a resolve call
// must never yield a union built from two different states.
func (s *Store) inSnapshot(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, s.snapshotOpts)
	if err != nil {
		return storageErr("begin snapshot", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// inTeamMutation runs fn inside a transaction that holds the team row,
// serializing membership mutations per team.
func (s *Store) inTeamMutation(ctx context.Context, teamID int64, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.mutationOpts)
	if err != nil {
		return storageErr("begin mutation", err)
	}
	defer tx.Rollback()

	query := `SELECT id FROM teams WHERE id = $1`
	if s.rowLocks {
		query += ` FOR UPDATE`
	}
	var id int64
	err = tx.QueryRowContext(ctx, query, teamID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrTeamNotFound
	}
	if err != nil {
		return storageErr("lock team", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit mutation", err)
	}
	return nil
}

// inMutation runs fn inside a plain mutation transaction (share mutations
// are keyed by task, not team, and need no team row lock).
func (s *Store) inMutation(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.mutationOpts)
	if err != nil {
		return storageErr("begin mutation", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit mutation", err)
	}
	return nil
}

// ErrTeamNotFound is returned by guard mutations against a missing team
var ErrTeamNotFound = fmt.Errorf("team not found")

// getTask fetches a task row. Returns (nil, nil) when the task does not
// exist; absence is a normal input to the gate, not an error.
func getTask(ctx context.Context, q querier, taskID int64) (*Task, error) {
	query := `
		SELECT id, owner_id, team_id, title, completed
		FROM tasks
		WHERE id = $1
	`
	task := &Task{}
	var teamID sql.NullInt64
	err := q.QueryRowContext(ctx, query, taskID).Scan(
		&task.ID, &task.OwnerID, &teamID, &task.Title, &task.Completed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get task", err)
	}
	if teamID.Valid {
		id := teamID.Int64
		task.TeamID = &id
	}
	return task, nil
}

// getMembership fetches a user's membership in a team. Returns (nil, nil)
// when the user is not a member.
func getMembership(ctx context.Context, q querier, teamID, userID int64) (*Membership, error) {
	query := `
		SELECT team_id, user_id, role, joined_at
		FROM team_members
		WHERE team_id = $1 AND user_id = $2
	`
	m := &Membership{}
	err := q.QueryRowContext(ctx, query, teamID, userID).Scan(
		&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get membership", err)
	}
	return m, nil
}

// getShare fetches the share row for (task, user). Returns (nil, nil)
// when no share exists.
func getShare(ctx context.Context, q querier, taskID, userID int64) (*Share, error) {
	query := `
		SELECT task_id, shared_with_user_id, shared_by_user_id, permission, created_at
		FROM task_shares
		WHERE task_id = $1 AND shared_with_user_id = $2
	`
	share := &Share{}
	err := q.QueryRowContext(ctx, query, taskID, userID).Scan(
		&share.TaskID, &share.SharedWithUserID, &share.SharedByUserID,
		&share.Permission, &share.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get share", err)
	}
	return share, nil
}

// GetTask fetches a task outside a snapshot (guard paths and handlers).
// Returns (nil, nil) when the task does not exist.
func (s *Store) GetTask(ctx context.Context, taskID int64) (*Task, error) {
	return getTask(ctx, s.db, taskID)
}

// GetMembership fetches a membership outside a snapshot.
// Returns (nil, nil) when the user is not a member.
func (s *Store) GetMembership(ctx context.Context, teamID, userID int64) (*Membership, error) {
	return getMembership(ctx, s.db, teamID, userID)
}

// ListMembers returns all memberships of a team ordered by join time
func (s *Store) ListMembers(ctx context.Context, teamID int64) ([]Membership, error) {
	query := `
		SELECT team_id, user_id, role, joined_at
		FROM team_members
		WHERE team_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, storageErr("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list members", err)
	}
	return members, nil
}

// ListShares returns all shares of a task
func (s *Store) ListShares(ctx context.Context, taskID int64) ([]Share, error) {
	query := `
		SELECT task_id, shared_with_user_id, shared_by_user_id, permission, created_at
		FROM task_shares
		WHERE task_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, storageErr("list shares", err)
	}
	defer rows.Close()

	var shares []Share
	for rows.Next() {
		var sh Share
		if err := rows.Scan(&sh.TaskID, &sh.SharedWithUserID, &sh.SharedByUserID, &sh.Permission, &sh.CreatedAt); err != nil {
			return nil, storageErr("scan share", err)
		}
		shares = append(shares, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list shares", err)
	}
	return shares, nil
}

// countRole returns how many members of a team hold the given role
func countRole(ctx context.Context, q querier, teamID int64, role Role) (int, error) {
	query := `SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND role = $2`
	var n int
	if err := q.QueryRowContext(ctx, query, teamID, role).Scan(&n); err != nil {
		return 0, storageErr("count role", err)
	}
	return n, nil
}
