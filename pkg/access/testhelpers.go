package access

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SkipIfNoDatabase skips the test unless TEST_POSTGRES_PRIMARY is set.
// Unit tests in this package run on in-memory sqlite; the Postgres-only
// suites use this to skip cleanly outside CI.
func SkipIfNoDatabase(t testing.TB) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_PRIMARY environment variable not set (database not available)")
	}

	return dbURL
}

// testSchema mirrors the migrations in sqlite dialect. Kept in sync by
// hand; TestMigrationsMatchTestSchema guards the table list.
const testSchema = `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE teams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE CHECK (length(name) >= 1),
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE team_members (
		team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (team_id, user_id)
	);

	CREATE UNIQUE INDEX idx_team_members_single_owner
		ON team_members(team_id) WHERE role = 'owner';

	CREATE TABLE tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		team_id INTEGER REFERENCES teams(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE task_shares (
		task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		shared_with_user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		shared_by_user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		permission TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (task_id, shared_with_user_id),
		CHECK (shared_with_user_id <> shared_by_user_id)
	);

	CREATE TABLE team_invitations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		invited_by INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL,
		UNIQUE (team_id, email)
	);
`

// SetupTestDB opens an in-memory sqlite database with the full schema.
// Exported so sibling packages (teams, tasks) can share it.
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

// NewTestStore returns a store over an in-memory sqlite database. sqlite
// has no REPEATABLE READ or FOR UPDATE, so transaction options and row
// locks are dropped; the single-writer engine serializes instead.
func NewTestStore(t testing.TB) (*Store, *sql.DB) {
	t.Helper()
	db := SetupTestDB(t)
	return NewStoreWithTxOptions(db, nil, nil, false), db
}

// MustCreateUser inserts a user row and returns its id
func MustCreateUser(t testing.TB, db *sql.DB, username string) int64 {
	t.Helper()
	var id int64
	res, err := db.ExecContext(context.Background(),
		`INSERT INTO users (username) VALUES ($1)`, username)
	if err != nil {
		t.Fatalf("Failed to create user %q: %v", username, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read user id: %v", err)
	}
	return id
}

// MustCreateTeam inserts a team and seeds its owner membership
func MustCreateTeam(t testing.TB, db *sql.DB, name string, ownerID int64) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(),
		`INSERT INTO teams (name, owner_id) VALUES ($1, $2)`, name, ownerID)
	if err != nil {
		t.Fatalf("Failed to create team %q: %v", name, err)
	}
	teamID, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read team id: %v", err)
	}
	MustAddMember(t, db, teamID, ownerID, RoleOwner)
	return teamID
}

// MustAddMember inserts a membership row directly, bypassing the guard
func MustAddMember(t testing.TB, db *sql.DB, teamID, userID int64, role Role) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)`,
		teamID, userID, role)
	if err != nil {
		t.Fatalf("Failed to add member %d to team %d: %v", userID, teamID, err)
	}
}

// MustCreateTask inserts a task row and returns its id. teamID may be nil
// for a personal task.
func MustCreateTask(t testing.TB, db *sql.DB, ownerID int64, teamID *int64, title string) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(),
		`INSERT INTO tasks (owner_id, team_id, title) VALUES ($1, $2, $3)`,
		ownerID, teamID, title)
	if err != nil {
		t.Fatalf("Failed to create task %q: %v", title, err)
	}
	taskID, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read task id: %v", err)
	}
	return taskID
}

// MustCreateShare inserts a share row directly, bypassing the guard
func MustCreateShare(t testing.TB, db *sql.DB, taskID, withUserID, byUserID int64, permission SharePermission) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO task_shares (task_id, shared_with_user_id, shared_by_user_id, permission)
		 VALUES ($1, $2, $3, $4)`,
		taskID, withUserID, byUserID, permission)
	if err != nil {
		t.Fatalf("Failed to create share on task %d: %v", taskID, err)
	}
}
