package teams

import (
	"errors"
	"time"

	"github.com/quillback/taskdeck/pkg/access"
)

// Team is a named group of users sharing a task space
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Invitation is a pending tokened invite into a team. The token travels
// out of band (e-mail); accepting it creates the membership row.
type Invitation struct {
	ID        int64       `json:"id"`
	TeamID    int64       `json:"team_id"`
	Email     string      `json:"email"`
	Role      access.Role `json:"role"`
	Token     string      `json:"-"`
	InvitedBy int64       `json:"invited_by"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the invitation has passed its expiry
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

var (
	// ErrTeamNotFound is returned when a team does not exist
	ErrTeamNotFound = errors.New("team not found")

	// ErrNameTaken is returned when a team name is already in use
	ErrNameTaken = errors.New("team name already taken")

	// ErrInvalidName is returned when a team name fails validation
	ErrInvalidName = errors.New("team name must be 1-100 characters")

	// ErrInviteNotFound is returned for an unknown or already-used token
	ErrInviteNotFound = errors.New("invitation not found")

	// ErrInviteExpired is returned when accepting a token past its expiry
	ErrInviteExpired = errors.New("invitation expired")

	// ErrAlreadyMember is returned when the accepting user already belongs
	// to the team
	ErrAlreadyMember = errors.New("already a member of this team")
)

// ValidateName checks the team name length bounds
func ValidateName(name string) error {
	if len(name) < 1 || len(name) > 100 {
		return ErrInvalidName
	}
	return nil
}
