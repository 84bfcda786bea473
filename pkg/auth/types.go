package auth

import "time"

// User represents an account known to the auth boundary
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the verified caller identity handed to everything below the
// auth boundary. The resolver and guard take the user id as an explicit
// argument; Identity only travels from the token check to the handler.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}
