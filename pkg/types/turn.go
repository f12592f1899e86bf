package types

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn represents a single conversation message. A turn is immutable once
// created; Tokens and Embedding are derived fields populated by indexing
// and never affect identity.
type Turn struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	// Derived by indexing. Not part of the persisted identity.
	Tokens    []string  `json:"-"`
	Embedding []float32 `json:"-"`
}

// Validate checks the turn's immutable fields.
func (t *Turn) Validate() error {
	if t.ID == uuid.Nil {
		return ErrInvalidTurnID
	}
	if !t.Role.Valid() {
		return ErrUnknownRole
	}
	if t.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// Project groups the turns of one planning conversation. A user owns 1..N
// projects; a project owns 0..N turns.
type Project struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
