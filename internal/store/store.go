package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/socraticlab/recall/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// Store defines the interface for persisting conversation history. It is
// the source of truth for both in-memory indexes, which rehydrate from it
// at startup and after corruption.
type Store interface {
	// Project operations
	CreateProject(ctx context.Context, userID, name string) (*types.Project, error)
	GetProject(ctx context.Context, userID string, projectID uuid.UUID) (*types.Project, error)
	GetProjectByName(ctx context.Context, userID, name string) (*types.Project, error)
	ListProjects(ctx context.Context, userID string) ([]*types.Project, error)
	RenameProject(ctx context.Context, userID string, projectID uuid.UUID, name string) error
	DeleteProject(ctx context.Context, userID string, projectID uuid.UUID) error

	// Turn operations
	AppendTurn(ctx context.Context, turn *types.Turn) error
	GetTurn(ctx context.Context, turnID uuid.UUID) (*types.Turn, error)
	ListTurns(ctx context.Context, userID string, projectID uuid.UUID) ([]*types.Turn, error)
	ListUserTurns(ctx context.Context, userID string) ([]*types.Turn, error)
	CountTurnsOutsideProject(ctx context.Context, userID string, projectID uuid.UUID) (int, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, turnID uuid.UUID, vector []float32, provider, model string) error
	GetEmbedding(ctx context.Context, turnID uuid.UUID) ([]float32, error)
	ListEmbeddings(ctx context.Context, userID string) (map[uuid.UUID][]float32, error)

	// Database operations
	Close() error
}
