package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/socraticlab/recall/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", types.ErrStorage, err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %v", types.ErrStorage, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Project operations

// CreateProject inserts a new project for the user. The (user, name) pair
// is unique; a duplicate name returns ErrAlreadyExists.
func (s *SQLiteStore) CreateProject(ctx context.Context, userID, name string) (*types.Project, error) {
	project := &types.Project{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		project.ID.String(), project.UserID, project.Name, project.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("project %q: %w", name, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("%w: create project: %v", types.ErrStorage, err)
	}

	return project, nil
}

// GetProject fetches a project owned by the user.
func (s *SQLiteStore) GetProject(ctx context.Context, userID string, projectID uuid.UUID) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE id = ? AND user_id = ?`,
		projectID.String(), userID,
	)
	return scanProject(row)
}

// GetProjectByName fetches a project by its user-scoped name.
func (s *SQLiteStore) GetProjectByName(ctx context.Context, userID, name string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = ? AND name = ?`,
		userID, name,
	)
	return scanProject(row)
}

// ListProjects returns the user's projects, oldest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID string) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = ? ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", types.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*types.Project
	for rows.Next() {
		var p types.Project
		var id string
		if err := rows.Scan(&id, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan project: %v", types.ErrStorage, err)
		}
		p.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed project id %q", types.ErrIndexCorruption, id)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// RenameProject updates a project's name. The new name must be unique for
// the user.
func (s *SQLiteStore) RenameProject(ctx context.Context, userID string, projectID uuid.UUID, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ? WHERE id = ? AND user_id = ?`,
		name, projectID.String(), userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project %q: %w", name, ErrAlreadyExists)
		}
		return fmt.Errorf("%w: rename project: %v", types.ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rename project: %v", types.ErrStorage, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes a project and, via ON DELETE CASCADE, all its turns
// and their embeddings in one transaction. Index eviction is the caller's
// responsibility and must complete before the deletion is reported done.
func (s *SQLiteStore) DeleteProject(ctx context.Context, userID string, projectID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ? AND user_id = ?`,
		projectID.String(), userID,
	)
	if err != nil {
		return fmt.Errorf("%w: delete project: %v", types.ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete project: %v", types.ErrStorage, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Turn operations

// AppendTurn inserts a turn. The turn's ID and CreatedAt must be set by the
// caller; the row is never updated afterwards.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *types.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, project_id, user_id, role, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID.String(), turn.ProjectID.String(), turn.UserID, string(turn.Role), turn.Text, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: append turn: %v", types.ErrStorage, err)
	}
	return nil
}

// GetTurn fetches a single turn by ID.
func (s *SQLiteStore) GetTurn(ctx context.Context, turnID uuid.UUID) (*types.Turn, error) {
	turns, err := s.queryTurns(ctx,
		`SELECT id, project_id, user_id, role, text, created_at FROM turns WHERE id = ?`,
		turnID.String(),
	)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, ErrNotFound
	}
	return turns[0], nil
}

// ListTurns returns a project's turns in chronological order.
func (s *SQLiteStore) ListTurns(ctx context.Context, userID string, projectID uuid.UUID) ([]*types.Turn, error) {
	return s.queryTurns(ctx,
		`SELECT id, project_id, user_id, role, text, created_at FROM turns
		 WHERE user_id = ? AND project_id = ? ORDER BY created_at ASC, id ASC`,
		userID, projectID.String(),
	)
}

// ListUserTurns returns every turn the user owns across all projects,
// chronological. Used to rehydrate the in-memory indexes.
func (s *SQLiteStore) ListUserTurns(ctx context.Context, userID string) ([]*types.Turn, error) {
	return s.queryTurns(ctx,
		`SELECT id, project_id, user_id, role, text, created_at FROM turns
		 WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID,
	)
}

// CountTurnsOutsideProject counts the user's turns stored in any project
// other than the given one. Used to decide whether cross-project recall
// has anything to draw on.
func (s *SQLiteStore) CountTurnsOutsideProject(ctx context.Context, userID string, projectID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE user_id = ? AND project_id != ?`,
		userID, projectID.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count turns: %v", types.ErrStorage, err)
	}
	return n, nil
}

// Embedding operations

// UpsertEmbedding stores the turn's embedding vector as a little-endian
// float32 blob.
func (s *SQLiteStore) UpsertEmbedding(ctx context.Context, turnID uuid.UUID, vector []float32, provider, model string) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty embedding for turn %s", types.ErrIndexCorruption, turnID)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (turn_id, vector, dimension, provider, model)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(turn_id) DO UPDATE SET
		   vector = excluded.vector,
		   dimension = excluded.dimension,
		   provider = excluded.provider,
		   model = excluded.model`,
		turnID.String(), serializeVector(vector), len(vector), provider, model,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert embedding: %v", types.ErrStorage, err)
	}
	return nil
}

// GetEmbedding fetches one turn's embedding vector.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, turnID uuid.UUID) ([]float32, error) {
	var blob []byte
	var dimension int
	err := s.db.QueryRowContext(ctx,
		`SELECT vector, dimension FROM embeddings WHERE turn_id = ?`,
		turnID.String(),
	).Scan(&blob, &dimension)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get embedding: %v", types.ErrStorage, err)
	}
	return deserializeVector(blob, dimension)
}

// ListEmbeddings returns every stored embedding for the user's turns,
// keyed by turn ID. Used to rehydrate the semantic index.
func (s *SQLiteStore) ListEmbeddings(ctx context.Context, userID string) (map[uuid.UUID][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.turn_id, e.vector, e.dimension
		 FROM embeddings e
		 INNER JOIN turns t ON t.id = e.turn_id
		 WHERE t.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list embeddings: %v", types.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[uuid.UUID][]float32)
	for rows.Next() {
		var idStr string
		var blob []byte
		var dimension int
		if err := rows.Scan(&idStr, &blob, &dimension); err != nil {
			return nil, fmt.Errorf("%w: scan embedding: %v", types.ErrStorage, err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed turn id %q", types.ErrIndexCorruption, idStr)
		}
		vec, err := deserializeVector(blob, dimension)
		if err != nil {
			return nil, err
		}
		out[id] = vec
	}
	return out, rows.Err()
}

// helpers

func (s *SQLiteStore) queryTurns(ctx context.Context, query string, args ...interface{}) ([]*types.Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query turns: %v", types.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var turns []*types.Turn
	for rows.Next() {
		var t types.Turn
		var id, projectID, role string
		if err := rows.Scan(&id, &projectID, &t.UserID, &role, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan turn: %v", types.ErrStorage, err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: malformed turn id %q", types.ErrIndexCorruption, id)
		}
		if t.ProjectID, err = uuid.Parse(projectID); err != nil {
			return nil, fmt.Errorf("%w: malformed project id %q", types.ErrIndexCorruption, projectID)
		}
		t.Role = types.Role(role)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

func scanProject(row *sql.Row) (*types.Project, error) {
	var p types.Project
	var id string
	err := row.Scan(&id, &p.UserID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan project: %v", types.ErrStorage, err)
	}
	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed project id %q", types.ErrIndexCorruption, id)
	}
	return &p, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// Matched by message so both the cgo and purego drivers are covered.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
