package types

import "errors"

// Failure classes, grouped by recovery policy.
var (
	// ErrStorage indicates conversation persistence is unavailable. Fatal
	// to the write path; always surfaced to the caller.
	ErrStorage = errors.New("storage unavailable")

	// ErrIndexCorruption indicates a dimensionality mismatch or malformed
	// posting data. Callers should trigger a rebuild from the store rather
	// than serve wrong results.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrProviderUnavailable indicates the embedding provider is down or
	// timed out. Recovered locally by lexical-only scoring; never surfaced
	// as a user-facing failure.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrInvalidScope indicates a search referenced a project the
	// requesting user does not own. Rejected before touching any index.
	ErrInvalidScope = errors.New("invalid search scope")
)

// Validation errors for domain types.
var (
	ErrInvalidTurnID = errors.New("invalid turn ID")
	ErrInvalidRank   = errors.New("rank must be >= 1")
	ErrNegativeScore = errors.New("score must be >= 0")
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrUnknownRole   = errors.New("role must be user or assistant")
	ErrUnknownMode   = errors.New("unknown search mode")
)
