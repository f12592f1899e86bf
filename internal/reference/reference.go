package reference

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

// DefaultCues are the phrases that signal the user is pointing back at an
// earlier conversation. Matching is case-insensitive whole-phrase
// substring; no stemming is applied, the Korean cues already carry their
// particles.
var DefaultCues = []string{
	"이전에",
	"지난번",
	"저번에",
	"예전에",
	"전에 말한",
	"전에 얘기한",
	"아까 말한",
	"last time",
	"previously",
	"as i mentioned",
	"we talked about",
	"earlier",
}

const contextTopK = 3

// Detector spots back-references in a message and pulls supporting context
// from the user's other projects.
type Detector struct {
	store  store.Store
	ranker *ranker.Ranker
	cues   []string
	logger *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithCues replaces the default cue list.
func WithCues(cues []string) Option {
	return func(d *Detector) { d.cues = cues }
}

// NewDetector creates a Detector backed by the given store and ranker.
func NewDetector(st store.Store, rk *ranker.Ranker, logger *zap.Logger, opts ...Option) *Detector {
	d := &Detector{
		store:  st,
		ranker: rk,
		cues:   DefaultCues,
		logger: logger,
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect reports whether the message contains a back-reference cue.
func (d *Detector) Detect(message string) bool {
	lowered := strings.ToLower(message)
	for _, cue := range d.cues {
		if strings.Contains(lowered, strings.ToLower(cue)) {
			return true
		}
	}
	return false
}

// FetchContext searches the user's other projects for turns related to the
// message and bundles the best matches with their project metadata. It
// returns nil when no other project holds any turns at all, which callers
// treat differently from a search that simply found nothing.
func (d *Detector) FetchContext(ctx context.Context, userID string, currentProject uuid.UUID, message string) (*types.ContextBundle, error) {
	n, err := d.store.CountTurnsOutsideProject(ctx, userID, currentProject)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	resp, err := d.ranker.Search(ctx, ranker.Request{
		UserID:           userID,
		Query:            message,
		Mode:             types.ModeHybrid,
		Limit:            contextTopK,
		ExcludeProjectID: &currentProject,
	})
	if err != nil {
		return nil, err
	}

	bundle := &types.ContextBundle{
		Query:   message,
		Results: resp.Results,
	}

	seen := make(map[uuid.UUID]bool)
	for _, res := range resp.Results {
		if seen[res.ProjectID] {
			continue
		}
		seen[res.ProjectID] = true
		project, err := d.store.GetProject(ctx, userID, res.ProjectID)
		if err != nil {
			d.logger.Warn("reference context lost its project",
				zap.String("project_id", res.ProjectID.String()), zap.Error(err))
			continue
		}
		bundle.Projects = append(bundle.Projects, *project)
	}
	return bundle, nil
}
