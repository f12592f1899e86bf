package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/socraticlab/recall/internal/indexer"
	"github.com/socraticlab/recall/internal/reference"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

// Step transition commands the UI sends verbatim.
const (
	commandStep2     = "[STEP2로 이동]"
	commandStep3     = "[STEP3로 이동]"
	commandSummarize = "[정리]"
)

// ErrInvalidStep rejects step transitions outside 2 and 3.
var ErrInvalidStep = fmt.Errorf("step must be 2 or 3")

// Reply is one chat exchange's outcome: the assistant's answer plus any
// cross-project context that informed it.
type Reply struct {
	Text      string
	Reference *types.ContextBundle
}

// ChatService runs one exchange end to end: persist the user's turn,
// recall related context if the message points backwards, generate the
// reply, persist it.
type ChatService struct {
	store     store.Store
	indexer   *indexer.Indexer
	detector  *reference.Detector
	generator Generator
	logger    *zap.Logger
}

// NewChatService wires the chat pipeline together.
func NewChatService(st store.Store, idx *indexer.Indexer, det *reference.Detector, gen Generator, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{store: st, indexer: idx, detector: det, generator: gen, logger: logger}
}

// Send handles one user message in the given project.
func (s *ChatService) Send(ctx context.Context, userID string, projectID uuid.UUID, message string) (*Reply, error) {
	if message == "" {
		return nil, types.ErrEmptyText
	}

	userTurn := &types.Turn{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Role:      types.RoleUser,
		Text:      message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.indexer.IndexTurn(ctx, userTurn); err != nil {
		return nil, err
	}

	var bundle *types.ContextBundle
	if s.detector.Detect(message) {
		var err error
		bundle, err = s.detector.FetchContext(ctx, userID, projectID, message)
		if err != nil {
			// Recall is best effort; the chat continues without it.
			s.logger.Warn("cross-project recall failed",
				zap.String("user_id", userID), zap.Error(err))
			bundle = nil
		}
	}

	history, err := s.history(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	text, err := s.generator.Generate(ctx, history, bundle)
	if err != nil {
		return nil, err
	}

	assistantTurn := &types.Turn{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Role:      types.RoleAssistant,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.indexer.IndexTurn(ctx, assistantTurn); err != nil {
		return nil, err
	}

	return &Reply{Text: text, Reference: bundle}, nil
}

// Summarize asks the assistant for the final write-up of the project.
func (s *ChatService) Summarize(ctx context.Context, userID string, projectID uuid.UUID) (*Reply, error) {
	return s.Send(ctx, userID, projectID, commandSummarize)
}

// NextStep advances the planning process to step 2 or 3.
func (s *ChatService) NextStep(ctx context.Context, userID string, projectID uuid.UUID, step int) (*Reply, error) {
	switch step {
	case 2:
		return s.Send(ctx, userID, projectID, commandStep2)
	case 3:
		return s.Send(ctx, userID, projectID, commandStep3)
	default:
		return nil, ErrInvalidStep
	}
}

func (s *ChatService) history(ctx context.Context, userID string, projectID uuid.UUID) ([]Message, error) {
	turns, err := s.store.ListTurns(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	history := make([]Message, 0, len(turns))
	for _, t := range turns {
		history = append(history, Message{Role: string(t.Role), Content: t.Text})
	}
	return history, nil
}
