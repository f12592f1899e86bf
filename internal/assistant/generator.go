package assistant

import (
	"context"

	"github.com/socraticlab/recall/pkg/types"
)

// Message is one entry of the conversation as the model sees it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the assistant's reply for a conversation. The bundle,
// when non-nil, carries related turns recalled from the user's other
// projects and is surfaced to the model alongside the system prompt.
type Generator interface {
	Generate(ctx context.Context, history []Message, bundle *types.ContextBundle) (string, error)
}
