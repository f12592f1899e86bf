package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socraticlab/recall/internal/embedder"
	"github.com/socraticlab/recall/internal/lexical"
	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/reference"
	"github.com/socraticlab/recall/internal/semantic"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

type fixture struct {
	server   *Server
	store    *store.SQLiteStore
	lexical  *lexical.Index
	semantic *semantic.Index
	embedder embedder.Embedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	lex := lexical.NewIndex()
	sem := semantic.NewIndex(emb.Dimension())
	rk := ranker.New(st, lex, sem, emb, nil)
	det := reference.NewDetector(st, rk, nil)

	return &fixture{
		server:   NewServer(st, rk, det),
		store:    st,
		lexical:  lex,
		semantic: sem,
		embedder: emb,
	}
}

func (f *fixture) seed(t *testing.T, userID, projectName, text string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	project, err := f.store.GetProjectByName(ctx, userID, projectName)
	if err != nil {
		project, err = f.store.CreateProject(ctx, userID, projectName)
		require.NoError(t, err)
	}
	turn := &types.Turn{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: project.ID,
		Role:      types.RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.store.AppendTurn(ctx, turn))
	f.lexical.Add(turn)
	e, err := f.embedder.Embed(ctx, text)
	require.NoError(t, err)
	require.NoError(t, f.semantic.Add(turn, e.Vector))
	return project.ID
}

func callRequest(args map[string]interface{}) mcpgo.CallToolRequest {
	var req mcpgo.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &parsed))
	return parsed
}

func TestSearchMemoryTool(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "jihye", "카페 창업", "창업 자금은 오천만원")

	result, err := f.server.handleSearchMemory(context.Background(), callRequest(map[string]interface{}{
		"user_id": "jihye",
		"query":   "창업 자금",
		"mode":    "tfidf",
	}))
	require.NoError(t, err)

	parsed := resultJSON(t, result)
	assert.Equal(t, "tfidf", parsed["mode"])
	assert.NotEmpty(t, parsed["results"])
}

func TestSearchMemoryToolRejectsEmptyQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.server.handleSearchMemory(context.Background(), callRequest(map[string]interface{}{
		"user_id": "jihye",
		"query":   "",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)
}

func TestFetchReferenceContextTool(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "jihye", "카페 창업", "창업 자금은 오천만원")
	travelID := f.seed(t, "jihye", "제주 여행", "여행 일정 정리")

	result, err := f.server.handleFetchReferenceContext(context.Background(), callRequest(map[string]interface{}{
		"user_id":    "jihye",
		"project_id": travelID.String(),
		"message":    "이전에 얘기한 창업 자금 기억나?",
	}))
	require.NoError(t, err)

	parsed := resultJSON(t, result)
	assert.Equal(t, true, parsed["detected"])
	assert.NotNil(t, parsed["context"])
}

func TestFetchReferenceContextToolNoCue(t *testing.T) {
	f := newFixture(t)
	pid := f.seed(t, "jihye", "카페 창업", "창업 자금")

	result, err := f.server.handleFetchReferenceContext(context.Background(), callRequest(map[string]interface{}{
		"user_id":    "jihye",
		"project_id": pid.String(),
		"message":    "오늘 날씨 어때",
	}))
	require.NoError(t, err)

	parsed := resultJSON(t, result)
	assert.Equal(t, false, parsed["detected"])
	_, hasContext := parsed["context"]
	assert.False(t, hasContext)
}

func TestExportMemoryTool(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "jihye", "카페 창업", "창업 자금은 오천만원")

	result, err := f.server.handleExportMemory(context.Background(), callRequest(map[string]interface{}{
		"user_id": "jihye",
	}))
	require.NoError(t, err)

	parsed := resultJSON(t, result)
	assert.Equal(t, "jihye", parsed["user"])
	projects := parsed["projects"].([]any)
	require.Len(t, projects, 1)
}

func TestInvalidProjectID(t *testing.T) {
	f := newFixture(t)

	_, err := f.server.handleFetchReferenceContext(context.Background(), callRequest(map[string]interface{}{
		"user_id":    "jihye",
		"project_id": "not-a-uuid",
		"message":    "이전에 했던 얘기",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}
