package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socraticlab/recall/internal/embedder"
	"github.com/socraticlab/recall/internal/indexer"
	"github.com/socraticlab/recall/internal/lexical"
	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/reference"
	"github.com/socraticlab/recall/internal/semantic"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

func TestAnthropicClientAPIKeyHeaders(t *testing.T) {
	var gotReq messagesRequest
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "어떤 문제를 다루고 싶어?"}},
		})
	}))
	defer srv.Close()

	client := NewAnthropicClient(Credentials{Token: "sk-test"}, "", WithBaseURL(srv.URL))
	reply, err := client.Generate(context.Background(), []Message{
		{Role: "user", Content: "카페 창업 기획 도와줘"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "어떤 문제를 다루고 싶어?", reply)

	assert.Equal(t, "sk-test", gotHeaders.Get("x-api-key"))
	assert.Empty(t, gotHeaders.Get("Authorization"))
	assert.Equal(t, "2023-06-01", gotHeaders.Get("anthropic-version"))
	assert.Equal(t, DefaultModel, gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestAnthropicClientOAuthHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "ok"}},
		})
	}))
	defer srv.Close()

	client := NewAnthropicClient(Credentials{Token: "oauth-token", OAuth: true}, "", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer oauth-token", gotHeaders.Get("Authorization"))
	assert.Equal(t, "oauth-2025-04-20", gotHeaders.Get("anthropic-beta"))
	assert.Empty(t, gotHeaders.Get("x-api-key"))
}

func TestAnthropicClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewAnthropicClient(Credentials{Token: "sk-test"}, "", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, types.ErrProviderUnavailable)
}

func TestSystemPromptCarriesBundle(t *testing.T) {
	var gotReq messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "ok"}},
		})
	}))
	defer srv.Close()

	pid := uuid.New()
	bundle := &types.ContextBundle{
		Query: "이전에 얘기한 창업 자금",
		Results: []types.SearchResult{
			{TurnID: uuid.New(), ProjectID: pid, Rank: 1, Score: 0.9, Snippet: "창업 자금은 오천만원"},
		},
		Projects: []types.Project{{ID: pid, UserID: "jihye", Name: "카페 창업"}},
	}

	client := NewAnthropicClient(Credentials{Token: "sk-test"}, "", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), nil, bundle)
	require.NoError(t, err)

	assert.Contains(t, gotReq.System, "카페 창업")
	assert.Contains(t, gotReq.System, "창업 자금은 오천만원")
}

func TestLoadCredentialsExplicitWins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	creds, err := LoadCredentials("explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", creds.Token)
	assert.False(t, creds.OAuth)

	creds, err = LoadCredentials("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", creds.Token)
	assert.False(t, creds.OAuth)
}

func TestLoadCredentialsOAuthProfileBeatsEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	dir := filepath.Join(home, ".openclaw", "agents", "main", "agent")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	profiles := `{"profiles": {"main": {"provider": "anthropic", "type": "oauth", "access": "oauth-token"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth-profiles.json"), []byte(profiles), 0o600))

	creds, err := LoadCredentials("")
	require.NoError(t, err)
	assert.Equal(t, "oauth-token", creds.Token)
	assert.True(t, creds.OAuth)
}

func TestLoadCredentialsIgnoresForeignProfiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "")

	dir := filepath.Join(home, ".openclaw", "agents", "main", "agent")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	profiles := `{"profiles": {"other": {"provider": "openai", "type": "oauth", "access": "nope"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth-profiles.json"), []byte(profiles), 0o600))

	_, err := LoadCredentials("")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

// echoGenerator returns a canned reply and records what it was given.
type echoGenerator struct {
	lastHistory []Message
	lastBundle  *types.ContextBundle
	reply       string
}

func (g *echoGenerator) Generate(_ context.Context, history []Message, bundle *types.ContextBundle) (string, error) {
	g.lastHistory = history
	g.lastBundle = bundle
	return g.reply, nil
}

type chatFixture struct {
	store   *store.SQLiteStore
	gen     *echoGenerator
	chat    *ChatService
	indexer *indexer.Indexer
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	lex := lexical.NewIndex()
	sem := semantic.NewIndex(emb.Dimension())
	idx := indexer.New(st, lex, sem, emb, nil, indexer.Synchronous())
	rk := ranker.New(st, lex, sem, emb, nil)
	det := reference.NewDetector(st, rk, nil)

	gen := &echoGenerator{reply: "왜 그게 필요하다고 생각해?"}
	return &chatFixture{
		store:   st,
		gen:     gen,
		chat:    NewChatService(st, idx, det, gen, nil),
		indexer: idx,
	}
}

func (f *chatFixture) project(t *testing.T, userID, name string) uuid.UUID {
	t.Helper()
	p, err := f.store.CreateProject(context.Background(), userID, name)
	require.NoError(t, err)
	return p.ID
}

func TestSendPersistsBothTurns(t *testing.T) {
	f := newChatFixture(t)
	pid := f.project(t, "jihye", "카페 창업")
	ctx := context.Background()

	reply, err := f.chat.Send(ctx, "jihye", pid, "카페를 열고 싶어")
	require.NoError(t, err)
	assert.Equal(t, "왜 그게 필요하다고 생각해?", reply.Text)
	assert.Nil(t, reply.Reference)

	turns, err := f.store.ListTurns(ctx, "jihye", pid)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)

	// History handed to the generator includes the new user turn.
	require.NotEmpty(t, f.gen.lastHistory)
	assert.Equal(t, "카페를 열고 싶어", f.gen.lastHistory[len(f.gen.lastHistory)-1].Content)
}

func TestSendRecallsAcrossProjects(t *testing.T) {
	f := newChatFixture(t)
	cafe := f.project(t, "jihye", "카페 창업")
	travel := f.project(t, "jihye", "제주 여행")
	ctx := context.Background()

	_, err := f.chat.Send(ctx, "jihye", cafe, "창업 자금은 오천만원으로 잡았어")
	require.NoError(t, err)

	reply, err := f.chat.Send(ctx, "jihye", travel, "이전에 얘기한 창업 자금 기억나?")
	require.NoError(t, err)
	require.NotNil(t, reply.Reference)
	assert.NotEmpty(t, reply.Reference.Results)
	assert.Equal(t, reply.Reference, f.gen.lastBundle)
}

func TestSendWithoutCueSkipsRecall(t *testing.T) {
	f := newChatFixture(t)
	pid := f.project(t, "jihye", "카페 창업")

	reply, err := f.chat.Send(context.Background(), "jihye", pid, "오늘 날씨 어때")
	require.NoError(t, err)
	assert.Nil(t, reply.Reference)
	assert.Nil(t, f.gen.lastBundle)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	f := newChatFixture(t)
	pid := f.project(t, "jihye", "카페 창업")

	_, err := f.chat.Send(context.Background(), "jihye", pid, "")
	assert.ErrorIs(t, err, types.ErrEmptyText)
}

func TestNextStepCommands(t *testing.T) {
	f := newChatFixture(t)
	pid := f.project(t, "jihye", "카페 창업")
	ctx := context.Background()

	_, err := f.chat.NextStep(ctx, "jihye", pid, 2)
	require.NoError(t, err)
	assert.Equal(t, commandStep2, f.gen.lastHistory[len(f.gen.lastHistory)-1].Content)

	_, err = f.chat.NextStep(ctx, "jihye", pid, 5)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestSummarizeSendsCommand(t *testing.T) {
	f := newChatFixture(t)
	pid := f.project(t, "jihye", "카페 창업")

	_, err := f.chat.Summarize(context.Background(), "jihye", pid)
	require.NoError(t, err)
	assert.Equal(t, commandSummarize, f.gen.lastHistory[len(f.gen.lastHistory)-1].Content)
}
