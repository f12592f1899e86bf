package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socraticlab/recall/internal/assistant"
	"github.com/socraticlab/recall/internal/embedder"
	"github.com/socraticlab/recall/internal/indexer"
	"github.com/socraticlab/recall/internal/lexical"
	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/reference"
	"github.com/socraticlab/recall/internal/semantic"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

// testGenerator mirrors the offline test mode: a canned Korean reply.
type testGenerator struct{}

func (testGenerator) Generate(_ context.Context, history []assistant.Message, _ *types.ContextBundle) (string, error) {
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1].Content
	}
	return "테스트 응답: " + last, nil
}

// client wraps app.Test with a cookie jar so sessions stick.
type client struct {
	t       *testing.T
	server  *Server
	cookies []*http.Cookie
}

func newClient(t *testing.T) *client {
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
	chat := assistant.NewChatService(st, idx, det, testGenerator{}, nil)

	return &client{t: t, server: New(st, idx, rk, chat, nil)}
}

func (c *client) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	resp, err := c.server.App().Test(req, -1)
	require.NoError(c.t, err)
	if set := resp.Cookies(); len(set) > 0 {
		c.cookies = set
	}

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	var parsed map[string]any
	if len(data) > 0 && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		require.NoError(c.t, json.Unmarshal(data, &parsed))
	}
	return resp, parsed
}

func (c *client) login(nickname string) {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/set_user", map[string]string{"nickname": nickname})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	require.Equal(c.t, nickname, body["user"])
}

func TestSetUser(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
}

func TestSetUserEmpty(t *testing.T) {
	c := newClient(t)
	resp, _ := c.do(http.MethodPost, "/set_user", map[string]string{"nickname": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatRoundTrip(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "카페 창업"})

	resp, body := c.do(http.MethodPost, "/chat", map[string]string{"message": "안녕하세요"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["response"], "테스트 응답")
}

func TestChatEmptyMessage(t *testing.T) {
	c := newClient(t)
	resp, _ := c.do(http.MethodPost, "/chat", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatWithoutSession(t *testing.T) {
	c := newClient(t)
	resp, _ := c.do(http.MethodPost, "/chat", map[string]string{"message": "안녕"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newClient(t)
	resp, _ := c.do(http.MethodPost, "/search", map[string]string{"query": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchFindsIndexedChat(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "search_test"})
	c.do(http.MethodPost, "/chat", map[string]string{"message": "인공지능 스타트업 기획"})

	resp, body := c.do(http.MethodPost, "/search", map[string]string{"query": "인공지능", "mode": "tfidf"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tfidf", body["mode"])
	results := body["results"].([]any)
	require.NotEmpty(t, results)
	first := results[0].(map[string]any)
	assert.Contains(t, first["snippet"], "인공지능")
}

func TestSearchModeEcho(t *testing.T) {
	c := newClient(t)
	c.login("지혜")

	for _, mode := range []string{"tfidf", "vector", "hybrid"} {
		resp, body := c.do(http.MethodPost, "/search", map[string]string{"query": "test", "mode": mode})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, mode, body["mode"])
	}
}

func TestSearchUnknownMode(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	resp, _ := c.do(http.MethodPost, "/search", map[string]string{"query": "test", "mode": "bm25"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProjectsCRUD(t *testing.T) {
	c := newClient(t)
	c.login("지혜")

	resp, _ := c.do(http.MethodPost, "/create_project", map[string]string{"name": "proj1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	listResp, err := c.server.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var projects []map[string]any
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&projects))
	found := false
	for _, p := range projects {
		if p["name"] == "proj1" {
			found = true
		}
	}
	assert.True(t, found)

	resp, _ = c.do(http.MethodDelete, "/delete_project/proj1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodDelete, "/delete_project/proj1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletedProjectInvisibleToSearch(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "gone"})
	c.do(http.MethodPost, "/chat", map[string]string{"message": "삭제될 창업 메모"})

	resp, _ := c.do(http.MethodDelete, "/delete_project/gone", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/search", map[string]string{"query": "창업", "mode": "tfidf"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["results"])
}

func TestResetClearsConversation(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "reset_test"})
	c.do(http.MethodPost, "/chat", map[string]string{"message": "지워질 메시지"})

	resp, _ := c.do(http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := c.do(http.MethodGet, "/memory", nil)
	for _, entry := range body["projects"].([]any) {
		pm := entry.(map[string]any)
		if pm["project"].(map[string]any)["name"] == "reset_test" {
			assert.Empty(t, pm["turns"])
		}
	}
}

func TestResetWithoutSessionIsOK(t *testing.T) {
	c := newClient(t)
	resp, _ := c.do(http.MethodPost, "/reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMemoryExport(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "mem_test"})
	c.do(http.MethodPost, "/chat", map[string]string{"message": "기억할 내용"})
	c.do(http.MethodPost, "/search", map[string]string{"query": "기억", "mode": "tfidf"})

	resp, body := c.do(http.MethodGet, "/memory", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "지혜", body["user"])
	assert.NotEmpty(t, body["projects"])
	assert.NotNil(t, body["last_search"])
}

func TestReport(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "report_test"})
	c.do(http.MethodPost, "/chat", map[string]string{"message": "테스트 내용"})

	resp, body := c.do(http.MethodPost, "/report", map[string]bool{"force": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report, ok := body["report"].(string)
	require.True(t, ok)
	assert.Contains(t, report, "report_test")
	assert.Contains(t, report, "테스트 내용")
}

func TestChatWithReferenceCue(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "ref_test"})

	resp, _ := c.do(http.MethodPost, "/chat", map[string]string{"message": "이전에 했던 거 기억나?"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	c := newClient(t)
	c.login("지혜")

	resp, _ := c.do(http.MethodGet, "/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/chat", map[string]string{"message": "안녕"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNextStepEndpoint(t *testing.T) {
	c := newClient(t)
	c.login("지혜")
	c.do(http.MethodPost, "/create_project", map[string]string{"name": "steps"})

	resp, body := c.do(http.MethodPost, "/next_step", map[string]int{"step": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["step"])

	resp, _ = c.do(http.MethodPost, "/next_step", map[string]int{"step": 7})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
