package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/socraticlab/recall/pkg/types"
)

const (
	// DefaultModel is the planning assistant's model.
	DefaultModel = "claude-sonnet-4-20250514"

	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	oauthBetaFlag    = "oauth-2025-04-20"
	maxReplyTokens   = 2048
)

// systemPrompt steers the model into the Socratic planning role: one
// question at a time, adversarial stance, user-driven step transitions.
const systemPrompt = `# 소크라테스식 기획 도우미

당신은 소크라테스식 질문과 비판을 통해 기획을 돕는 조력자입니다.

## 핵심 규칙
- 질문은 반드시 한 번에 하나씩. 여러 질문을 한 번에 하지 마세요.
- 3단계 프로세스: STEP 1 나열, STEP 2 분류, STEP 3 재배열.
- 단계 전환은 사용자가 명령으로 합니다. 자동으로 넘어가지 마세요.
- 항상 반대 관점에서 질문하세요: "정말?", "왜?", "없으면 어떻게 돼?"
- 사용자가 "[STEP2로 이동]"이라 하면 STEP 1 항목을 정리해 보여주고 분류
  기준을 물어보세요. "[STEP3로 이동]"이면 분류 결과를 보여주고 실행 순서를
  물어보세요. "[정리]"면 전체를 최종 정리하세요.
- 사용자 대신 다 정리해주지 마세요.

항상 한국어로 대화합니다.`

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	creds      Credentials
	model      string
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures an AnthropicClient.
type ClientOption func(*AnthropicClient)

// WithBaseURL points the client at a different API host. Tests use this.
func WithBaseURL(url string) ClientOption {
	return func(c *AnthropicClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *AnthropicClient) { c.httpClient = hc }
}

// NewAnthropicClient creates a client for the given credentials.
func NewAnthropicClient(creds Credentials, model string, opts ...ClientOption) *AnthropicClient {
	c := &AnthropicClient{
		creds:      creds,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []Message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Generate sends the conversation and returns the assistant's reply. A
// non-nil bundle is appended to the system prompt as recalled context.
func (c *AnthropicClient) Generate(ctx context.Context, history []Message, bundle *types.ContextBundle) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxReplyTokens,
		System:    c.system(bundle),
		Messages:  history,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)
	if c.creds.OAuth {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
		req.Header.Set("anthropic-beta", oauthBetaFlag)
	} else {
		req.Header.Set("x-api-key", c.creds.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: anthropic api status %d: %s",
			types.ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("%w: empty completion", types.ErrProviderUnavailable)
	}
	return parsed.Content[0].Text, nil
}

// system renders the system prompt, appending recalled cross-project
// context when a bundle is present.
func (c *AnthropicClient) system(bundle *types.ContextBundle) string {
	if bundle == nil || len(bundle.Results) == 0 {
		return systemPrompt
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n## 이전 프로젝트에서 찾은 관련 대화\n")
	b.WriteString("사용자가 이전 대화를 언급했습니다. 아래 발췌를 참고해 이어서 도와주세요.\n")
	for _, p := range bundle.Projects {
		fmt.Fprintf(&b, "\n[프로젝트: %s]\n", p.Name)
		for _, r := range bundle.Results {
			if r.ProjectID == p.ID {
				fmt.Fprintf(&b, "- %s\n", r.Snippet)
			}
		}
	}
	return b.String()
}
