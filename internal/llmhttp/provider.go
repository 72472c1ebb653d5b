// Package llmhttp is a reference implementation of planner.Provider
// against an OpenAI-compatible chat-completions endpoint. It is
// explicitly swappable: planner.New accepts any planner.Provider, and a
// deployment may register a different one (e.g. Claude's messages API)
// without touching the loop.
//
// Grounded on the teacher's internal/llm/client.go for the
// adapter-behind-an-interface shape and internal/llm/errors.go for
// classifying failures by HTTP status, adapted from the llm.Error
// hierarchy to this module's agenterr taxonomy.
package llmhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/softnix/agentic-core/internal/agenterr"
	"github.com/softnix/agentic-core/internal/planner"
)

// Config parameterizes one Provider instance.
type Config struct {
	APIKey  string
	BaseURL string // e.g. https://api.openai.com/v1
	Model   string
	Timeout time.Duration
}

// Provider implements planner.Provider against /chat/completions.
type Provider struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// Generate implements planner.Provider.
func (p *Provider) Generate(messages []planner.Message, model string, maxTokens int) (string, planner.Usage, error) {
	if model == "" {
		model = p.cfg.Model
	}
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	reqBody, err := json.Marshal(chatRequest{Model: model, Messages: msgs, MaxTokens: maxTokens})
	if err != nil {
		return "", planner.Usage{}, agenterr.New(agenterr.KindPlanner, "llmhttp.Generate", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", planner.Usage{}, agenterr.New(agenterr.KindPlanner, "llmhttp.Generate", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", planner.Usage{}, agenterr.New(agenterr.KindPlanner, "llmhttp.Generate", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", planner.Usage{}, agenterr.New(agenterr.KindPlanner, "llmhttp.Generate", err)
	}

	if resp.StatusCode >= 300 {
		return "", planner.Usage{}, classifyHTTPError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", planner.Usage{}, agenterr.New(agenterr.KindPlanner, "llmhttp.Generate", err)
	}
	if len(parsed.Choices) == 0 {
		return "", planner.Usage{}, agenterr.Newf(agenterr.KindPlanner, "llmhttp.Generate", "no choices returned")
	}

	usage := planner.Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

// classifyHTTPError mirrors the teacher's status-to-kind classification,
// folded here into the agenterr taxonomy: every non-2xx becomes a
// KindPlanner error, with the status code and a retryable flag (true for
// 408, 429 and 5xx) embedded in the message so callers/logs can
// distinguish transient failures without a richer error hierarchy.
func classifyHTTPError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	retryable := status == 408 || status == 429 || status >= 500
	return agenterr.Newf(agenterr.KindPlanner, "llmhttp.Generate",
		"provider returned status %d (retryable=%s): %s", status, strconv.FormatBool(retryable), msg)
}
