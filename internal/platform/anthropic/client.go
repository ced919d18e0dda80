// Package anthropic is the REST client for the Anthropic Messages API,
// used as the forecasting oracle.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/oracle"
)

const (
	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"
)

// ClientConfig configures the Anthropic client.
type ClientConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	// InputCostPerMTok / OutputCostPerMTok price a million tokens for cost
	// accounting.
	InputCostPerMTok  float64
	OutputCostPerMTok float64
}

// Client implements domain.Oracle against the Anthropic Messages API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// New creates an Anthropic API client.
func New(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
	Error   *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Analyze sends one batch to the oracle and returns the raw reply text
// together with its estimated API cost.
func (c *Client) Analyze(ctx context.Context, req domain.OracleRequest) (domain.OracleReply, error) {
	payload := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    oracle.SystemPrompt,
		Messages: []message{
			{Role: "user", Content: oracle.BuildPrompt(req)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OracleReply{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return domain.OracleReply{}, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.OracleReply{}, fmt.Errorf("anthropic: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OracleReply{}, fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.OracleReply{}, fmt.Errorf("anthropic: %w: %s", domain.ErrRateLimited, respBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.OracleReply{}, fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, respBody)
	}

	var decoded messagesResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return domain.OracleReply{}, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if decoded.Error != nil {
		return domain.OracleReply{}, fmt.Errorf("anthropic: api error %s: %s",
			decoded.Error.Type, decoded.Error.Message)
	}

	var text bytes.Buffer
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return domain.OracleReply{
		Text: text.String(),
		Cost: c.estimateCost(decoded.Usage),
	}, nil
}

func (c *Client) estimateCost(u usage) float64 {
	const mtok = 1_000_000
	return float64(u.InputTokens)/mtok*c.cfg.InputCostPerMTok +
		float64(u.OutputTokens)/mtok*c.cfg.OutputCostPerMTok
}

var _ domain.Oracle = (*Client)(nil)
