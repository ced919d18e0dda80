package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/sibyl/internal/domain"
)

func testClientAgainst(srv *httptest.Server) *Client {
	return New(ClientConfig{
		APIKey:            "sk-test",
		Model:             "claude-sonnet-4-20250514",
		BaseURL:           srv.URL,
		MaxTokens:         1024,
		InputCostPerMTok:  3.0,
		OutputCostPerMTok: 15.0,
	})
}

func TestAnalyze(t *testing.T) {
	var gotHeaders http.Header
	var gotBody messagesRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{
				{Type: "text", Text: `{"assessments":`},
				{Type: "text", Text: `[],"summary":"nothing"}`},
			},
			Usage: usage{InputTokens: 2_000_000, OutputTokens: 1_000_000},
		})
	}))
	defer srv.Close()

	reply, err := testClientAgainst(srv).Analyze(context.Background(), domain.OracleRequest{
		Contracts:     []domain.Contract{{ID: "mkt-1", Question: "Will it resolve yes?"}},
		AvailableCash: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-test", gotHeaders.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", gotHeaders.Get("anthropic-version"))

	assert.Equal(t, "claude-sonnet-4-20250514", gotBody.Model)
	assert.Equal(t, 1024, gotBody.MaxTokens)
	assert.NotEmpty(t, gotBody.System)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Contains(t, gotBody.Messages[0].Content, "mkt-1")

	// Text blocks concatenate in order.
	assert.Equal(t, `{"assessments":[],"summary":"nothing"}`, reply.Text)
	// 2 MTok in at $3 + 1 MTok out at $15.
	assert.InDelta(t, 21.0, reply.Cost, 1e-9)
}

func TestAnalyzeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"rate_limit_error"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClientAgainst(srv).Analyze(context.Background(), domain.OracleRequest{})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestAnalyzeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagesResponse{
			Error: &apiError{Type: "overloaded_error", Message: "try again"},
		})
	}))
	defer srv.Close()

	_, err := testClientAgainst(srv).Analyze(context.Background(), domain.OracleRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")
}

func TestAnalyzeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClientAgainst(srv).Analyze(context.Background(), domain.OracleRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}
