package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsExpectedRequest(t *testing.T) {
	var got apiRequest
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotHeaders = r.Header.Clone()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			json.NewEncoder(w).Encode(apiResponse{
				Content: []apiContentBlock{
					{Type: "text", Text: "Yes, "},
					{Type: "text", Text: "it matches."},
				},
			})
		},
	))
	defer server.Close()

	client := New("test-key", "claude-3-haiku-20240307", 100)
	client.SetBaseURL(server.URL)

	text, err := client.Complete(
		context.Background(), "system prompt", "user prompt",
	)
	require.NoError(t, err)
	assert.Equal(t, "Yes, it matches.", text)

	assert.Equal(t, "test-key", gotHeaders.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", gotHeaders.Get("anthropic-version"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	assert.Equal(t, "claude-3-haiku-20240307", got.Model)
	assert.Equal(t, 100, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.Zero(t, *got.Temperature)
	assert.Equal(t, "system prompt", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "user prompt", got.Messages[0].Content)
}

func TestCompleteDefaults(t *testing.T) {
	client := New("key", "", 0)

	assert.Equal(t, defaultModel, client.model)
	assert.Equal(t, defaultMaxTokens, client.maxTokens)
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
		},
	))
	defer server.Close()

	client := New("bad-key", "", 0)
	client.SetBaseURL(server.URL)

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (401)")
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestCompleteMalformedErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("upstream blew up"))
		},
	))
	defer server.Close()

	client := New("key", "", 0)
	client.SetBaseURL(server.URL)

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (500)")
	assert.Contains(t, err.Error(), "upstream blew up")
}
