package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultModel     = "claude-3-haiku-20240307"
	defaultMaxTokens = 100
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
)

// Client is a minimal text-completion client for the Anthropic
// Messages API. It sends a single system+user exchange and returns
// the generated text; it keeps no conversation state.
type Client struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
}

// New creates a completion client. A zero modelName or maxTokens
// falls back to the defaults used for rule evaluation.
func New(apiKey, modelName string, maxTokens int) *Client {
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		apiKey:    apiKey,
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{},
	}
}

// SetBaseURL overrides the Messages API endpoint. Used by tests to
// point the client at a local server.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Complete sends the system and user prompts to the Messages API with
// deterministic sampling (temperature 0) and returns the concatenated
// text content of the response.
func (c *Client) Complete(
	ctx context.Context, system, user string,
) (string, error) {
	temperature := 0.0

	reqBody := apiRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
		System:      system,
		Messages: []apiMessage{
			{Role: "user", Content: user},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf(
				"API error (%d): %s", resp.StatusCode, apiErr.Error.Message,
			)
		}
		return "", fmt.Errorf(
			"API error (%d): %s", resp.StatusCode, string(respBody),
		)
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return text, nil
}

// endpoint returns the Messages API URL, honoring a base override set
// for tests.
func (c *Client) endpoint() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return apiURL
}

// apiRequest is the Messages API request body.
type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature *float64     `json:"temperature,omitempty"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
}

// apiMessage is a single conversation turn.
type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the Messages API response body.
type apiResponse struct {
	Content []apiContentBlock `json:"content"`
}

// apiContentBlock is one content block of a response.
type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// apiErrorResponse is the error envelope returned on non-200 status.
type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
