// Package reason wraps the LLM providers used for contextual URL analysis,
// email psychology profiling, screenshot spoof checks and reply drafting.
// Every call runs through an ordered model fallback chain; a provider outage
// degrades the verdict to heuristics instead of failing the request.
package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sentinelmark/phishmark/pkg/config"
	"github.com/sentinelmark/phishmark/pkg/httputil"
)

// DefaultTemperature keeps classification output near-deterministic.
const DefaultTemperature = 0.1

// Client is a thin OpenAI-compatible chat client. The same client serves
// OpenRouter, Groq, Ollama and custom endpoints; only the base URL and
// headers differ.
type Client struct {
	httpClient  *http.Client
	provider    config.LLMProvider
	baseURL     string
	apiKey      string
	temperature float64
}

// NewClient builds a chat client for the configured provider. Returns nil
// when the provider is "none"; callers treat a nil client as reasoning
// disabled.
func NewClient(cfg *config.Config) *Client {
	if cfg.LLMProvider == config.ProviderNone {
		return nil
	}

	var baseURL string
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		baseURL = "http://localhost:11434/v1"
	case config.ProviderGroq:
		baseURL = "https://api.groq.com/openai/v1"
	case config.ProviderOpenRouter:
		baseURL = "https://openrouter.ai/api/v1"
	default:
		baseURL = cfg.LLMBaseURL
	}
	if cfg.LLMBaseURL != "" {
		baseURL = cfg.LLMBaseURL
	}

	return &Client{
		httpClient:  httputil.ReasonClient(),
		provider:    cfg.LLMProvider,
		baseURL:     baseURL,
		apiKey:      cfg.LLMAPIKey,
		temperature: DefaultTemperature,
	}
}

// Message is one chat turn. Content is either a string or, for vision
// requests, a slice of content parts.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Text builds a plain-text message.
func Text(role, content string) Message {
	return Message{Role: role, Content: content}
}

// UserWithImage builds a user message carrying a text part and an image part
// in the OpenAI multimodal content format.
func UserWithImage(text, imageDataURL string) Message {
	return Message{
		Role: "user",
		Content: []map[string]any{
			{"type": "text", "text": text},
			{"type": "image_url", "image_url": map[string]string{"url": imageDataURL}},
		},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends one completion request and returns the assistant text.
func (c *Client) Chat(ctx context.Context, model string, msgs []Message) (string, error) {
	if c.provider != config.ProviderOllama && c.apiKey == "" {
		return "", fmt.Errorf("API key not configured for provider %s", c.provider)
	}

	jsonBody, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.provider == config.ProviderOpenRouter {
		// OpenRouter specific headers (ignored by other providers)
		req.Header.Set("HTTP-Referer", "https://phishmark.dev")
		req.Header.Set("X-Title", "PhishMark")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer httputil.DrainAndClose(resp.Body)

	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal error: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

// ExtractJSON strips markdown fences and surrounding prose from a model
// response, leaving the outermost JSON object.
func ExtractJSON(content string) string {
	clean := strings.TrimSpace(content)
	if start := strings.Index(clean, "{"); start != -1 {
		clean = clean[start:]
	}
	if end := strings.LastIndex(clean, "}"); end != -1 {
		clean = clean[:end+1]
	}
	return clean
}
