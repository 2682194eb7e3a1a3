package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. The same
// client serves plain text prompts and vision prompts (image parts).
type Client struct {
	endpoint string
	model    string
	apiKey   string
	hc       *http.Client
}

// Message is one chat turn. Content is either a plain string or a []Part for
// multimodal requests.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Part is one element of a multimodal message.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// Options tune a single completion call. Zero values are omitted from the
// request so the endpoint's defaults apply.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// TextPart builds a text part for a multimodal message.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// ImagePart builds an image part referencing a public URL.
func ImagePart(url string) Part {
	return Part{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

// NewClient creates a new client. If httpClient is nil, a default with timeout is used.
func NewClient(endpoint, model, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		hc:       httpClient,
	}
}

// Configured reports whether the client has everything needed to make calls.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.endpoint != "" && c.model != ""
}

// Chat issues one non-streaming completion and returns the first choice's
// message content.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("llm client misconfigured")
	}

	body := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("new chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
