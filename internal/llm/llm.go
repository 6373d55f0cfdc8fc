// Package llm provides the chat-completion provider used by the participant
// assistant. The assistant is deliberately raw: no system prompt and no
// problem context is injected, only the participant's own words reach the
// model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel = "models/gemma-3-4b-it"
	maxAttempts  = 4
)

// Message is one chat turn. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildPrompt returns the turns sent to the model. Raw mode: the participant's
// message passes through unchanged; problem title and statement are accepted
// for interface stability but never forwarded.
func BuildPrompt(message string, _problemTitle, _problemStatement *string) []Message {
	return []Message{{Role: "user", Content: message}}
}

// Provider produces completions for a chat transcript.
type Provider interface {
	// Complete returns the full response text for the transcript.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Stream invokes emit for every token chunk as it arrives. A non-nil
	// error from emit aborts the stream.
	Stream(ctx context.Context, messages []Message, emit func(token string) error) error
}

// GeminiProvider talks to the Gemini API through the official client.
type GeminiProvider struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGeminiProvider builds a provider from the environment: VIZLAB_LLM_API_KEY
// (falling back to GEMINI_API_KEY) and VIZLAB_LLM_MODEL.
func NewGeminiProvider(ctx context.Context, log *zap.Logger) (*GeminiProvider, error) {
	apiKey := os.Getenv("VIZLAB_LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("llm: VIZLAB_LLM_API_KEY is not set")
	}
	model := os.Getenv("VIZLAB_LLM_MODEL")
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, log: log}, nil
}

// Model returns the configured model identifier.
func (p *GeminiProvider) Model() string { return p.model }

func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// Complete implements Provider with bounded exponential backoff on rate
// limiting.
func (p *GeminiProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	contents := toContents(messages)
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
		if err != nil {
			if IsRateLimited(err) {
				lastErr = err
				p.log.Warn("llm rate limited, backing off", zap.Int("attempt", attempt+1))
				continue
			}
			return "", fmt.Errorf("llm: generate: %w", err)
		}
		return resp.Text(), nil
	}
	return "", fmt.Errorf("llm: rate limit exceeded after %d attempts: %w", maxAttempts, lastErr)
}

// Stream implements Provider. Chunks that carry no text are skipped; the
// stream continues past them.
func (p *GeminiProvider) Stream(ctx context.Context, messages []Message, emit func(token string) error) error {
	contents := toContents(messages)
	for chunk, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, nil) {
		if err != nil {
			return fmt.Errorf("llm: stream: %w", err)
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		if err := emit(text); err != nil {
			return err
		}
	}
	return nil
}

// IsRateLimited reports whether err is an API rate-limit rejection
// (HTTP 429 / RESOURCE_EXHAUSTED).
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED")
	}
	return strings.Contains(err.Error(), "429") ||
		strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}
