// Package ai talks to an OpenAI-compatible chat completions endpoint
// to summarize messages, polish draft text, and propose reply
// outlines. Every operation degrades gracefully: without an API key
// or on a failed call, callers get a usable fallback instead of an
// error.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
	defaultModel   = "deepseek-chat"
	requestTimeout = 60 * time.Second
)

// Config holds the AI service settings.
type Config struct {
	BaseURL string `json:"baseURL"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
}

// Summary is the structured result of summarizing one message.
type Summary struct {
	Summary  string   `json:"summary"`
	Actions  []string `json:"actions"`
	Category string   `json:"category"`
}

// Service is the AI assistant client. It is safe for concurrent use;
// SetConfig may be called at any time.
type Service struct {
	mu      sync.RWMutex
	baseURL string
	apiKey  string
	model   string

	client *http.Client
	log    *logrus.Entry
}

// New creates a service with the given configuration, falling back
// to defaults for unset fields.
func New(cfg Config) *Service {
	s := &Service{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: requestTimeout},
		log:     logrus.WithField("pkg", "ai"),
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig updates any non-empty fields of the configuration.
func (s *Service) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.BaseURL != "" {
		s.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.APIKey != "" {
		s.apiKey = cfg.APIKey
	}
	if cfg.Model != "" {
		s.model = cfg.Model
	}
}

func (s *Service) snapshot() (baseURL, apiKey, model string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL, s.apiKey, s.model
}

// Summarize analyzes a message body and returns a short summary,
// action points, and a routing category. Without a key or on
// failure, a stub summary is returned rather than an error.
func (s *Service) Summarize(ctx context.Context, content string) *Summary {
	_, apiKey, _ := s.snapshot()
	if apiKey == "" {
		return &Summary{
			Summary:  "Configure an AI API key in settings to enable summaries.",
			Actions:  []string{"Configure API key", "Choose a model", "Retry the summary"},
			Category: "system",
		}
	}

	prompt := fmt.Sprintf(`You are a professional email assistant. Analyze the message below and provide:
1. A summary of at most 100 words.
2. Three core action points, one sentence each.
3. A category label: "feed" for notifications, subscriptions, and promotions; "core" otherwise.

Respond as JSON in this shape:
{
  "summary": "...",
  "actions": ["...", "...", "..."],
  "category": "..."
}

Message:
%s`, content)

	raw, err := s.chatCompletion(ctx, prompt, true)
	if err != nil {
		s.log.WithError(err).Error("summarize call failed")
		return &Summary{
			Summary:  "Summary unavailable; check your network connection and AI settings.",
			Actions:  []string{"Retry", "Check AI settings", "Read the original message"},
			Category: "error",
		}
	}

	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.log.WithError(err).Error("summarize response unparseable")
		return &Summary{
			Summary:  "Summary unavailable; the AI response could not be parsed.",
			Actions:  []string{"Retry", "Check AI settings", "Read the original message"},
			Category: "error",
		}
	}
	return &summary
}

// Improve rewrites draft text in the requested tone. The original
// text is returned unchanged without a key or on failure.
func (s *Service) Improve(ctx context.Context, text, tone string) string {
	_, apiKey, _ := s.snapshot()
	if apiKey == "" {
		return text
	}

	style := "warm, personal, and friendly"
	if tone == "" || tone == "professional" {
		style = "professional, polished, and courteous business"
	}
	prompt := fmt.Sprintf(
		"You are an email copy editor. Rewrite the following content in a %s register. Return only the rewritten content with no explanation.\n\nContent: %s",
		style, text,
	)

	improved, err := s.chatCompletion(ctx, prompt, false)
	if err != nil || improved == "" {
		if err != nil {
			s.log.WithError(err).Error("improve call failed")
		}
		return text
	}
	return improved
}

// GenerateOutlines proposes three short reply outlines in different
// tones for the given conversation context. Returns nil without a
// key or on failure.
func (s *Service) GenerateOutlines(ctx context.Context, context string) []string {
	_, apiKey, _ := s.snapshot()
	if apiKey == "" {
		return nil
	}

	prompt := fmt.Sprintf(
		`Based on the email context below, generate three short reply outlines in distinct tones (professional, grateful, polite decline), each at most 30 words. Respond as JSON: {"outlines": ["...", "...", "..."]}

Context: %s`, context,
	)

	raw, err := s.chatCompletion(ctx, prompt, true)
	if err != nil {
		s.log.WithError(err).Error("outline call failed")
		return nil
	}

	var parsed struct {
		Outlines []string `json:"outlines"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		s.log.WithError(err).Error("outline response unparseable")
		return nil
	}
	return parsed.Outlines
}

// Chat sends a free-form prompt and returns the model's reply, empty
// without a key or on failure.
func (s *Service) Chat(ctx context.Context, prompt string) string {
	_, apiKey, _ := s.snapshot()
	if apiKey == "" {
		return ""
	}

	reply, err := s.chatCompletion(ctx, prompt, false)
	if err != nil {
		s.log.WithError(err).Error("chat call failed")
		return ""
	}
	return reply
}

// apiRequest is the chat completions request payload.
type apiRequest struct {
	Model          string       `json:"model"`
	Messages       []apiMessage `json:"messages"`
	ResponseFormat *apiFormat   `json:"response_format,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiFormat struct {
	Type string `json:"type"`
}

// apiResponse is the subset of the chat completions response the
// service reads.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatCompletion performs one user-message completion call and
// returns the reply content. jsonMode requests a JSON object
// response from the model.
func (s *Service) chatCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	baseURL, apiKey, model := s.snapshot()

	reqBody := apiRequest{
		Model:    model,
		Messages: []apiMessage{{Role: "user", Content: prompt}},
	}
	if jsonMode {
		reqBody.ResponseFormat = &apiFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling completions API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
