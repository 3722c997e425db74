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

	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/config"
	"github.com/TobiSchelling/parainsights/internal/logging"
)

// DefaultTimeout bounds a single generation request.
const DefaultTimeout = 120 * time.Second

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	IsConfigured() bool
}

// ChatProvider talks to any OpenAI-compatible chat-completions endpoint.
type ChatProvider struct {
	Model        string
	BaseURL      string
	APIKey       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	client       *http.Client
}

// NewChatProvider creates a chat-completions provider. A zero timeout means DefaultTimeout.
func NewChatProvider(model, baseURL, apiKey, systemPrompt string, temperature float64, maxTokens int, timeout time.Duration) *ChatProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ChatProvider{
		Model:        model,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		client:       &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the API key is set.
func (c *ChatProvider) IsConfigured() bool {
	return c.APIKey != ""
}

// Generate sends a prompt and returns the first choice's message content.
func (c *ChatProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("chat API key not configured")
	}

	messages := make([]map[string]string, 0, 2)
	if c.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": c.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": c.Temperature,
		"max_tokens":  c.MaxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}

	return result.Choices[0].Message.Content, nil
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model        string
	BaseURL      string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	client       *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL, systemPrompt string, temperature float64, maxTokens int, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaProvider{
		Model:        model,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		client:       &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether a model and server address are set. Ollama needs no credential.
func (o *OllamaProvider) IsConfigured() bool {
	return o.Model != "" && o.BaseURL != ""
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if o.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": o.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":    o.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"num_predict": o.MaxTokens,
			"temperature": o.Temperature,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

// CreateProvider creates an LLM provider from configuration and a resolved
// credential. It returns nil when the provider cannot be used.
func CreateProvider(cfg config.LLM, apiKey string, logger *zap.Logger) Provider {
	logger = logging.OrNop(logger)

	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		p := NewOllamaProvider(cfg.Model, cfg.BaseURL, cfg.SystemPrompt, cfg.Temperature, cfg.MaxTokens, cfg.Timeout)
		if p.IsConfigured() {
			logger.Info("using Ollama", zap.String("model", cfg.Model), zap.String("base_url", p.BaseURL))
			return p
		}
	default:
		p := NewChatProvider(cfg.Model, cfg.BaseURL, apiKey, cfg.SystemPrompt, cfg.Temperature, cfg.MaxTokens, cfg.Timeout)
		if p.IsConfigured() {
			logger.Info("using chat completions", zap.String("model", cfg.Model), zap.String("base_url", p.BaseURL))
			return p
		}
	}

	logger.Debug("no LLM provider available", zap.String("provider", cfg.Provider))
	return nil
}
