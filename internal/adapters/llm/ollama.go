// Package llm provides the Ollama LLM adapter.
// Clean Architecture: Adapter implementing ports.LLMService.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// OllamaAdapter implements ports.LLMService using the Ollama API.
// Generation honors the caller's context deadline; the composer wraps
// calls in its own timeout and falls back to a templated answer when the
// deadline hits.
type OllamaAdapter struct {
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
	logger    *logrus.Logger
}

// NewOllamaAdapter creates a new Ollama LLM adapter.
func NewOllamaAdapter(baseURL, model string, maxTokens int, logger *logrus.Logger) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OllamaAdapter{
		baseURL:   baseURL,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
		client: &http.Client{
			Timeout: 300 * time.Second, // outer bound; per-call deadline comes from ctx
		},
	}
}

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaGenerateResponse is the Ollama generate API response.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces a response for the full prompt.
func (a *OllamaAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"num_predict": a.maxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithError(err).Debug("generation call failed")
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	a.logger.WithField("duration", time.Since(start)).Debug("generation complete")
	return genResp.Response, nil
}
