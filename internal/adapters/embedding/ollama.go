// Package embedding provides the Ollama embedding adapter.
// Clean Architecture: This is an adapter that implements ports.EmbeddingService.
// It knows about Ollama specifics but the domain layer doesn't.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// OllamaAdapter implements ports.EmbeddingService using the Ollama API.
// The model is pinned at construction so identical input yields
// identical vectors for the life of the process.
type OllamaAdapter struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *logrus.Logger
}

// NewOllamaAdapter creates a new Ollama embedding adapter.
func NewOllamaAdapter(baseURL, model string, logger *logrus.Logger) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OllamaAdapter{
		baseURL: baseURL,
		model:   model,
		logger:  logger,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ollamaEmbedRequest is the Ollama API request format.
type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbedResponse is the Ollama API response format.
type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model:  a.model,
		Prompt: text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/api/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithError(err).Debug("embedding call failed")
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return embedResp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts.
// Calls Embed sequentially - can be parallelized if needed.
func (a *OllamaAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := a.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
