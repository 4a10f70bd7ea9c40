package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaAdapter_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Stream {
			t.Error("expected stream:false")
		}
		if req.Options["num_predict"] != float64(128) {
			t.Errorf("unexpected num_predict: %v", req.Options["num_predict"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "Hello there!",
			"done":     true,
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test-model", 128, nil)
	resp, err := adapter.Generate(context.Background(), "Hi")

	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp != "Hello there!" {
		t.Errorf("unexpected response: %s", resp)
	}
}

func TestOllamaAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test", 0, nil)
	_, err := adapter.Generate(context.Background(), "test")

	if err == nil {
		t.Error("should error on 404")
	}
}

func TestOllamaAdapter_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "late", "done": true})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "test", 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := adapter.Generate(ctx, "test")
	if err == nil {
		t.Error("should error when the context deadline passes")
	}
}

func TestOllamaAdapter_DefaultValues(t *testing.T) {
	adapter := NewOllamaAdapter("", "", 0, nil)
	if adapter.baseURL != "http://localhost:11434" {
		t.Error("should default to localhost")
	}
	if adapter.model != "llama3.2" {
		t.Error("should default to llama3.2")
	}
	if adapter.maxTokens != 512 {
		t.Error("should default to 512 tokens")
	}
}
