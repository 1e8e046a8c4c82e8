package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/slide"
)

func TestMockGeneratorReturnsValidDeck(t *testing.T) {
	out, err := Complete(context.Background(), NewMockGenerator(), Request{Prompt: "Explain this:\n---\nPhotosynthesis in plants\n---\n"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	slides, err := slide.Decode([]byte(out))
	if err != nil {
		t.Fatalf("decode mock deck: %v", err)
	}
	if len(slides) != 5 {
		t.Fatalf("expected 5 slides, got %d", len(slides))
	}
	for i, s := range slides {
		if err := s.Validate(); err != nil {
			t.Fatalf("slide %d invalid: %v", i, err)
		}
	}
	if want := "Welcome. In this short video we look at Photosynthesis in plants."; slides[0].Narration != want {
		t.Fatalf("unexpected narration %q", slides[0].Narration)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	if _, err := New(config.LLMConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, err := New(config.LLMConfig{Mode: "ollama", Endpoint: "http://localhost:11434"}); err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, err := New(config.LLMConfig{Mode: "exec"}); err == nil {
		t.Fatalf("expected error for empty exec command")
	}
	if _, err := New(config.LLMConfig{Mode: "gpt"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestOllamaStreamsAndRequestsJSON(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"[{\"type\":"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"\"TEXT\"}]"},"done":true,"eval_count":7,"prompt_eval_count":3}`)
	}))
	defer srv.Close()

	gen := NewOllamaGenerator(srv.URL+"/", "fast-model", "")
	var chunks []Chunk
	err := gen.Generate(context.Background(), Request{Prompt: "hi", System: "be brief", Tier: "fast", JSON: true}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Model != "fast-model" || got.Format != "json" || !got.Stream {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if len(chunks) != 2 || !chunks[0].Partial || chunks[1].Partial {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if chunks[1].CompletionTokens != 7 || chunks[1].PromptTokens != 3 {
		t.Fatalf("token counts not carried: %+v", chunks[1])
	}
	if chunks[0].Content+chunks[1].Content != `[{"type":"TEXT"}]` {
		t.Fatalf("unexpected content %q", chunks[0].Content+chunks[1].Content)
	}
}

func TestOllamaReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Complete(context.Background(), NewOllamaGenerator(srv.URL, "", ""), Request{Prompt: "hi"})
	if err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestOllamaReportsStreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model is loading"}`)
	}))
	defer srv.Close()

	_, err := Complete(context.Background(), NewOllamaGenerator(srv.URL, "", ""), Request{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "model is loading") {
		t.Fatalf("expected stream error, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().LLM
	req := OptionsFromConfig(cfg, "")
	if req.Tier != cfg.DefaultTier || req.MaxTokens != cfg.MaxTokens {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if req := OptionsFromConfig(cfg, "fast"); req.Tier != "fast" {
		t.Fatalf("expected tier override, got %q", req.Tier)
	}
}
