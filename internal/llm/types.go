package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loqalabs/loqa-present/internal/config"
)

// Request describes a language model prompt.
type Request struct {
	SessionID   string
	Prompt      string
	System      string
	Tier        string
	MaxTokens   int
	Temperature float64
	// JSON asks the backend to constrain its output to a JSON document.
	JSON    bool
	TraceID string
}

// Chunk represents streamed model output.
type Chunk struct {
	SessionID        string
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
	TraceID          string
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// OptionsFromConfig builds request defaults from config.
func OptionsFromConfig(cfg config.LLMConfig, reqTier string) Request {
	req := Request{Tier: cfg.DefaultTier, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	if reqTier != "" {
		req.Tier = reqTier
	}
	return req
}

// New builds the generator selected by cfg.Mode.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.ModelFast, cfg.ModelBalanced), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	default:
		return nil, fmt.Errorf("unsupported llm mode %q", cfg.Mode)
	}
}

// Complete runs req and returns the whole completion.
func Complete(ctx context.Context, g Generator, req Request) (string, error) {
	var b strings.Builder
	err := g.Generate(ctx, req, func(c Chunk) error {
		b.WriteString(c.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
