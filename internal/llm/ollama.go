package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaModel = "llama3.2:latest"

// ollamaGenerator talks to the Ollama chat endpoint and streams the
// assistant message back as chunks.
type ollamaGenerator struct {
	endpoint string
	models   map[string]string
	client   *http.Client
}

func NewOllamaGenerator(endpoint, fastModel, balancedModel string) Generator {
	return &ollamaGenerator{
		endpoint: strings.TrimRight(endpoint, "/"),
		models:   map[string]string{"fast": fastModel, "balanced": balancedModel},
		client:   &http.Client{},
	}
}

func (g *ollamaGenerator) model(tier string) string {
	for _, t := range []string{tier, "balanced", "fast"} {
		if m := g.models[t]; m != "" {
			return m
		}
	}
	return defaultOllamaModel
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Format   string        `json:"format,omitempty"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	Error           string      `json:"error,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
}

func (g *ollamaGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	payload := ollamaRequest{
		Model:  g.model(req.Tier),
		Stream: true,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		payload.Format = "json"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama returned status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	started := time.Now()
	dec := json.NewDecoder(resp.Body)
	for {
		var part ollamaResponse
		if err := dec.Decode(&part); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("decode ollama stream: %w", err)
		}
		if part.Error != "" {
			return fmt.Errorf("ollama: %s", part.Error)
		}
		if err := consumer(Chunk{
			SessionID:        req.SessionID,
			Content:          part.Message.Content,
			Partial:          !part.Done,
			PromptTokens:     part.PromptEvalCount,
			CompletionTokens: part.EvalCount,
			Latency:          time.Since(started),
			TraceID:          req.TraceID,
		}); err != nil {
			return err
		}
		if part.Done {
			return nil
		}
	}
}
