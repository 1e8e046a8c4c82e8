package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/loqalabs/loqa-present/internal/slide"
)

// mockGenerator answers every prompt with a fixed five slide deck whose
// titles mention the first line of the prompt's source text.
type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	data, err := json.Marshal(mockDeck(topicOf(req.Prompt)))
	if err != nil {
		return err
	}
	return consumer(Chunk{
		SessionID: req.SessionID,
		Content:   string(data),
		Partial:   false,
		Latency:   20 * time.Millisecond,
		TraceID:   req.TraceID,
	})
}

// topicOf picks the first non-empty line between the --- fences of a
// script prompt, or the first line of any other prompt.
func topicOf(prompt string) string {
	body := prompt
	if start := strings.Index(prompt, "---\n"); start >= 0 {
		body = prompt[start+4:]
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != "---" {
			if len(line) > 60 {
				line = strings.TrimSpace(line[:60])
			}
			return line
		}
	}
	return "the topic"
}

func mockDeck(topic string) []slide.Slide {
	return []slide.Slide{
		{
			Kind:      slide.KindText,
			Title:     "Introduction",
			Narration: "Welcome. In this short video we look at " + topic + ".",
			Body:      slide.Text{Content: "- What " + topic + " is\n- Why it matters\n- How it works"},
		},
		{
			Kind:      slide.KindBarChart,
			Title:     "By the numbers",
			Narration: "Here is how interest in the subject has been spread across regions.",
			Body: slide.Chart{
				Data:       []slide.Point{{Name: "North", Value: 42}, {Name: "South", Value: 27}, {Name: "East", Value: 35}, {Name: "West", Value: 18}},
				XAxisTitle: "Region",
				YAxisTitle: "Interest",
			},
		},
		{
			Kind:      slide.KindLineChart,
			Title:     "Growth over time",
			Narration: "Adoption has grown steadily year over year.",
			Body: slide.Chart{
				Data:       []slide.Point{{Name: "2021", Value: 10}, {Name: "2022", Value: 18}, {Name: "2023", Value: 31}, {Name: "2024", Value: 47}},
				XAxisTitle: "Year",
				YAxisTitle: "Adoption",
			},
		},
		{
			Kind:      slide.KindFlowchart,
			Title:     "How it works",
			Narration: "The process moves from input, through analysis, to a result.",
			Body: slide.Flowchart{
				Nodes: []slide.Node{{ID: "in", Label: "Input"}, {ID: "an", Label: "Analysis"}, {ID: "out", Label: "Result"}},
				Edges: []slide.Edge{{From: "in", To: "an"}, {From: "an", To: "out", Label: "produces"}},
			},
		},
		{
			Kind:      slide.KindText,
			Title:     "Conclusion",
			Narration: "That wraps up our overview of " + topic + ". Thanks for watching.",
			Body:      slide.Text{Content: "- Key ideas recapped\n- Where to learn more"},
		},
	}
}
