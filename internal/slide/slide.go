// Package slide defines the immutable slide model shared by script
// generation, rendering and playback.
package slide

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags the visual variant of a slide.
type Kind string

const (
	KindText      Kind = "TEXT"
	KindBarChart  Kind = "BAR_CHART"
	KindLineChart Kind = "LINE_CHART"
	KindFlowchart Kind = "FLOWCHART"
)

// Kinds lists every supported variant in schema order.
var Kinds = []Kind{KindText, KindBarChart, KindLineChart, KindFlowchart}

// Known reports whether k is one of the supported variants.
func (k Kind) Known() bool {
	switch k {
	case KindText, KindBarChart, KindLineChart, KindFlowchart:
		return true
	}
	return false
}

// Body is the variant payload. It is sealed: only Text, Chart and Flowchart
// implement it.
type Body interface {
	kind() []Kind
}

// Text is the payload of a TEXT slide. Content holds one bullet per line.
type Text struct {
	Content string
}

// Point is one named value on a chart.
type Point struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Chart is the payload shared by BAR_CHART and LINE_CHART slides.
type Chart struct {
	Data       []Point
	XAxisTitle string
	YAxisTitle string
}

// Node is a flowchart box.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Edge connects two flowchart nodes by id.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Flowchart is the payload of a FLOWCHART slide.
type Flowchart struct {
	Nodes []Node
	Edges []Edge
}

func (Text) kind() []Kind      { return []Kind{KindText} }
func (Chart) kind() []Kind     { return []Kind{KindBarChart, KindLineChart} }
func (Flowchart) kind() []Kind { return []Kind{KindFlowchart} }

// Slide is one unit of a presentation. Slides are never mutated after they
// are decoded; a new presentation replaces the whole sequence.
type Slide struct {
	Kind      Kind
	Title     string
	Narration string
	Body      Body
}

// TextBody returns the TEXT payload, if any.
func (s Slide) TextBody() (Text, bool) {
	b, ok := s.Body.(Text)
	return b, ok
}

// ChartBody returns the chart payload of a BAR_CHART or LINE_CHART slide.
func (s Slide) ChartBody() (Chart, bool) {
	b, ok := s.Body.(Chart)
	return b, ok
}

// FlowchartBody returns the FLOWCHART payload, if any.
func (s Slide) FlowchartBody() (Flowchart, bool) {
	b, ok := s.Body.(Flowchart)
	return b, ok
}

// Validate checks the fields the script schema marks as required and that
// the payload matches the kind. It does not judge content. A slide of an
// unknown kind is valid without a payload; it is narrated but renders
// empty.
func (s Slide) Validate() error {
	if s.Title == "" {
		return errors.New("slide title is required")
	}
	if s.Narration == "" {
		return errors.New("slide narration is required")
	}
	if !s.Kind.Known() {
		if s.Body != nil {
			return fmt.Errorf("unknown slide type %q carries a %T payload", s.Kind, s.Body)
		}
		return nil
	}
	if s.Body == nil {
		return fmt.Errorf("%s slide has no payload", s.Kind)
	}
	for _, k := range s.Body.kind() {
		if k == s.Kind {
			return nil
		}
	}
	return fmt.Errorf("%s slide carries a %T payload", s.Kind, s.Body)
}

type wireSlide struct {
	Type       Kind    `json:"type"`
	Title      string  `json:"title"`
	Narration  string  `json:"narration"`
	Content    string  `json:"content,omitempty"`
	Data       []Point `json:"data,omitempty"`
	XAxisTitle string  `json:"xAxisTitle,omitempty"`
	YAxisTitle string  `json:"yAxisTitle,omitempty"`
	Nodes      []Node  `json:"nodes,omitempty"`
	Edges      []Edge  `json:"edges,omitempty"`
}

// UnmarshalJSON decodes the flat script form. Unknown type tags decode
// without a payload.
func (s *Slide) UnmarshalJSON(data []byte) error {
	var w wireSlide
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Slide{Kind: w.Type, Title: w.Title, Narration: w.Narration}
	switch w.Type {
	case KindText:
		s.Body = Text{Content: w.Content}
	case KindBarChart, KindLineChart:
		s.Body = Chart{Data: w.Data, XAxisTitle: w.XAxisTitle, YAxisTitle: w.YAxisTitle}
	case KindFlowchart:
		s.Body = Flowchart{Nodes: w.Nodes, Edges: w.Edges}
	}
	return nil
}

// MarshalJSON encodes the flat script form.
func (s Slide) MarshalJSON() ([]byte, error) {
	w := wireSlide{Type: s.Kind, Title: s.Title, Narration: s.Narration}
	switch b := s.Body.(type) {
	case Text:
		w.Content = b.Content
	case Chart:
		w.Data, w.XAxisTitle, w.YAxisTitle = b.Data, b.XAxisTitle, b.YAxisTitle
	case Flowchart:
		w.Nodes, w.Edges = b.Nodes, b.Edges
	}
	return json.Marshal(w)
}

// Decode parses a JSON array of slides.
func Decode(data []byte) ([]Slide, error) {
	var slides []Slide
	if err := json.Unmarshal(data, &slides); err != nil {
		return nil, fmt.Errorf("decode slides: %w", err)
	}
	return slides, nil
}
