package render

import (
	"math"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-present/internal/slide"
)

func TestRenderText(t *testing.T) {
	s := slide.Slide{Kind: slide.KindText, Title: "Intro", Narration: "n", Body: slide.Text{Content: "- first\n\n  second  \n- third"}}
	out := Text{Width: 40}.Render(s)
	if !strings.Contains(out, "Intro") {
		t.Fatalf("missing title: %q", out)
	}
	for _, want := range []string{"  • first\n", "  • second\n", "  • third\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "- first") {
		t.Fatalf("dash prefix should be stripped: %q", out)
	}
}

func TestRenderBarChartScalesToLargest(t *testing.T) {
	s := slide.Slide{Kind: slide.KindBarChart, Title: "Sales", Narration: "n", Body: slide.Chart{
		Data:       []slide.Point{{Name: "north", Value: 10}, {Name: "south", Value: 5}},
		XAxisTitle: "Region",
	}}
	out := Text{Width: 39}.Render(s)
	lines := strings.Split(out, "\n")
	var north, south string
	for _, l := range lines {
		switch {
		case strings.Contains(l, "north"):
			north = l
		case strings.Contains(l, "south"):
			south = l
		}
	}
	if n, s := strings.Count(north, "█"), strings.Count(south, "█"); n != 2*s || n == 0 {
		t.Fatalf("expected north bar twice south bar, got %d and %d", n, s)
	}
	if !strings.Contains(out, "Region") {
		t.Fatalf("missing axis title: %q", out)
	}
}

func TestRenderLineChartSparkline(t *testing.T) {
	s := slide.Slide{Kind: slide.KindLineChart, Title: "Trend", Narration: "n", Body: slide.Chart{
		Data: []slide.Point{{Name: "q1", Value: 1}, {Name: "q2", Value: 5}, {Name: "q3", Value: 9}},
	}}
	out := Text{}.Render(s)
	if !strings.Contains(out, "▁▅█") {
		t.Fatalf("unexpected sparkline: %q", out)
	}
}

func TestRenderChartsSurviveExtremeValues(t *testing.T) {
	cases := []struct {
		name string
		kind slide.Kind
		data []slide.Point
		want string
	}{
		{"line span overflows", slide.KindLineChart, []slide.Point{{Name: "a", Value: -1e308}, {Name: "b", Value: 1e308}}, "▁█"},
		{"line with midpoint", slide.KindLineChart, []slide.Point{{Name: "a", Value: -1e308}, {Name: "b", Value: 0}, {Name: "c", Value: 1e308}}, "▁▅█"},
		{"line with infinity", slide.KindLineChart, []slide.Point{{Name: "a", Value: 0}, {Name: "b", Value: math.Inf(1)}}, "▁"},
		{"line with NaN", slide.KindLineChart, []slide.Point{{Name: "a", Value: math.NaN()}, {Name: "b", Value: 3}}, "▁"},
		{"bar with infinity", slide.KindBarChart, []slide.Point{{Name: "a", Value: math.Inf(1)}, {Name: "b", Value: 1}}, "b"},
		{"bar near max float", slide.KindBarChart, []slide.Point{{Name: "a", Value: math.MaxFloat64}, {Name: "b", Value: 1e308}}, "█"},
	}
	for _, tc := range cases {
		s := slide.Slide{Kind: tc.kind, Title: "Extreme", Narration: "n", Body: slide.Chart{Data: tc.data}}
		out := Text{Width: 40}.Render(s)
		if !strings.Contains(out, tc.want) {
			t.Fatalf("%s: expected %q in %q", tc.name, tc.want, out)
		}
	}
}

func TestRenderUnknownKindIsEmpty(t *testing.T) {
	if out := (Text{}).Render(slide.Slide{Kind: "HOLOGRAM", Title: "x"}); out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}
}

func TestLayoutRanks(t *testing.T) {
	f := slide.Flowchart{
		Nodes: []slide.Node{{ID: "a", Label: "Start"}, {ID: "b", Label: "Left"}, {ID: "c", Label: "Right"}, {ID: "d", Label: "End"}},
		Edges: []slide.Edge{{From: "a", To: "b"}, {From: "a", To: "c"}, {From: "b", To: "d"}, {From: "c", To: "d", Label: "done"}, {From: "a", To: "ghost"}},
	}
	l := Layout(f)
	if len(l.Ranks) != 3 {
		t.Fatalf("expected 3 ranks, got %v", l.Ranks)
	}
	if len(l.Ranks[1]) != 2 || l.Ranks[2][0] != "d" {
		t.Fatalf("unexpected ranks %v", l.Ranks)
	}
	if l.Width != 2*NodeWidth+HorizontalSpacing {
		t.Fatalf("unexpected width %v", l.Width)
	}
	if l.Height != 3*NodeHeight+2*VerticalSpacing {
		t.Fatalf("unexpected height %v", l.Height)
	}
	if len(l.Edges) != 4 {
		t.Fatalf("expected edges to unknown nodes dropped, got %d", len(l.Edges))
	}
	// single node in a rank is centred
	if l.Nodes[0].X != (l.Width-NodeWidth)/2 {
		t.Fatalf("expected start node centred, got x=%v", l.Nodes[0].X)
	}
}

func TestLayoutKeepsCyclicNodes(t *testing.T) {
	f := slide.Flowchart{
		Nodes: []slide.Node{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C"}},
		Edges: []slide.Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "b"}},
	}
	l := Layout(f)
	if len(l.Nodes) != 3 {
		t.Fatalf("expected every node placed, got %d", len(l.Nodes))
	}
	if last := l.Ranks[len(l.Ranks)-1]; len(last) != 2 {
		t.Fatalf("expected cycle in final rank, got %v", l.Ranks)
	}
}

func TestRenderFlowchart(t *testing.T) {
	s := slide.Slide{Kind: slide.KindFlowchart, Title: "Flow", Narration: "n", Body: slide.Flowchart{
		Nodes: []slide.Node{{ID: "a", Label: "Start"}, {ID: "b", Label: "End"}},
		Edges: []slide.Edge{{From: "a", To: "b", Label: "go"}},
	}}
	out := Text{Width: 30}.Render(s)
	for _, want := range []string{"[ Start ]", "↓", "[ End ]", "Start → End: go"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestCaption(t *testing.T) {
	if got := Caption(0, 5); got != "Slide 1 of 5" {
		t.Fatalf("unexpected caption %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(0.5, 10); got != "█████░░░░░" {
		t.Fatalf("unexpected bar %q", got)
	}
	if got := ProgressBar(2, 4); got != "████" {
		t.Fatalf("expected full bar, got %q", got)
	}
	if got := ProgressBar(-1, 3); got != "░░░" {
		t.Fatalf("expected empty bar, got %q", got)
	}
}
