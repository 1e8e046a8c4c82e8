// Package render draws slides as plain text for terminals and logs.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-present/internal/slide"
)

const defaultWidth = 72

var sparks = []rune("▁▂▃▄▅▆▇█")

// Text renders slides to fixed-width text.
type Text struct {
	Width int
}

// Render draws s. Slides of an unknown kind render as an empty string.
func (t Text) Render(s slide.Slide) string {
	var body string
	switch s.Kind {
	case slide.KindText:
		b, _ := s.TextBody()
		body = t.bullets(b)
	case slide.KindBarChart:
		b, _ := s.ChartBody()
		body = t.barChart(b)
	case slide.KindLineChart:
		b, _ := s.ChartBody()
		body = t.lineChart(b)
	case slide.KindFlowchart:
		b, _ := s.FlowchartBody()
		body = t.flowchart(b)
	default:
		return ""
	}
	return t.heading(s.Title) + body
}

func (t Text) width() int {
	if t.Width <= 0 {
		return defaultWidth
	}
	return t.Width
}

func (t Text) heading(title string) string {
	rule := strings.Repeat("─", min(t.width(), max(len([]rune(title)), 1)))
	return center(title, t.width()) + "\n" + center(rule, t.width()) + "\n\n"
}

// bullets turns each non-empty line into a list item, dropping a leading
// markdown dash.
func (t Text) bullets(b slide.Text) string {
	var sb strings.Builder
	for _, line := range strings.Split(b.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "- ")
		sb.WriteString("  • ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (t Text) barChart(c slide.Chart) string {
	if len(c.Data) == 0 {
		return ""
	}
	labelWidth := 0
	maxValue := 0.0
	for _, p := range c.Data {
		labelWidth = max(labelWidth, len([]rune(p.Name)))
		maxValue = math.Max(maxValue, p.Value)
	}
	barSpace := max(t.width()-labelWidth-14, 10)

	var sb strings.Builder
	if c.YAxisTitle != "" {
		fmt.Fprintf(&sb, "  %s\n", c.YAxisTitle)
	}
	for _, p := range c.Data {
		n := 0
		if maxValue > 0 && p.Value > 0 {
			n = clampInt(math.Round(p.Value/maxValue*float64(barSpace)), 0, barSpace)
		}
		fmt.Fprintf(&sb, "  %-*s │%s %s\n", labelWidth, p.Name, strings.Repeat("█", n), formatValue(p.Value))
	}
	if c.XAxisTitle != "" {
		fmt.Fprintf(&sb, "\n%s\n", center(c.XAxisTitle, t.width()))
	}
	return sb.String()
}

func (t Text) lineChart(c slide.Chart) string {
	if len(c.Data) == 0 {
		return ""
	}
	lo, hi := c.Data[0].Value, c.Data[0].Value
	for _, p := range c.Data {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	var line strings.Builder
	for _, p := range c.Data {
		line.WriteRune(sparks[sparkLevel(p.Value, lo, hi)])
	}

	var sb strings.Builder
	if c.YAxisTitle != "" {
		fmt.Fprintf(&sb, "  %s (%s – %s)\n", c.YAxisTitle, formatValue(lo), formatValue(hi))
	}
	fmt.Fprintf(&sb, "  %s\n\n", line.String())
	for _, p := range c.Data {
		fmt.Fprintf(&sb, "  %s: %s\n", p.Name, formatValue(p.Value))
	}
	if c.XAxisTitle != "" {
		fmt.Fprintf(&sb, "\n%s\n", center(c.XAxisTitle, t.width()))
	}
	return sb.String()
}

// sparkLevel places v between lo and hi on the sparkline scale. Spans
// too wide for a float64 are measured in halves.
func sparkLevel(v, lo, hi float64) int {
	if !(hi > lo) {
		return 0
	}
	pos := (v - lo) / (hi - lo)
	if math.IsInf(hi-lo, 0) {
		pos = (v/2 - lo/2) / (hi/2 - lo/2)
	}
	return clampInt(math.Round(pos*float64(len(sparks)-1)), 0, len(sparks)-1)
}

// clampInt converts f to an int in [lo, hi]; NaN maps to lo.
func clampInt(f float64, lo, hi int) int {
	if math.IsNaN(f) || f < float64(lo) {
		return lo
	}
	if f > float64(hi) {
		return hi
	}
	return int(f)
}

func (t Text) flowchart(f slide.Flowchart) string {
	layout := Layout(f)
	if len(layout.Ranks) == 0 {
		return ""
	}
	labels := make(map[string]string, len(f.Nodes))
	for _, n := range f.Nodes {
		labels[n.ID] = n.Label
	}

	var sb strings.Builder
	for i, rank := range layout.Ranks {
		boxes := make([]string, len(rank))
		for j, id := range rank {
			boxes[j] = "[ " + labels[id] + " ]"
		}
		sb.WriteString(center(strings.Join(boxes, "   "), t.width()))
		sb.WriteByte('\n')
		if i < len(layout.Ranks)-1 {
			sb.WriteString(center("↓", t.width()))
			sb.WriteByte('\n')
		}
	}
	var labelled []string
	for _, e := range layout.Edges {
		if e.Label != "" {
			labelled = append(labelled, fmt.Sprintf("  %s → %s: %s", labels[e.From], labels[e.To], e.Label))
		}
	}
	if len(labelled) > 0 {
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(labelled, "\n"))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func center(s string, width int) string {
	pad := (width - len([]rune(s))) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
