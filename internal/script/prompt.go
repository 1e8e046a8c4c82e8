package script

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an expert instructional designer who writes scripts for short narrated educational videos. You answer with JSON only."

const promptTemplate = `Take the following text and create a script for an educational video. The output must be a single valid JSON array of slide objects. Each slide is one segment of the video.

Structure the text into a logical sequence of %d to %d slides. A good video has an introduction, key concepts explained with visuals, and a conclusion. Mix TEXT slides with visual slides (BAR_CHART, LINE_CHART, FLOWCHART) where they make the content more engaging.

Every slide has:
  "type": one of "TEXT", "BAR_CHART", "LINE_CHART", "FLOWCHART"
  "title": a short heading
  "narration": what the narrator says while the slide is shown
TEXT slides add "content": markdown bullet points, one per line.
BAR_CHART and LINE_CHART slides add "data": [{"name": string, "value": number}], plus "xAxisTitle" and "yAxisTitle".
FLOWCHART slides add "nodes": [{"id": string, "label": string}] and "edges": [{"from": id, "to": id, "label": optional string}].

For chart data, if the text has no explicit figures, invent representative sample data that illustrates the concept. For flowcharts, identify processes or sequences in the text.

Here is the text to analyze:
---
%s
---
`

// BuildPrompt fills the script prompt with the source text.
func BuildPrompt(content string, minSlides, maxSlides int) string {
	return fmt.Sprintf(promptTemplate, minSlides, maxSlides, strings.TrimSpace(content))
}

// extractJSON trims code fences and prose around the outermost JSON array.
func extractJSON(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return strings.TrimSpace(raw)
	}
	return raw[start : end+1]
}
