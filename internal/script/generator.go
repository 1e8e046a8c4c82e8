// Package script turns source text into a validated slide script using a
// language model.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/llm"
	"github.com/loqalabs/loqa-present/internal/slide"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DurationMetric is the histogram of whole script generations, in seconds.
const DurationMetric = "loqa.present.script.duration"

// ErrEmptyScript is returned when the model produced a script with no slides.
var ErrEmptyScript = errors.New("script: generated script has no slides")

type Generator struct {
	model    llm.Generator
	cfg      config.ScriptConfig
	llmCfg   config.LLMConfig
	log      *slog.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
	newRetry func() backoff.BackOff
}

func NewGenerator(model llm.Generator, cfg config.ScriptConfig, llmCfg config.LLMConfig, log *slog.Logger) *Generator {
	g := &Generator{
		model:  model,
		cfg:    cfg,
		llmCfg: llmCfg,
		log:    log.With(slog.String("component", "script-generator")),
		tracer: otel.Tracer("github.com/loqalabs/loqa-present/script"),
		newRetry: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	duration, err := otel.Meter("github.com/loqalabs/loqa-present/script").Float64Histogram(DurationMetric,
		metric.WithDescription("Time to generate a slide script"),
		metric.WithUnit("s"),
	)
	if err != nil {
		g.log.Warn("failed to create duration histogram", slog.String("error", err.Error()))
	}
	g.duration = duration
	return g
}

func (g *Generator) observe(ctx context.Context, started time.Time, outcome string) {
	if g.duration == nil {
		return
	}
	g.duration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Generate asks the model for a script until it returns one that decodes
// and validates, or the attempts run out.
func (g *Generator) Generate(ctx context.Context, content string) ([]slide.Slide, error) {
	if content == "" {
		return nil, ErrEmptyInput
	}
	started := time.Now()
	ctx, span := g.tracer.Start(ctx, "script.generate", trace.WithAttributes(attribute.Int("script.input_bytes", len(content))))
	defer span.End()

	if g.cfg.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.cfg.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	req := llm.OptionsFromConfig(g.llmCfg, "")
	req.System = systemPrompt
	req.Prompt = BuildPrompt(content, g.cfg.MinSlides, g.cfg.MaxSlides)
	req.JSON = true
	req.TraceID = span.SpanContext().TraceID().String()

	attempt := 0
	op := func() ([]slide.Slide, error) {
		attempt++
		return g.attempt(ctx, req, attempt)
	}
	maxTries := max(g.cfg.MaxAttempts, 1)
	slides, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(g.newRetry()),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.log.Warn("script attempt failed", slog.Int("attempt", attempt), slog.Duration("retry_in", next), slog.String("error", err.Error()))
		}),
	)
	span.SetAttributes(attribute.Int("script.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.observe(ctx, started, "error")
		return nil, fmt.Errorf("generate script: %w", err)
	}
	g.observe(ctx, started, "ok")

	if n := len(slides); n < g.cfg.MinSlides || (g.cfg.MaxSlides > 0 && n > g.cfg.MaxSlides) {
		g.log.Warn("script length outside requested range", slog.Int("slides", n), slog.Int("min", g.cfg.MinSlides), slog.Int("max", g.cfg.MaxSlides))
	}
	for i, s := range slides {
		if !s.Kind.Known() {
			g.log.Warn("script has a slide of unknown type", slog.Int("slide", i+1), slog.String("type", string(s.Kind)))
		}
	}
	span.SetAttributes(attribute.Int("script.slides", len(slides)))
	g.log.Info("script generated", slog.Int("slides", len(slides)), slog.Int("attempts", attempt))
	return slides, nil
}

func (g *Generator) attempt(ctx context.Context, req llm.Request, n int) ([]slide.Slide, error) {
	ctx, span := g.tracer.Start(ctx, "script.attempt", trace.WithAttributes(attribute.Int("script.attempt", n)))
	defer span.End()

	raw, err := llm.Complete(ctx, g.model, req)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	slides, err := Parse(raw)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrEmptyScript) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return slides, nil
}

// Parse decodes model output into slides and checks each one.
func Parse(raw string) ([]slide.Slide, error) {
	slides, err := slide.Decode([]byte(extractJSON(raw)))
	if err != nil {
		return nil, err
	}
	if len(slides) == 0 {
		return nil, ErrEmptyScript
	}
	for i, s := range slides {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("slide %d: %w", i+1, err)
		}
	}
	return slides, nil
}
