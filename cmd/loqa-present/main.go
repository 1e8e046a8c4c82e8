// Command loqa-present turns a topic or document into a narrated slide
// presentation and plays it in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/eventstore"
	"github.com/loqalabs/loqa-present/internal/llm"
	"github.com/loqalabs/loqa-present/internal/runtime"
	"github.com/loqalabs/loqa-present/internal/script"
	"github.com/loqalabs/loqa-present/internal/session"
	"github.com/loqalabs/loqa-present/internal/slide"
	"github.com/loqalabs/loqa-present/internal/tts"
)

func main() {
	var (
		configPath string
		topic      string
		sourceFile string
		scriptFile string
		exportDir  string
		remote     bool
		record     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file (defaults when empty)")
	flag.StringVar(&topic, "topic", "", "Topic to present")
	flag.StringVar(&sourceFile, "file", "", "Text or PDF document to present")
	flag.StringVar(&scriptFile, "script", "", "Play a prepared JSON slide script instead of generating one")
	flag.StringVar(&exportDir, "export", "", "Directory to save narration as WAV files")
	flag.BoolVar(&remote, "remote", false, "Generate scripts through a loqad instance on the bus")
	flag.BoolVar(&record, "record", false, "Record playback history in the event store")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "loqa-present: %v\n", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loqa-present: %v\n", err)
		os.Exit(1)
	}
	if exportDir != "" {
		cfg.Player.ExportDir = exportDir
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Telemetry.Level()}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	p, err := newPlayer(ctx, cfg, remote, record, logger)
	if err != nil {
		logger.Error("failed to start player", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer p.close()

	first := func() ([]slide.Slide, error) {
		switch {
		case scriptFile != "":
			return loadScript(scriptFile)
		case sourceFile != "":
			return p.fromFile(ctx, sourceFile)
		case topic != "":
			return p.fromText(ctx, topic)
		}
		return nil, nil
	}
	slides, err := first()
	if err != nil {
		p.printf("could not generate a presentation: %v\n", err)
	}
	if err := p.run(ctx, slides); err != nil {
		logger.Error("player exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type player struct {
	cfg       config.Config
	log       *slog.Logger
	rl        *readline.Instance
	client    *bus.Client
	store     *eventstore.Store
	sessions  *session.Manager
	generator *script.Generator
	extractor *script.Extractor
	remote    bool
	view      *view
}

func newPlayer(ctx context.Context, cfg config.Config, remote, record bool, log *slog.Logger) (*player, error) {
	p := &player{cfg: cfg, log: log, remote: remote}

	if remote || cfg.Player.Narrator == "bus" {
		busCfg := cfg.Bus
		busCfg.Embedded = false
		client, err := bus.Connect(ctx, busCfg, "loqa-present", log.With(slog.String("component", "bus")))
		if err != nil {
			return nil, err
		}
		p.client = client
	}
	if record {
		store, err := eventstore.Open(ctx, cfg.EventStore, log)
		if err != nil {
			p.close()
			return nil, fmt.Errorf("open event store: %w", err)
		}
		p.store = store
	}

	synth, err := tts.New(cfg.TTS)
	if err != nil {
		p.close()
		return nil, err
	}
	narrators, err := runtime.NarratorFactory(cfg, p.client, synth, log)
	if err != nil {
		p.close()
		return nil, err
	}
	p.sessions, err = session.NewManager(cfg.Player, session.Deps{
		Bus:       p.client,
		Store:     p.store,
		Narrators: narrators,
		Logger:    log,
	})
	if err != nil {
		p.close()
		return nil, err
	}

	if !remote {
		model, err := llm.New(cfg.LLM)
		if err != nil {
			p.close()
			return nil, err
		}
		p.generator = script.NewGenerator(model, cfg.Script, cfg.LLM, log)
	}
	p.extractor, err = script.NewExtractor(cfg.Script.PDFCommand, cfg.Script.MaxInputBytes)
	if err != nil {
		p.close()
		return nil, err
	}

	p.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		p.close()
		return nil, err
	}
	p.view = newView(p.rl.Stdout())
	return p, nil
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("play"),
	readline.PcItem("pause"),
	readline.PcItem("replay"),
	readline.PcItem("seek"),
	readline.PcItem("status"),
	readline.PcItem("new"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

func (p *player) printf(format string, args ...any) {
	if p.rl == nil {
		fmt.Fprintf(os.Stdout, format, args...)
		return
	}
	fmt.Fprintf(p.rl.Stdout(), format, args...)
}

func (p *player) close() {
	if p.view != nil {
		p.view.detach()
	}
	if p.sessions != nil {
		p.sessions.Close(context.Background())
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.log.Warn("event store close error", slog.String("error", err.Error()))
		}
	}
	if p.client != nil {
		p.client.Close()
	}
	if p.rl != nil {
		_ = p.rl.Close()
	}
}

// run drives the command loop. Without slides it starts by asking for a
// topic.
func (p *player) run(ctx context.Context, slides []slide.Slide) error {
	if len(slides) > 0 {
		if err := p.mount(ctx, slides); err != nil {
			return err
		}
	}
	for {
		if p.view.session() == nil {
			slides, err := p.askTopic(ctx)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				p.printf("could not generate a presentation from this content: %v\n", err)
				continue
			}
			if err := p.mount(ctx, slides); err != nil {
				return err
			}
			continue
		}

		p.rl.SetPrompt("> ")
		line, err := p.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		cmd, err := parseCommand(line)
		if err != nil {
			p.printf("%v\n", err)
			continue
		}
		if cmd.action == "" {
			switch cmd.name {
			case "quit":
				return nil
			case "help":
				p.printf("%s\n", helpText)
			case "status":
				p.view.redraw()
			case "new":
				p.dismiss(ctx)
			}
			continue
		}
		sess := p.view.session()
		if err := p.sessions.Control(sess.ID(), cmd.action, cmd.fraction); err != nil {
			p.printf("%v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

func (p *player) askTopic(ctx context.Context) ([]slide.Slide, error) {
	p.rl.SetPrompt("Topic, document path or JSON script (empty to quit): ")
	line, err := p.rl.Readline()
	if err != nil {
		return nil, errQuit
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, errQuit
	}
	if info, err := os.Stat(line); err == nil && !info.IsDir() {
		if strings.EqualFold(filepath.Ext(line), ".json") {
			return loadScript(line)
		}
		return p.fromFile(ctx, line)
	}
	return p.fromText(ctx, line)
}

func (p *player) fromText(ctx context.Context, text string) ([]slide.Slide, error) {
	content, err := p.extractor.Text(text)
	if err != nil {
		return nil, err
	}
	return p.generate(ctx, content)
}

func (p *player) fromFile(ctx context.Context, path string) ([]slide.Slide, error) {
	content, err := p.extractor.File(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.generate(ctx, content)
}

func (p *player) generate(ctx context.Context, content string) ([]slide.Slide, error) {
	p.printf("Writing the presentation...\n")
	if p.remote {
		return script.Request(ctx, p.client, uuid.NewString(), content)
	}
	return p.generator.Generate(ctx, content)
}

func (p *player) mount(ctx context.Context, slides []slide.Slide) error {
	sess, err := p.sessions.Mount(ctx, "", slides)
	if err != nil {
		return err
	}
	p.view.attach(sess)
	p.printf("%s\n", helpText)
	return nil
}

func (p *player) dismiss(ctx context.Context) {
	sess := p.view.session()
	if sess == nil {
		return
	}
	p.view.detach()
	if err := p.sessions.Dismiss(ctx, sess.ID()); err != nil && !errors.Is(err, session.ErrNotFound) {
		p.log.Warn("failed to dismiss presentation", slog.String("session_id", sess.ID()), slog.String("error", err.Error()))
	}
}

func loadScript(path string) ([]slide.Slide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return script.Parse(string(data))
}
