// Command lectern is the guided e-learning presenter server. It turns
// textbook pages into narrated, caption-synced presentations and serves the
// playback state machine over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pagecoach/lectern/internal/assets"
	"github.com/pagecoach/lectern/internal/config"
	"github.com/pagecoach/lectern/internal/health"
	"github.com/pagecoach/lectern/internal/narrate"
	"github.com/pagecoach/lectern/internal/observe"
	"github.com/pagecoach/lectern/internal/packet"
	"github.com/pagecoach/lectern/internal/progress"
	"github.com/pagecoach/lectern/internal/recap"
	"github.com/pagecoach/lectern/internal/resilience"
	"github.com/pagecoach/lectern/internal/script"
	"github.com/pagecoach/lectern/internal/server"
	"github.com/pagecoach/lectern/internal/session"
	"github.com/pagecoach/lectern/pkg/doc/fitz"
	"github.com/pagecoach/lectern/pkg/provider/speech"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lectern: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lectern: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("lectern starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Presentation assets ───────────────────────────────────────────────────
	assetLoader, err := assets.Load(cfg.Assets.PromptPath, cfg.Assets.PageLead, cfg.Assets.PronunciationPath)
	if err != nil {
		slog.Error("failed to load assets", "err", err)
		return 1
	}
	defer assetLoader.Stop()
	if cfg.Assets.Watch {
		if err := assetLoader.Watch(); err != nil {
			slog.Error("failed to watch assets", "err", err)
			return 1
		}
		slog.Info("asset hot reload enabled", "prompt", cfg.Assets.PromptPath)
	}

	// ── Document library ──────────────────────────────────────────────────────
	renderer, err := fitz.NewRenderer(cfg.Library.Dir)
	if err != nil {
		slog.Error("failed to open document library", "err", err)
		return 1
	}

	// ── Bookmark store ────────────────────────────────────────────────────────
	checkers := []health.Checker{
		health.Library(cfg.Library.Dir),
		health.Providers(cfg.Providers.Generator.Name, cfg.Providers.Speech.Name),
	}

	var store progress.Store
	if dsn := cfg.Progress.PostgresDSN; dsn != "" {
		pg, err := progress.NewPostgresStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect bookmark store", "err", err)
			return 1
		}
		store = pg
		checkers = append(checkers, health.Progress(pg.Ping))
		slog.Info("bookmark store connected", "backend", "postgres")
	} else {
		store = progress.NewMemoryStore()
		slog.Info("bookmark store in memory; bookmarks are lost on restart")
	}
	defer store.Close()

	// ── Providers ─────────────────────────────────────────────────────────────
	registry := config.DefaultRegistry()

	speechProvider, err := buildSpeech(registry, cfg)
	if err != nil {
		slog.Error("failed to create speech provider", "err", err)
		return 1
	}
	voice := cfg.Providers.Speech.VoiceProfile()

	generateTimeout := time.Duration(cfg.Session.GenerateTimeoutSeconds) * time.Second
	synthesizeTimeout := time.Duration(cfg.Session.SynthesizeTimeoutSeconds) * time.Second

	factory := func(credential string) (*packet.Builder, error) {
		entry := cfg.Providers.Generator
		if credential != "" {
			entry.APIKey = credential
		}
		genProvider, err := registry.CreateGenerator(entry)
		if err != nil {
			return nil, err
		}
		generator, err := script.NewGenerator(genProvider, generateTimeout)
		if err != nil {
			return nil, err
		}
		synthesizer, err := narrate.NewSynthesizer(speechProvider, voice, synthesizeTimeout)
		if err != nil {
			return nil, err
		}

		opts := []packet.Option{packet.WithMetrics(metrics)}
		if cfg.Library.Scale > 0 {
			opts = append(opts, packet.WithScale(cfg.Library.Scale))
		}
		if cfg.Session.MinCaptionIntervalMS > 0 {
			opts = append(opts, packet.WithMinCaptionInterval(
				time.Duration(cfg.Session.MinCaptionIntervalMS)*time.Millisecond))
		}
		return packet.NewBuilder(generator, synthesizer, assetLoader, opts...)
	}

	// ── Segment-end hooks ─────────────────────────────────────────────────────
	hooks := []func(context.Context, session.SegmentSummary){
		progress.SegmentHook(store),
	}

	var recapper *recap.Recapper
	if cfg.Providers.Recap.Enabled {
		llmProvider, err := registry.CreateRecap(cfg.Providers.Recap)
		if err != nil {
			slog.Error("failed to create recap provider", "err", err)
			return 1
		}
		recapper, err = recap.New(llmProvider, 0)
		if err != nil {
			slog.Error("failed to create recapper", "err", err)
			return 1
		}
		hooks = append(hooks, recapper.Hook())
		slog.Info("segment recap enabled",
			"provider", cfg.Providers.Recap.Name, "model", cfg.Providers.Recap.Model)
	}

	// ── Session controller ────────────────────────────────────────────────────
	ctrlOpts := []session.Option{
		session.WithMetrics(metrics),
		session.WithPrefetch(!cfg.Session.DisablePrefetch),
		session.WithSegmentEndHook(func(ctx context.Context, s session.SegmentSummary) {
			for _, h := range hooks {
				h(ctx, s)
			}
		}),
	}
	if cfg.Session.SegmentSize > 0 {
		ctrlOpts = append(ctrlOpts, session.WithSegmentSize(cfg.Session.SegmentSize))
	}
	controller, err := session.NewController(renderer, factory, ctrlOpts...)
	if err != nil {
		slog.Error("failed to create session controller", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.VoiceChanged || d.PacingChanged {
			slog.Info("voice or pacing changed; applies from the next session start")
		}
		if d.RestartRequired {
			slog.Warn("config change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config hot reload unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithListenAddr(cfg.Server.ListenAddr),
		server.WithLibrary(renderer),
		server.WithHealth(health.New(checkers...)),
		server.WithMetrics(metrics),
	}
	if recapper != nil {
		srvOpts = append(srvOpts, server.WithRecapper(recapper))
	}
	if cfg.Server.TLS != nil {
		srvOpts = append(srvOpts, server.WithTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile))
	}
	srv, err := server.New(controller, renderer, srvOpts...)
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	controller.Close(shutdownCtx)

	slog.Info("goodbye")
	return 0
}

// buildSpeech creates the speech provider, wrapping it in a failover group
// when fallbacks are configured.
func buildSpeech(registry *config.Registry, cfg *config.Config) (speech.Provider, error) {
	primary, err := registry.CreateSpeech(cfg.Providers.Speech)
	if err != nil {
		return nil, err
	}
	if len(cfg.Providers.SpeechFallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewSpeechFallback(primary, cfg.Providers.Speech.Name, resilience.FallbackConfig{})
	for _, fb := range cfg.Providers.SpeechFallbacks {
		p, err := registry.CreateSpeech(fb)
		if err != nil {
			return nil, fmt.Errorf("speech fallback %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		slog.Info("speech fallback registered", "name", fb.Name)
	}
	return group, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         lectern — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Generator", cfg.Providers.Generator.Name, cfg.Providers.Generator.Model)
	printProvider("Speech", cfg.Providers.Speech.Name, cfg.Providers.Speech.Voice)
	if cfg.Providers.Recap.Enabled {
		printProvider("Recap", cfg.Providers.Recap.Name, cfg.Providers.Recap.Model)
	} else {
		printProvider("Recap", "", "")
	}
	fmt.Printf("║  Library         : %-19s║\n", truncate(cfg.Library.Dir, 19))
	backend := "memory"
	if cfg.Progress.PostgresDSN != "" {
		backend = "postgres"
	}
	fmt.Printf("║  Bookmarks       : %-19s║\n", backend)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, detail string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if detail != "" {
		value = name + " / " + detail
	}
	fmt.Printf("║  %-12s    : %-19s║\n", kind, truncate(value, 19))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-1] + "…"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
