package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rentfleet/aigw/config"
	gwerrors "github.com/rentfleet/aigw/errors"
	"github.com/rentfleet/aigw/logger"
	"github.com/rentfleet/aigw/server"
	"github.com/rentfleet/aigw/server/completion"
	"github.com/rentfleet/aigw/server/handlers"
	"github.com/rentfleet/aigw/server/metrics"
	"github.com/rentfleet/aigw/server/notify"
	"github.com/rentfleet/aigw/server/processing"
	"github.com/rentfleet/aigw/server/routing"
	"github.com/rentfleet/aigw/server/tracing"
	"github.com/rentfleet/aigw/server/validation"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "aigw.yaml", "Path to configuration file")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.3.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("aigw %s\n", Version)
		os.Exit(0)
	}

	// a missing .env is normal in production
	_ = godotenv.Load()

	cfg, err := config.LoadFileOrDefault(*configFile)
	if err != nil {
		var missing *config.MissingCredentialError
		if errors.As(err, &missing) {
			fmt.Fprintf(os.Stderr, "aigw: %v\n", missing)
		} else {
			fmt.Fprintf(os.Stderr, "aigw: failed to load config: %v\n", err)
		}
		os.Exit(1)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		gwerrors.DefaultLogger.Error("Gateway stopped", zap.Error(err))
		gwerrors.DefaultLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, level, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync()
	gwerrors.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := completion.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("create completion client: %w", err)
	}
	defer closeBackend()
	guard := completion.NewGuard(backend, cfg.LLM, cfg.CircuitBreaker, log)

	tracerProvider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Warn("Flushing spans failed", zap.Error(err))
		}
	}()
	otel.SetTracerProvider(tracerProvider)

	m := metrics.NewMetrics()
	processor := processing.NewProcessor(processing.NewBuilder(), guard, log,
		processing.WithMetrics(m),
		processing.WithTracerProvider(tracerProvider),
	)
	relay := notify.NewRelay(cfg.Notify.APIBaseURL, cfg.Notify.BotToken, cfg.Notify.SharedSecret,
		notify.WithMetrics(m),
	)
	gateway := handlers.NewGateway(processor, relay,
		validation.NewDecoder(cfg.LLM.MaxInputTokens, cfg.LLM.Model), log)

	router := routing.NewRouter(routing.Deps{
		Config:  cfg,
		Gateway: gateway,
		Auth:    relay,
		Metrics: m,
		Breaker: guard,
		Logger:  log,
	})

	if _, err := os.Stat(*configFile); err == nil {
		watcher, err := config.NewConfigWatcher(*configFile, log)
		if err != nil {
			log.Warn("Config hot reload disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			go config.WatchLogLevel(watcher, level, log)
		}
	}

	log.Info("Starting aigw",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)
	return server.NewServer(cfg.Server, router, log).Start(ctx)
}
