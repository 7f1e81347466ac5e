package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	flag "github.com/spf13/pflag"

	"github.com/haukened/keyword-filter/internal/filter/common/clock"
	"github.com/haukened/keyword-filter/internal/filter/common/log"
	"github.com/haukened/keyword-filter/internal/filter/config"
	"github.com/haukened/keyword-filter/internal/filter/domain"
	"github.com/haukened/keyword-filter/internal/filter/gateways/httpapi"
	"github.com/haukened/keyword-filter/internal/filter/repos/bloom"
	"github.com/haukened/keyword-filter/internal/filter/repos/rules/bolt"
	"github.com/haukened/keyword-filter/internal/filter/repos/rules/file"
	"github.com/haukened/keyword-filter/internal/filter/repos/rules/memory"
	"github.com/haukened/keyword-filter/internal/filter/repos/verdictcache"
	"github.com/haukened/keyword-filter/internal/filter/services/commands"
	"github.com/haukened/keyword-filter/internal/filter/services/filter"
	"github.com/haukened/keyword-filter/internal/filter/services/rulestore"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "keyword-filterd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the filter daemon
type Application struct {
	config *config.AppConfig
	store  *rulestore.Store
	filter *filter.Filter
	server *httpapi.Server
}

// flags holds the parsed command line.
type flags struct {
	configPath  string
	showVersion bool
}

func parseFlags(args []string) (flags, error) {
	var fl flags
	f := flag.NewFlagSet(appName, flag.ContinueOnError)
	f.StringVar(&fl.configPath, "config", "", "Path to an optional TOML configuration file")
	f.BoolVar(&fl.showVersion, "version", false, "Current version of the build")
	if err := f.Parse(args); err != nil {
		return flags{}, err
	}
	return fl, nil
}

func main() {
	fl, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(2)
	}
	if fl.showVersion {
		fmt.Println(appName, version)
		os.Exit(0)
	}

	// Load configuration from defaults, file and environment
	cfg, err := config.Load(fl.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.Log.Level,
		"store_backend": cfg.Store.Backend,
		"store_path":    cfg.Store.Path,
		"cache_size":    cfg.Cache.Size,
		"addr":          cfg.Server.Addr,
	}, "Starting keyword filter")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, "Keyword filter stopped gracefully")
}

// buildBackend opens the configured rule storage.
func buildBackend(cfg config.StoreConfig, clk clock.Clock) (rulestore.Backend, error) {
	switch cfg.Backend {
	case "bolt":
		return bolt.New(cfg.Path, clk)
	case "file":
		return file.New(cfg.Path)
	case "memory":
		return memory.New(domain.EmptyRuleSet()), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	backend, err := buildBackend(cfg.Store, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s rule store: %w", cfg.Store.Backend, err)
	}

	store, err := rulestore.New(rulestore.Options{
		Backend:      backend,
		Logger:       log.With(logger, map[string]any{"component": "rulestore"}),
		BloomFactory: bloom.NewFactory(),
		BloomFPRate:  cfg.Store.BloomFPRate,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	cache, err := verdictcache.New(cfg.Cache.Size)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create verdict cache: %w", err)
	}
	if cfg.Cache.Size > 0 {
		log.Info(map[string]any{
			"type": "LRU",
			"size": cfg.Cache.Size,
		}, "Verdict cache configured")
	} else {
		log.Info(map[string]any{"disabled": true}, "Verdict caching disabled")
	}

	set := metrics.NewSet()
	f := filter.New(filter.Options{
		Rules:   store,
		Cache:   cache,
		Logger:  log.With(logger, map[string]any{"component": "filter"}),
		Metrics: set,
	})
	registerGauges(set, store, f)
	if bs, ok := backend.(*bolt.Store); ok {
		registerBoltGauges(set, bs)
		st := bs.Stats()
		log.Info(map[string]any{
			"path":      cfg.Store.Path,
			"saves":     st.Version,
			"last_save": st.UpdatedUnix,
			"prefixes":  st.Prefixes,
			"keywords":  st.Keywords,
			"suffixes":  st.Suffixes,
		}, "Bolt rule store opened")
	}

	handler := commands.NewHandler(commands.HandlerOptions{
		Rules:  store,
		Logger: log.With(logger, map[string]any{"component": "commands"}),
	})

	server := httpapi.NewServer(httpapi.Options{
		Addr:     cfg.Server.Addr,
		MaxConns: cfg.Server.MaxConns,
		Logger:   log.With(logger, map[string]any{"component": "httpapi"}),
		Checker:  f,
		Commands: handler,
		Rules:    store,
		Metrics:  []httpapi.MetricsWriter{set, processMetrics{}},
	})

	return &Application{
		config: cfg,
		store:  store,
		filter: f,
		server: server,
	}, nil
}

// registerGauges exposes rule counts and verdict cache counters.
func registerGauges(set *metrics.Set, store *rulestore.Store, f *filter.Filter) {
	for _, c := range domain.RuleCategories {
		set.NewGauge(fmt.Sprintf(`keyword_filter_rules{category=%q}`, c.String()), func() float64 {
			return float64(len(store.List().Rules(c)))
		})
	}
	set.NewGauge("keyword_filter_rules_version", func() float64 {
		return float64(store.Version())
	})
	set.NewGauge("keyword_filter_verdict_cache_entries", func() float64 {
		return float64(f.CacheStats().Size)
	})
	set.NewGauge("keyword_filter_verdict_cache_capacity", func() float64 {
		return float64(f.CacheStats().Capacity)
	})
	set.NewGauge("keyword_filter_verdict_cache_hits_total", func() float64 {
		return float64(f.CacheStats().Hits)
	})
	set.NewGauge("keyword_filter_verdict_cache_misses_total", func() float64 {
		return float64(f.CacheStats().Misses)
	})
	set.NewGauge("keyword_filter_verdict_cache_evictions_total", func() float64 {
		return float64(f.CacheStats().Evictions)
	})
}

// registerBoltGauges exposes the bolt save counter and last save time.
func registerBoltGauges(set *metrics.Set, bs *bolt.Store) {
	set.NewGauge("keyword_filter_store_saves", func() float64 {
		return float64(bs.Stats().Version)
	})
	set.NewGauge("keyword_filter_store_last_save_timestamp_seconds", func() float64 {
		return float64(bs.Stats().UpdatedUnix)
	})
}

// processMetrics writes Go runtime and process metrics.
type processMetrics struct{}

func (processMetrics) WritePrometheus(w io.Writer) { metrics.WriteProcessMetrics(w) }

// Run starts the HTTP server and blocks until ctx is cancelled
func (app *Application) Run(ctx context.Context) error {
	if err := app.server.Start(ctx); err != nil {
		_ = app.store.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	log.Info(map[string]any{
		"address": app.server.Address(),
	}, "Keyword filter started")

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := app.server.Stop(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error during HTTP server shutdown")
		}
		done <- app.store.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing rule store")
		}
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
