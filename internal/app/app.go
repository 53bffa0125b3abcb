package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/tabby/internal/catapi"
	"github.com/five82/tabby/internal/config"
	"github.com/five82/tabby/internal/coord"
	"github.com/five82/tabby/internal/logging"
	"github.com/five82/tabby/internal/metrics"
	"github.com/five82/tabby/internal/prefs"
	"github.com/five82/tabby/internal/state"
	"github.com/five82/tabby/internal/telemetry"
	"github.com/five82/tabby/internal/ui"
	"github.com/five82/tabby/internal/view"
)

const shutdownTimeout = 3 * time.Second

// Options configure the Tabby application.
type Options struct {
	ConfigPath   string
	PrefsPath    string        // empty uses default ~/.config/tabby/prefs.toml
	RefreshEvery time.Duration // overrides refresh_interval when positive
	Query        string        // initial search; empty uses the saved query
	ListOnly     bool          // print the breeds instead of starting the UI
	Version      string
	Stdout       io.Writer // list output; defaults to os.Stdout
}

// Run boots Tabby until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	if err := config.LoadEnvFiles(); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load tabby config: %w", err)
	}

	logger, closer, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()
	logger.Info("tabby starting", "version", opts.Version, "base_url", cfg.BaseURL, "authenticated", cfg.HasAPIKey())

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, m, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	shutdownTracer, err := startTracing(cfg.TraceFile, opts.Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	client, err := catapi.NewClient(catapi.Options{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Metrics:           m,
	})
	if err != nil {
		return fmt.Errorf("init cat api client: %w", err)
	}

	// Operations outlive screens but not the process.
	opCtx, cancelOps := context.WithCancel(ctx)
	store := &state.Store{}
	c := coord.New(opCtx, client, store, coord.Options{Logger: logger, Metrics: m})
	defer func() {
		cancelOps()
		c.Wait()
	}()

	if opts.ListOnly {
		return printList(ctx, c, opts.Query, stdoutOr(opts.Stdout))
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("load preferences failed", "error", err)
	}
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		query = userPrefs.LastQuery
	}

	list := view.OpenList(ctx, c, query)
	defer list.Close()

	interval := cfg.RefreshInterval
	if opts.RefreshEvery > 0 {
		interval = opts.RefreshEvery
	}
	StartRefresher(ctx, list, interval, logger)

	return ui.Run(ui.Options{
		Context:     ctx,
		Coordinator: c,
		List:        list,
		ThemeName:   userPrefs.Theme,
		PrefsPath:   opts.PrefsPath,
		LogPath:     cfg.LogFile,
		Logger:      logger,
	})
}

// printList loads the breeds matching query and writes one "id<TAB>name" line
// per breed.
func printList(ctx context.Context, c *coord.Coordinator, query string, w io.Writer) error {
	task := c.SearchCats(nil, query)
	if err := task.Wait(ctx); err != nil {
		return err
	}
	for _, b := range view.ProjectList(c.Store().All(), query, coord.Status{}).Items {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", b.ID, b.Name); err != nil {
			return fmt.Errorf("write list: %w", err)
		}
	}
	return nil
}

// serveMetrics exposes m on addr under /metrics. The returned func stops the
// server.
func serveMetrics(addr string, m *metrics.Metrics, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// startTracing exports spans to path. An empty path keeps tracing disabled.
func startTracing(path, version string) (telemetry.ShutdownFunc, error) {
	if path == "" {
		return telemetry.InitTracer("tabby", version, nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	shutdown, err := telemetry.InitTracer("tabby", version, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return func(ctx context.Context) error {
		err := shutdown(ctx)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

func stdoutOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
