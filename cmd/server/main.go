package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/Fantasim/svgpages/internal/api"
	"github.com/Fantasim/svgpages/internal/api/handlers"
	"github.com/Fantasim/svgpages/internal/config"
	"github.com/Fantasim/svgpages/internal/db"
	"github.com/Fantasim/svgpages/internal/logging"
	"github.com/Fantasim/svgpages/internal/pages"
	"github.com/Fantasim/svgpages/internal/render"
	"github.com/Fantasim/svgpages/internal/svg"
)

var version = "dev"

const usageGuide = `svgpages serves SVG files as full-width HTML pages.

  GET /                  redirects to the index page (-i, default /home)
  GET /<page>            renders <svg-dir>/<page>.svg
  GET /<dir>:<page>      renders <svg-dir>/<dir>/<page>.svg

Page names are lowercased before lookup. The root <svg> tag loses its
height attribute and any width becomes 100%.`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			slog.Error("stats error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("svgpages %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: svgpages <command>

Commands:
  serve     Start the HTTP server
  stats     Print render outcome counts from the audit database
  version   Print version information
`)
}

// parseServeFlags applies command-line overrides on top of cfg.
func parseServeFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&cfg.Bind, "bind", cfg.Bind, "Bind address to listen on")
	fs.StringVar(&cfg.Bind, "b", cfg.Bind, "Bind address to listen on (shorthand)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Port to listen on")
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Port to listen on (shorthand)")
	fs.StringVar(&cfg.Index, "index", cfg.Index, "Route to redirect / to")
	fs.StringVar(&cfg.Index, "i", cfg.Index, "Route to redirect / to (shorthand)")
	fs.StringVar(&cfg.TemplateDir, "templates", cfg.TemplateDir, "Directory of *.html templates (default: embedded)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: svgpages serve [flags] [svg-dir]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.SVGDir = fs.Arg(0)
	default:
		return fmt.Errorf("%w: expected at most one svg directory, got %d", config.ErrInvalidConfig, fs.NArg())
	}
	return nil
}

func runServe(args []string) error {
	fmt.Printf("%s\n\n", usageGuide)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := parseServeFlags(cfg, args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting svgpages",
		"version", version,
		"addr", cfg.Addr(),
		"svgDir", cfg.SVGDir,
		"index", cfg.Index,
		"logLevel", cfg.LogLevel,
	)

	tmpl, err := render.LoadTemplates(cfg.TemplateDir)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	deps := handlers.PageDeps{
		Resolver: pages.NewResolver(cfg.SVGDir),
		Rewriter: svg.TagRewriter{},
		Binder:   render.NewBinder(tmpl),
	}

	if cfg.DBPath != "" {
		database, err := openDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		deps.Recorder = database
	} else {
		slog.Info("render audit disabled")
	}

	api.Version = version
	router := api.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "url", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-done:
	}

	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func openDB(path string) (*db.DB, error) {
	database, err := db.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database opened", "path", path)
	return database, nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (default: from SVGPAGES_DB_PATH)")
	limit := fs.Int("recent", config.StatsRecentLimit, "Number of recent failures to show")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("%w: --db is required (or set SVGPAGES_DB_PATH)", config.ErrInvalidConfig)
	}

	database, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	return printStats(context.Background(), os.Stdout, database, *limit)
}

func printStats(ctx context.Context, out io.Writer, database *db.DB, limit int) error {
	counts, err := database.CountRenders(ctx)
	if err != nil {
		return err
	}
	failures, err := database.RecentFailures(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tKIND\tCOUNT")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Outcome, c.ErrorKind, c.Count)
	}
	if len(failures) > 0 {
		fmt.Fprintln(tw, "\nWHEN\tPAGE\tKIND\tERROR")
		for _, f := range failures {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.CreatedAt, f.Page, f.ErrorKind, f.Error)
		}
	}
	return tw.Flush()
}
