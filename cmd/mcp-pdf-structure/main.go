package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-structure/internal/config"
	"github.com/a3tai/mcp-pdf-structure/internal/extract"
	"github.com/a3tai/mcp-pdf-structure/internal/lattice"
	"github.com/a3tai/mcp-pdf-structure/internal/mcp"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newLogger builds the process logger. In stdio mode stdout carries the MCP
// protocol, so logs go to stderr and only when debugging.
func newLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	out := stderr
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		out = io.Discard
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.IsServerMode() && cfg.IsDebug(),
	}))
}

// extractOptions maps configuration onto extraction settings
func extractOptions(cfg *config.Config, logger *slog.Logger) extract.Options {
	return extract.Options{
		Workers:         cfg.Workers,
		ProgressEvery:   cfg.PreloadProgress,
		NormalizeText:   cfg.NormalizeText,
		SplitContainers: cfg.SplitContainers,
		Lattice: lattice.Config{
			MinColumns:      cfg.LatticeMinColumns,
			FallbackColumns: cfg.LatticeFallbackColumns,
			RowSupport:      cfg.LatticeRowSupport,
		},
		Logger: logger,
	}
}

// run wires the service and server and blocks until ctx is done
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pdfService, err := pdf.NewService(cfg.MaxFileSize, cfg.PDFDirectory,
		pdf.WithLogger(logger),
		pdf.WithExtractOptions(extractOptions(cfg, logger)),
	)
	if err != nil {
		return fmt.Errorf("failed to create PDF service: %w", err)
	}

	server, err := mcp.NewServer(cfg, pdfService, mcp.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	return server.Run(ctx)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("starting", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Structure\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
