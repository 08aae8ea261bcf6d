package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// Extraction defaults
	DefaultPreloadProgress        = 20
	DefaultLatticeMinColumns      = 2
	DefaultLatticeFallbackColumns = 3
	DefaultLatticeRowSupport      = 2

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the MCP server and its extractions
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
	ConfigFile  string

	// Extraction configuration
	PreloadProgress        int
	Workers                int
	NormalizeText          bool
	SplitContainers        bool
	LatticeMinColumns      int
	LatticeFallbackColumns int
	LatticeRowSupport      int
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:                   ModeStdio, // MCP clients spawn servers over stdio
		Host:                   DefaultHost,
		Port:                   DefaultPort,
		PDFDirectory:           currentDir,
		Version:                "1.0.0",
		ServerName:             "mcp-pdf-structure",
		LogLevel:               DefaultLogLevel,
		MaxFileSize:            DefaultMaxFileSize,
		PreloadProgress:        DefaultPreloadProgress,
		Workers:                runtime.NumCPU(),
		LatticeMinColumns:      DefaultLatticeMinColumns,
		LatticeFallbackColumns: DefaultLatticeFallbackColumns,
		LatticeRowSupport:      DefaultLatticeRowSupport,
	}
}

// LoadFromFlags parses command line flags, the environment and an optional
// config file, in that order of precedence
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", file, err)
		}
	}

	populateConfigFromViper(cfg)

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures the MCP_PDF_ environment prefix and
// defaults. Dashes in keys become underscores in variable names.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("MCP_PDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("preload-progress", cfg.PreloadProgress)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("normalize-text", cfg.NormalizeText)
	viper.SetDefault("split-containers", cfg.SplitContainers)
	viper.SetDefault("lattice-min-columns", cfg.LatticeMinColumns)
	viper.SetDefault("lattice-fallback-columns", cfg.LatticeFallbackColumns)
	viper.SetDefault("lattice-row-support", cfg.LatticeRowSupport)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("config", "", "Config file (yaml, toml, json or any format viper reads)")
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("preload-progress", cfg.PreloadProgress, "Pages between preload progress log lines")
	pflag.Int("workers", cfg.Workers, "Pages parsed or reconstructed in parallel")
	pflag.Bool("normalize-text", cfg.NormalizeText, "Apply NFKC normalization to extracted text")
	pflag.Bool("split-containers", cfg.SplitContainers, "Always descend into grouping elements (Sect, Div, ...)")
	pflag.Int("lattice-min-columns", cfg.LatticeMinColumns, "Fewest columns accepted before the even-split fallback")
	pflag.Int("lattice-fallback-columns", cfg.LatticeFallbackColumns, "Column count of the even-split fallback")
	pflag.Int("lattice-row-support", cfg.LatticeRowSupport, "Column votes needed for an unruled row boundary")
}

var boundKeys = []string{
	"config", "mode", "host", "port", "dir", "loglevel", "maxfilesize",
	"preload-progress", "workers", "normalize-text", "split-containers",
	"lattice-min-columns", "lattice-fallback-columns", "lattice-row-support",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range boundKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Structure - structure-aware text and table extraction over MCP\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs --normalize-text    "+
			"# stdio mode, NFKC output\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/pdfs       # SSE server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config=extract.yaml                   # settings from a file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MODE, MCP_PDF_HOST, MCP_PDF_PORT, MCP_PDF_DIR, MCP_PDF_LOGLEVEL,\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MAXFILESIZE, MCP_PDF_WORKERS, MCP_PDF_LATTICE_ROW_SUPPORT, ...\n")
		fmt.Fprintf(os.Stderr, "  (every flag, upper-cased, dashes as underscores)\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.ConfigFile = viper.GetString("config")
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.PreloadProgress = viper.GetInt("preload-progress")
	cfg.Workers = viper.GetInt("workers")
	cfg.NormalizeText = viper.GetBool("normalize-text")
	cfg.SplitContainers = viper.GetBool("split-containers")
	cfg.LatticeMinColumns = viper.GetInt("lattice-min-columns")
	cfg.LatticeFallbackColumns = viper.GetInt("lattice-fallback-columns")
	cfg.LatticeRowSupport = viper.GetInt("lattice-row-support")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters in server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"preload-progress", c.PreloadProgress},
		{"workers", c.Workers},
		{"lattice-min-columns", c.LatticeMinColumns},
		{"lattice-fallback-columns", c.LatticeFallbackColumns},
		{"lattice-row-support", c.LatticeRowSupport},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Workers: %d, NormalizeText: %t, SplitContainers: %t, Lattice: %d/%d/%d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.Workers, c.NormalizeText, c.SplitContainers,
		c.LatticeMinColumns, c.LatticeFallbackColumns, c.LatticeRowSupport)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
