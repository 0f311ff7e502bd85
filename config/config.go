// Package config declares the command line flags and collects them into a
// validated Config.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"hstin/isobar/common"
	"hstin/isobar/helper"
)

type Config struct {
	Dataset       string
	BasemapDir    string
	BasemapStyle  string
	StaticDir     string
	ScratchDir    string
	HTTP          bool
	GRPC          bool
	HTTPPort      string
	GRPCPort      string
	MaxConns      int
	CORSOrigins   string
	LogLevel      string
	LogFormat     string
	TTL           time.Duration
	MaxEntries    int
	SweepInterval time.Duration
	Workers       int
	ReferenceDate string
	Watermark     string
	Width         float64
	Height        float64
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dataset",
			Aliases: []string{"d"},
			Usage:   "NetCDF file holding the gridded dataset",
			EnvVars: []string{"DATASET"},
		},
		&cli.StringFlag{
			Name:    "basemap-dir",
			Value:   "data/naturalearth",
			Usage:   "Directory with the Natural Earth shapefiles",
			EnvVars: []string{"BASEMAP_DIR"},
		},
		&cli.StringFlag{
			Name:    "basemap-style",
			Usage:   "YAML file overriding base map colours and layers",
			EnvVars: []string{"BASEMAP_STYLE"},
		},
		&cli.StringFlag{
			Name:    "static-dir",
			Value:   "static",
			Usage:   "Directory for shareable maps, served under /static",
			EnvVars: []string{"STATIC_DIR"},
		},
		&cli.StringFlag{
			Name:    "scratch-dir",
			Usage:   "Directory for transient downloads (default: next to static-dir)",
			EnvVars: []string{"SCRATCH_DIR"},
		},
		&cli.BoolFlag{
			Name:    "http",
			Value:   true,
			Usage:   "Start the HTTP server",
			EnvVars: []string{"START_HTTP"},
		},
		&cli.BoolFlag{
			Name:    "grpc",
			Value:   false,
			Usage:   "Start the gRPC server",
			EnvVars: []string{"START_GRPC"},
		},
		&cli.StringFlag{
			Name:    "http-port",
			Value:   "8000",
			Usage:   "HTTP server port",
			EnvVars: []string{"HTTP_PORT"},
		},
		&cli.StringFlag{
			Name:    "grpc-port",
			Value:   "50051",
			Usage:   "gRPC server port",
			EnvVars: []string{"GRPC_PORT"},
		},
		&cli.IntFlag{
			Name:    "max-conns",
			Value:   256,
			Usage:   "Maximum concurrent connections per listener",
			EnvVars: []string{"MAX_CONNS"},
		},
		&cli.StringFlag{
			Name:    "cors-origins",
			Value:   "*",
			Usage:   "Comma separated list of allowed CORS origins",
			EnvVars: []string{"CORS_ORIGINS"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "One of " + strings.Join(helper.LogLevels, ", "),
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "console",
			Usage:   "console or json",
			EnvVars: []string{"LOG_FORMAT"},
		},
		&cli.DurationFlag{
			Name:    "artifact-ttl",
			Value:   24 * time.Hour,
			Usage:   "Age after which shareable maps are removed (0 keeps them forever)",
			EnvVars: []string{"ARTIFACT_TTL"},
		},
		&cli.IntFlag{
			Name:    "artifact-max",
			Value:   1000,
			Usage:   "Maximum number of shareable maps kept (0 for no limit)",
			EnvVars: []string{"ARTIFACT_MAX"},
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Value:   5 * time.Minute,
			Usage:   "How often the retention policy runs",
			EnvVars: []string{"SWEEP_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Value:   runtime.NumCPU(),
			Usage:   "Frames rendered in parallel per animation",
			EnvVars: []string{"WORKERS"},
		},
		&cli.StringFlag{
			Name:    "reference-date",
			Usage:   "Date printed in titles, DD/MM/YYYY (default: first dataset timestamp)",
			EnvVars: []string{"REFERENCE_DATE"},
		},
		&cli.StringFlag{
			Name:    "watermark",
			Value:   "WRF Indonesia Weather Visualization",
			Usage:   "Caption in the lower left corner of every frame",
			EnvVars: []string{"WATERMARK"},
		},
		&cli.Float64Flag{
			Name:    "figure-width",
			Value:   13,
			Usage:   "Figure width in inches",
			EnvVars: []string{"FIGURE_WIDTH"},
		},
		&cli.Float64Flag{
			Name:    "figure-height",
			Value:   8,
			Usage:   "Figure height in inches",
			EnvVars: []string{"FIGURE_HEIGHT"},
		},
	}
}

// FromContext reads the flags declared by Flags and validates them.
func FromContext(c *cli.Context) (*Config, error) {
	cfg := &Config{
		Dataset:       c.String("dataset"),
		BasemapDir:    c.String("basemap-dir"),
		BasemapStyle:  c.String("basemap-style"),
		StaticDir:     c.String("static-dir"),
		ScratchDir:    c.String("scratch-dir"),
		HTTP:          c.Bool("http"),
		GRPC:          c.Bool("grpc"),
		HTTPPort:      c.String("http-port"),
		GRPCPort:      c.String("grpc-port"),
		MaxConns:      c.Int("max-conns"),
		CORSOrigins:   c.String("cors-origins"),
		LogLevel:      strings.ToLower(c.String("log-level")),
		LogFormat:     strings.ToLower(c.String("log-format")),
		TTL:           c.Duration("artifact-ttl"),
		MaxEntries:    c.Int("artifact-max"),
		SweepInterval: c.Duration("sweep-interval"),
		Workers:       c.Int("workers"),
		ReferenceDate: c.String("reference-date"),
		Watermark:     c.String("watermark"),
		Width:         c.Float64("figure-width"),
		Height:        c.Float64("figure-height"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Dataset == "" {
		return errors.New("dataset is required")
	}
	if !cfg.HTTP && !cfg.GRPC {
		return errors.New("neither HTTP nor gRPC server enabled")
	}
	if cfg.StaticDir == "" {
		return errors.New("static-dir is required")
	}
	if err := validPort("http-port", cfg.HTTPPort); err != nil {
		return err
	}
	if err := validPort("grpc-port", cfg.GRPCPort); err != nil {
		return err
	}
	if cfg.MaxConns < 1 {
		return errors.New("max-conns must be at least 1")
	}
	if !contains(helper.LogLevels, cfg.LogLevel) {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	if cfg.TTL < 0 {
		return errors.New("artifact-ttl must not be negative")
	}
	if cfg.MaxEntries < 0 {
		return errors.New("artifact-max must not be negative")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("sweep-interval must be positive")
	}
	if cfg.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("figure size must be positive")
	}
	if cfg.ReferenceDate != "" {
		if _, err := time.Parse(common.DateLayout, cfg.ReferenceDate); err != nil {
			return fmt.Errorf("reference-date %q is not DD/MM/YYYY", cfg.ReferenceDate)
		}
	}
	return nil
}

func validPort(name, port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%s %q is not a valid port", name, port)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
