// Package app wires herald's components together from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mailherald/herald/internal/campaign"
	"github.com/mailherald/herald/internal/config"
	"github.com/mailherald/herald/internal/dkim"
	"github.com/mailherald/herald/internal/ledger"
	"github.com/mailherald/herald/internal/mailer"
	"github.com/mailherald/herald/internal/metrics"
	"github.com/mailherald/herald/internal/render"
	"github.com/mailherald/herald/internal/roster"
)

// App holds the wired components for a campaign run.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *ledger.Store
	Engine *campaign.Engine

	metricsServer *metrics.Server
	logFile       *os.File
}

// New builds a fully wired application for a send or preview run.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}

	logger, logFile, err := setupLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	source, err := buildSource(cfg.Roster)
	if err != nil {
		store.Close()
		closeFile(logFile)
		return nil, err
	}

	renderer, err := buildRenderer(cfg.Campaign)
	if err != nil {
		store.Close()
		closeFile(logFile)
		return nil, err
	}

	var signer *dkim.Signer
	if cfg.DKIM.Enabled {
		signer, err = dkim.NewSignerFromFile(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			store.Close()
			closeFile(logFile)
			return nil, fmt.Errorf("failed to load DKIM key: %w", err)
		}
		logger.Info("DKIM signing enabled", "domain", signer.Domain(), "selector", signer.Selector())
	}

	m := mailer.NewSMTP(mailer.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		FromName:    cfg.SMTP.FromName,
		FromAddress: cfg.SMTP.FromAddress,
		HelloName:   cfg.SMTP.HelloName,
		Timeout:     cfg.SMTP.Timeout,
	}, signer, logger.With("component", "mailer"))

	mx := metrics.New()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(mx, cfg.Metrics.ListenAddr, cfg.Metrics.Path,
			logger.With("component", "metrics"))
		metricsServer.Start()
	}

	engine := campaign.New(source, renderer, m, store, mx, campaign.Config{
		MaxRetries:   cfg.Campaign.MaxRetries,
		RetryBackoff: cfg.Campaign.RetryBackoff,
		Workers:      cfg.Campaign.Workers,
		SendDelay:    cfg.Campaign.SendDelay,
	}, logger.With("component", "campaign"))

	return &App{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Engine:        engine,
		metricsServer: metricsServer,
		logFile:       logFile,
	}, nil
}

// NewInspector builds the minimal application for read-only commands:
// logger and ledger, no SMTP or roster wiring.
func NewInspector(cfg *config.Config) (*App, error) {
	logger, logFile, err := setupLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		logFile: logFile,
	}, nil
}

// Close releases the ledger, the metrics listener and the log file.
func (a *App) Close() error {
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(context.Background()); err != nil {
			a.Logger.Warn("failed to stop metrics server", "error", err)
		}
	}

	err := a.Store.Close()
	closeFile(a.logFile)
	return err
}

func buildSource(cfg config.RosterConfig) (roster.Source, error) {
	if cfg.CSVFile != "" {
		return roster.NewFileSource(cfg.CSVFile), nil
	}

	source, err := roster.NewSheetSource(cfg.SheetURL, cfg.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid roster sheet URL: %w", err)
	}
	return source, nil
}

func buildRenderer(cfg config.CampaignConfig) (*render.Renderer, error) {
	subject := render.DefaultSubject
	body := render.DefaultBody

	if cfg.SubjectTemplateFile != "" {
		data, err := os.ReadFile(cfg.SubjectTemplateFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read subject template: %w", err)
		}
		subject = string(data)
	}
	if cfg.BodyTemplateFile != "" {
		data, err := os.ReadFile(cfg.BodyTemplateFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read body template: %w", err)
		}
		body = string(data)
	}

	return render.New(subject, body)
}

// setupLogger creates a logger based on configuration. Logs go to
// stderr so command output on stdout stays machine-readable; an
// optional file receives a copy.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, *os.File, error) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var out io.Writer = os.Stderr
	var logFile *os.File
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(os.Stderr, f)
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), logFile, nil
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}
