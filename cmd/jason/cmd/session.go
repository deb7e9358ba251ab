package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"jason/internal/config"
	"jason/internal/logger"
	"jason/internal/observability"
	"jason/internal/sink"
	"jason/internal/workflow"
	"jason/pkg/jason"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const serviceName = "jason-cli"

// resultPrefix is the key prefix of archives copied to the result bucket.
const resultPrefix = "results"

// session holds what one CLI invocation sets up before running a command.
type session struct {
	cfg            *config.Config
	log            *slog.Logger
	metrics        *observability.Metrics
	shutdownTracer func(context.Context) error
}

var current *session

func openSession(cmd *cobra.Command, args []string) error {
	if err := initConfig(); err != nil {
		return err
	}

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Debug)
	if err != nil {
		return err
	}
	w := cmd.ErrOrStderr()
	log := logger.New(w, level, logFormat(w))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithRequestID(ctx, logger.NewRequestID())
	cmd.SetContext(ctx)

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return err
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return err
	}

	current = &session{cfg: cfg, log: log, metrics: metrics, shutdownTracer: shutdownTracer}
	logger.FromContext(ctx, log).Debug("configuration loaded",
		"url", cfg.APIURL, "config_file", viper.ConfigFileUsed(), "version", version)
	return nil
}

func closeSession(ctx context.Context) error {
	if current == nil {
		return nil
	}
	s := current
	current = nil

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return errors.Join(
		s.metrics.Shutdown(ctx, s.cfg.MetricsFile),
		s.shutdownTracer(ctx),
	)
}

// logFormat picks text output for terminals and JSON otherwise.
func logFormat(w io.Writer) logger.Format {
	if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return logger.FormatText
		}
	}
	return logger.FormatJSON
}

func newClient() *jason.Client {
	cfg := current.cfg
	return jason.NewClient(jason.Config{
		BaseURL:     cfg.APIURL,
		APIKey:      cfg.APIKey,
		SecretToken: cfg.SecretToken,
		HTTPClient:  &http.Client{Timeout: cfg.RequestTimeout},
		RateLimit:   cfg.RateLimit,
		DownloadDir: cfg.DownloadDir,
		Platform:    "cli",
		AppVersion:  version,
		Logger:      current.log,
	})
}

// newOrchestrator builds the workflow, taking --timeout and --interval
// from cmd when they were given. The result bucket is only set up when
// publish is true, for commands that wait for and download results.
func newOrchestrator(cmd *cobra.Command, publish bool) (*workflow.Orchestrator, error) {
	cfg := current.cfg
	wcfg := workflow.Config{
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.Timeout,
		Logger:       current.log,
	}

	flags := cmd.Flags()
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		wcfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		interval, _ := flags.GetDuration("interval")
		if interval <= 0 {
			return nil, fmt.Errorf("%w: --interval must be positive", jason.ErrValidation)
		}
		wcfg.PollInterval = interval
	}

	if publish && cfg.ResultBucket != "" {
		s3Sink, err := sink.NewS3Sink(cmd.Context(), cfg.ResultBucket, resultPrefix)
		if err != nil {
			return nil, err
		}
		wcfg.Sink = s3Sink
	}

	return workflow.New(newClient(), wcfg), nil
}
