package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"jason/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X jason/cmd/jason/cmd.version=..."
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "jason",
	Short:   "jason is a command line tool for the Jason GNSS processing service",
	Version: version,
	Long: `jason is the command-line interface for the Jason GNSS processing service.

Observation files are uploaded to the service, which computes positions
(PPP, PPK, SPP) or converts receiver logs to RINEX. The CLI waits for the
remote process and downloads the result archive.

Common workflows:

  Process a rover file, with an optional base station file:
    jason process rover.obs base.obs --label survey-1

  Convert a raw receiver log to RINEX:
    jason convert rover.ubx

  Submit without waiting, then check on it later:
    jason submit rover.obs
    jason status 1234
    jason download 1234

  Attach camera metadata from a folder of geotagged pictures:
    jason process rover.obs -i ./pictures

Configuration:
  Credentials and the endpoint come from flags, environment variables,
  a .env file in the working directory or a YAML config file:
    JASON_API_KEY        API key
    JASON_SECRET_TOKEN   user secret token
    JASON_API_URL        API endpoint (default: ` + config.DefaultAPIURL + `)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree, logs any failure and releases the session.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		sessionLogger().Error("command failed", "error", err)
	}

	if cerr := closeSession(context.Background()); cerr != nil {
		sessionLogger().Warn("failed to flush telemetry", "error", cerr)
	}
	return err
}

// initConfig layers .env, environment, the config file and flags on the global viper.
func initConfig() error {
	if err := config.LoadDotEnv(""); err != nil {
		return err
	}
	if err := config.Bind(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	return bindFlags()
}

// flagKeys maps config keys to the persistent flags overriding them.
var flagKeys = map[string]string{
	"url":           "url",
	"api_key":       "api-key",
	"secret_token":  "secret-token",
	"download_dir":  "download-dir",
	"result_bucket": "result-bucket",
	"metrics_file":  "metrics-file",
	"otel_endpoint": "otel-endpoint",
	"debug":         "debug",
}

func bindFlags() error {
	for key, name := range flagKeys {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func sessionLogger() *slog.Logger {
	if current != nil {
		return current.log
	}
	return slog.Default()
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization cycle
	// (openSession -> initConfig -> bindFlags -> rootCmd).
	rootCmd.PersistentPreRunE = openSession

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.StringP("debug", "d", "", "log level: debug, info, warn, error or 0-3 (default info)")
	flags.String("url", "", "Jason API URL (default "+config.DefaultAPIURL+")")
	flags.String("api-key", "", "API key (env: JASON_API_KEY)")
	flags.String("secret-token", "", "user secret token (env: JASON_SECRET_TOKEN)")
	flags.String("download-dir", "", "directory for downloaded results (default: working directory)")
	flags.String("result-bucket", "", "S3 bucket finished result archives are copied to")
	flags.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.String("otel-endpoint", "", "OTLP gRPC collector address for traces")
}
