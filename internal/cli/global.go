package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/kubev2v/vmware-inventory/internal/config"
	"github.com/kubev2v/vmware-inventory/pkg/log"
	"github.com/kubev2v/vmware-inventory/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalOptions are shared by every command that talks to an external system.
type GlobalOptions struct {
	ConfigFile  string
	Verbose     bool
	MetricsFile string

	Config *config.Config

	out    io.Writer
	logger *zap.Logger
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFile: os.Getenv(config.ConfigFileEnvKey),
		out:        os.Stdout,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path to a YAML or JSON file overlaying the environment configuration")
	fs.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Enable debug logging")
	fs.StringVar(&o.MetricsFile, "metrics-file", o.MetricsFile, "Write Prometheus metrics in textfile format to this path after the run")
}

// Complete loads the configuration and installs the process logger.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	if o.ConfigFile != "" && o.ConfigFile != os.Getenv(config.ConfigFileEnvKey) {
		if err := cfg.Overlay(o.ConfigFile); err != nil {
			return err
		}
	}
	o.Config = cfg

	lvl := log.ParseLevel(cfg.LogLevel)
	if o.Verbose {
		lvl = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	o.logger = log.InitLog(lvl, cfg.LogFormat)
	zap.ReplaceGlobals(o.logger)
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return nil
}

// Finish flushes the logger and writes the metrics file when one was requested.
// A metrics write failure never changes the outcome of the command.
func (o *GlobalOptions) Finish() {
	if o.MetricsFile != "" {
		if err := metrics.WriteTextfile(o.MetricsFile); err != nil {
			zap.S().Named("cli").Warnf("failed to write metrics to %s: %s", o.MetricsFile, err)
		}
	}
	if o.logger != nil {
		_ = o.logger.Sync()
	}
}
