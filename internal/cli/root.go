// Package cli implements the handsoff commands.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/config"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

// NewRootCmd creates the handsoff root command with all subcommands.
func NewRootCmd(version string) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "handsoff",
		Short: "Alerts you when you touch your face",
		Long: `handsoff watches the webcam and plays a sound when you touch your face.

Train it with a few seconds of "not touching" and "touching" frames, then run
the classifier. Controls are available from the system tray and a local HTTP
API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: $"+config.EnvVar+", ./handsoff.yaml, ~/.handsoff/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(NewRunCmd(opts))
	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewHistoryCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))

	return cmd
}

// load resolves and loads the configuration, then configures logging.
func (o *options) load() (*config.Config, error) {
	cfg, path, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := setupLogging(logrus.StandardLogger(), cfg.Log); err != nil {
		return nil, err
	}

	if path != "" {
		log.WithField("path", path).Debug("config loaded")
	} else {
		log.Debug("no config file found, using defaults")
	}
	return cfg, nil
}
