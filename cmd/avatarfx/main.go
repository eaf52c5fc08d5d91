// Command avatarfx runs the avatar effects pipelines from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/opd-ai/avatarfx/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set at build time
var version = "dev"

// options holds flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	preset     string
	logger     *logrus.Logger
}

// loadConfig reads the configuration and applies the log level to both
// the CLI logger and the package-level logger used by the pipelines.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.preset != "" {
		cfg.Preset = o.preset
	}

	level := cfg.Level()
	o.logger.SetLevel(level)
	logrus.SetLevel(level)
	return cfg, nil
}

// loadPreset returns the preset named by the config, or nil.
func loadPreset(cfg *config.Config) (*config.Preset, error) {
	if cfg.Preset == "" {
		return nil, nil
	}
	return config.LoadPreset(cfg.Preset)
}

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	opts := &options{logger: logger}

	root := &cobra.Command{
		Use:   "avatarfx",
		Short: "Avatar expression, beauty and voice effects",
		Long: `avatarfx drives a 2D/3D avatar from face-tracker expressions and applies
real-time beauty filtering to camera frames and voice changing to audio.

Use 'avatarfx [command] --help' for more information.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $HOME/.avatarfx/avatarfx.yaml or ./avatarfx.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.preset, "preset", "", "YAML settings preset applied on top of the config")

	root.AddCommand(
		newVoiceCmd(opts),
		newBeautyCmd(opts),
		newBlendCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := newRootCmd(logger).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
