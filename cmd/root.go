// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/observability"
)

type contextKey string

const (
	configKey contextKey = "config"
	loggerKey contextKey = "logger"
)

// ErrScenarioFailed is returned when the run completed with a failing verdict.
// The verdict itself has already been printed.
var ErrScenarioFailed = errors.New("scenario failed")

// options are the seams tests use to replace the console and the browser.
type options struct {
	console  zapcore.WriteSyncer
	launcher browser.Launcher
}

// NewRootCommand creates a fresh command tree. Each call is independent, so
// flags from one execution never leak into the next.
func NewRootCommand() *cobra.Command {
	return newRootCmd(options{console: zapcore.Lock(os.Stdout)})
}

func newRootCmd(opts options) *cobra.Command {
	var cfgFile string
	v := viper.New()
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:           "zonecheck",
		Short:         "zonecheck verifies the delivery polygon workflow of the store admin console.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger, opts.console)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger.Debug("Starting zonecheck.", zap.String("version", Version))

			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, loggerKey, logger)
			cmd.SetContext(ctx)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newRunCmd(v, opts), newVersionCmd())
	return cmd
}

// Execute runs the command tree against os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	return exitCode(NewRootCommand().ExecuteContext(ctx))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrScenarioFailed):
		return 1
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Aborted.")
		return 130
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

// initializeConfig reads the config file and environment into v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ZONECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func configFrom(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey).(*config.Config)
	return cfg
}

func loggerFrom(ctx context.Context) *zap.Logger {
	logger, _ := ctx.Value(loggerKey).(*zap.Logger)
	return logger
}
