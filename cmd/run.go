// cmd/run.go
package cmd

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/observability"
	"github.com/xkilldash9x/zonecheck/internal/runner"
)

// newRunCmd creates the `run` command. Its flags are bound to viper keys so
// they override the config file and the environment.
func newRunCmd(v *viper.Viper, opts options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the polygon workflow once and prints the verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			logger := loggerFrom(ctx)
			if cfg == nil || logger == nil {
				return errors.New("configuration was not initialized")
			}
			defer observability.Sync(logger)

			var ropts []runner.Option
			if opts.launcher != nil {
				ropts = append(ropts, runner.WithLauncher(opts.launcher))
			}
			r, err := runner.New(cfg, logger, ropts...)
			if err != nil {
				return err
			}

			logger.Info("Starting run.",
				zap.String("base_url", cfg.App.BaseURL),
				zap.String("driver", cfg.Browser.Driver),
				zap.String("engine", cfg.Browser.Engine),
				zap.Bool("headless", cfg.Browser.Headless),
			)
			verdict, err := r.Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case "json":
				if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out).Encode(verdict); err != nil {
					return fmt.Errorf("failed to encode verdict: %w", err)
				}
			default:
				fmt.Fprintln(out, verdict.String())
				for _, a := range verdict.Artifacts {
					fmt.Fprintf(out, "  artifact: %s\n", a)
				}
			}
			if !verdict.Passed {
				if ctx.Err() != nil {
					return fmt.Errorf("run interrupted: %w", ctx.Err())
				}
				return ErrScenarioFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "text", "verdict format: text or json")
	flags.String("base-url", "", "base URL of the admin console")
	flags.String("driver", "", "browser driver: chromedp or playwright")
	flags.String("engine", "", "browser engine (playwright only): chromium, firefox or webkit")
	flags.Bool("headless", false, "run the browser without a window")
	flags.Duration("slow-mo", 0, "delay between browser actions")

	for key, flag := range map[string]string{
		"app.base_url":     "base-url",
		"browser.driver":   "driver",
		"browser.engine":   "engine",
		"browser.headless": "headless",
		"browser.slow_mo":  "slow-mo",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}
