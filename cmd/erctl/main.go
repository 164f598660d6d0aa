package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/erboard/backend/internal/bootstrap"
	"github.com/erboard/backend/internal/infrastructure/clients/typesense"
	"github.com/erboard/backend/internal/infrastructure/observability"
	"github.com/erboard/backend/pkg/config"
	apperrors "github.com/erboard/backend/pkg/errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "erctl",
		Short:         "Ingestion and indexing jobs for the ER bed-status service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "print summaries as JSON")

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(messagesCmd())
	rootCmd.AddCommand(reindexCmd())
	return rootCmd
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch real-time bed counts, stage them and merge into the current table",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			return withContainer(cmd, bootstrap.Options{Upstream: true}, func(ctx context.Context, c *bootstrap.Container) error {
				return repeat(ctx, interval, func(ctx context.Context) error {
					summary, err := c.Sync.RunCycle(ctx)
					if err != nil {
						return err
					}
					return report(cmd, summary)
				})
			})
		},
	}
	cmd.Flags().Duration("interval", 0, "repeat the cycle at this interval (e.g. 5m); 0 runs once")
	return cmd
}

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge the current staging snapshot without fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, bootstrap.Options{Upstream: true}, func(ctx context.Context, c *bootstrap.Container) error {
				summary, err := c.Sync.MergeOnly(ctx)
				if err != nil {
					return err
				}
				return report(cmd, summary)
			})
		},
	}
}

func messagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Fetch the newest notice of every facility",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			return withContainer(cmd, bootstrap.Options{Upstream: true}, func(ctx context.Context, c *bootstrap.Container) error {
				return repeat(ctx, interval, func(ctx context.Context) error {
					summary, err := c.Sync.SyncMessages(ctx)
					if err != nil {
						return err
					}
					return report(cmd, summary)
				})
			})
		},
	}
	cmd.Flags().Duration("interval", 0, "repeat at this interval; 0 runs once")
	return cmd
}

func reindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the facility search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetBool("reset")
			return withContainer(cmd, bootstrap.Options{Search: true}, func(ctx context.Context, c *bootstrap.Container) error {
				if c.Index == nil {
					return errors.New("typesense is not reachable")
				}
				if reset {
					if err := resetCollection(ctx, c.Typesense); err != nil {
						return err
					}
				}
				summary, err := c.Index.Reindex(ctx)
				if err != nil {
					return err
				}
				return report(cmd, summary)
			})
		},
	}
	cmd.Flags().Bool("reset", false, "drop and recreate the collection first")
	return cmd
}

// withContainer loads configuration, sets up logging and builds the
// dependencies for one command run. SIGINT and SIGTERM cancel ctx.
func withContainer(cmd *cobra.Command, opts bootstrap.Options, run func(ctx context.Context, c *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var hooks []zerolog.Hook
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		telemetry, err := observability.Setup(ctx, cfg.OTEL.ServiceName+"-erctl", cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			hooks = append(hooks, telemetry.LogHook)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = telemetry.Shutdown(shutdownCtx)
			}()
		}
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-erctl", cfg.Server.Environment, hooks...)

	metrics, err := observability.InitMetrics()
	if err != nil {
		return err
	}

	c, err := bootstrap.New(ctx, cfg, metrics, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := run(ctx, c); err != nil {
		log.Error().Err(err).Str("command", cmd.Name()).Msg("command failed")
		return err
	}
	return nil
}

// repeat runs fn once, or every interval until ctx is done. Inside a loop a
// failed run is logged and the next one still happens; a held lock means
// another runner is active.
func repeat(ctx context.Context, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			level := zerolog.ErrorLevel
			if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
				level = zerolog.WarnLevel
			}
			log.WithLevel(level).Err(err).Dur("next_in", interval).Msg("run failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func report(cmd *cobra.Command, summary interface{}) error {
	asJSON, _ := cmd.Root().PersistentFlags().GetBool("json")
	out := cmd.OutOrStdout()
	if asJSON {
		return json.NewEncoder(out).Encode(summary)
	}
	_, err := fmt.Fprintf(out, "%s: %+v\n", cmd.Name(), summary)
	return err
}

func resetCollection(ctx context.Context, client *typesense.Client) error {
	if _, err := client.Client().Collection(typesense.FacilitiesCollection).Delete(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to delete collection")
	}
	return client.InitSchema(ctx)
}
