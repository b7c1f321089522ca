package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maltedev/rewe-discounts/internal/database"
)

func newRelayCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Publishes stored snapshot events from the outbox to the redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Cache.Enabled() {
				return fmt.Errorf("relay needs redis, set REDIS_ADDR or cache.redis_addr in the config file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			rdb := a.redisClient()
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}

			relay := database.NewRelay(
				database.NewOutboxRepository(db, a.cfg.Relay.Stream),
				rdb,
				a.logger,
				database.RelayConfig{
					PollInterval: a.cfg.Relay.PollInterval,
					BatchSize:    a.cfg.Relay.BatchSize,
				},
			)

			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
