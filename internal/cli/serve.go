package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maltedev/rewe-discounts/internal/api"
	"github.com/maltedev/rewe-discounts/internal/database"
	"github.com/maltedev/rewe-discounts/internal/offers"
)

func newServeCommand(a *app) *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves markets and offers over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, cleanup := a.newClient(ctx)
			defer cleanup()

			var (
				store   offers.SnapshotStore
				backlog api.BacklogReporter
			)
			if a.cfg.Database.Enabled {
				db, err := a.openDatabase(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				store = a.snapshotRepository(db)
				backlog = database.NewOutboxRepository(db, a.cfg.Relay.Stream)
			}

			handlers := api.NewHandlers(client, offers.NewService(store, a.logger), backlog, strategy, a.logger)

			server := &http.Server{
				Addr:         net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port),
				Handler:      api.NewRouter(handlers, api.RouterOptions{Timeout: a.cfg.Server.WriteTimeout}),
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
			}

			go func() {
				<-ctx.Done()
				a.logger.Info("shutting down server...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("server shutdown failed", "error", err)
				}
			}()

			a.logger.Info("server starting", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			a.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", offers.StrategyAuto, "default strategy for market offers")
	return cmd
}
