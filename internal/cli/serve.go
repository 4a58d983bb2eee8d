package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpDelivery "github.com/fooddiscovery/backend/internal/delivery/http"
	"github.com/fooddiscovery/backend/internal/domain"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	Port string
}

func newServeCommand(rc *RootConfig) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flagChanged(cmd, "port") {
				rc.cfg.Server.Port = opts.Port
			}
			return runServe(cmd.Context(), rc)
		},
	}
	cmd.Flags().StringVar(&opts.Port, "port", "", "Listen port (overrides server.port)")
	return cmd
}

func runServe(ctx context.Context, rc *RootConfig) error {
	cfg := rc.cfg

	service, cleanup, err := buildService(cfg)
	defer cleanup()

	// A nil aggregator keeps the server up and answers search with 503
	var aggregator httpDelivery.Aggregator
	switch {
	case err == nil:
		aggregator = service
	case errors.Is(err, domain.ErrNoConnectors):
		log.Warn().Err(err).Msg("starting without search connectors")
	default:
		return err
	}

	router := httpDelivery.SetupRouter(cfg, httpDelivery.NewHandler(aggregator))
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("environment", cfg.Server.Environment).
			Str("version", version).
			Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
