package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vizinsight/events"
	"vizinsight/handlers"
	"vizinsight/session"
	"vizinsight/surface"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = ":" + cfg.Port
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error().Err(err).Msg("close resources")
				}
			}()

			hub := events.NewHub(originChecker(cfg.AllowedOrigins))
			surfaces := surface.NewManager(cfg.SurfaceTTL, a.newMounter)

			deps := handlers.Deps{
				DB:           a.db,
				AI:           a.ai,
				Orchestrator: a.orchestrator(session.ContextProvider{}, hub),
				Surfaces:     surfaces,
				Counter:      a.counter,
				Hub:          hub,
				Links:        cfg.Links,
			}
			// a nil *SQLServerService must not become a non-nil Pinger
			if a.warehouse != nil {
				deps.Warehouse = a.warehouse
			}

			if zerologDebug(cfg.LogLevel) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           handlers.NewRouter(handlers.New(deps), cfg.AllowedOrigins),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				log.Info().Str("addr", addr).Msg("starting server")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return errors.Wrap(err, "listen")
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				log.Info().Msg("shutting down")
				// websocket connections are hijacked and not closed by Shutdown
				hub.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return errors.Wrap(err, "server shutdown")
				}
				surfaces.Shutdown()
				log.Info().Msg("server shutdown complete")
				return nil
			})
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	return cmd
}

func zerologDebug(level string) bool {
	return level == "debug" || level == "trace"
}

// originChecker mirrors the CORS policy for websocket upgrades.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
