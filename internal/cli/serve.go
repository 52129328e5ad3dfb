package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification HTTP API",
	Long: `Serve exposes the verification service over HTTP:

  GET  /api/health          liveness probe
  GET  /api/verify/status   dependency report
  POST /api/verify          classify {"text": "...", "type": "text|url"}

The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		svc, err := buildService(ctx, cfg, logger)
		if err != nil {
			return err
		}

		limits := server.Limits{}
		if cfg.RateLimit.Enabled {
			limits = server.Limits{
				GlobalRequests: cfg.RateLimit.GlobalRequests,
				GlobalWindow:   time.Duration(cfg.RateLimit.GlobalWindowSecs) * time.Second,
				VerifyRequests: cfg.RateLimit.VerifyRequests,
				VerifyWindow:   time.Duration(cfg.RateLimit.VerifyWindowSecs) * time.Second,
			}
		}

		srv := server.New(svc, server.Options{
			Addr:            cfg.Server.Addr(),
			Mode:            cfg.Server.Mode,
			CORSOrigins:     cfg.Server.CORSOrigins,
			Limits:          limits,
			ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second,
		}, logger)

		logger.Info("starting antihoax",
			zap.String("version", Version),
			zap.String("addr", cfg.Server.Addr()),
			zap.Bool("ai_enabled", cfg.AI.Enabled),
			zap.String("ai_provider", cfg.AI.Provider),
			zap.Bool("cache_enabled", cfg.Cache.Enabled),
			zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		)

		if err := srv.Run(ctx); err != nil {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
