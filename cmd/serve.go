package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cafemanager/cache"
	"cafemanager/config"
	"cafemanager/database"
	"cafemanager/metrics"
	"cafemanager/route"
	"cafemanager/storage"
	"cafemanager/utils"
	"cafemanager/ws"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, db, err := boot()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd, log), os.Interrupt, syscall.SIGTERM)
		defer stop()

		menuCache, closeCache := openCache(ctx, cfg, log)
		defer closeCache()

		disk, err := storage.New(ctx, cfg)
		if err != nil {
			return err
		}

		hub := ws.NewTableHub(cfg.AllowedOrigins)
		go hub.Run(ctx)

		router := route.New(route.Deps{
			Config:  cfg,
			DB:      db,
			Logger:  log,
			Metrics: metrics.New(),
			Cache:   menuCache,
			Disk:    disk,
			Hub:     hub,
			Tokens:  utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL),
		})

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("db", cfg.DBDriver).Msg("starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// openCache connects to Redis when configured and falls back to no caching.
func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.MenuCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.Nop{}, func() {}
	}
	redisCache, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.MenuCacheTTL)
	if err != nil {
		log.Warn().Err(err).Msg("menu cache disabled")
		return cache.Nop{}, func() {}
	}
	return redisCache, func() { _ = redisCache.Close() }
}
