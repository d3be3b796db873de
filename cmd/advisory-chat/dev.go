package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumen-advisory/advisory-chat/internal/config"
	"github.com/lumen-advisory/advisory-chat/internal/devserver"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
)

func newDevCmd() *cobra.Command {
	var chunkDelay time.Duration

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the local advisory backend emulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			log, err := logger.NewDevelopment()
			if err != nil {
				return err
			}
			defer log.Sync()

			srv := devserver.New(devserver.Config{
				JWTSecret:         cfg.DevJWTSecret,
				ChunkDelay:        chunkDelay,
				RateLimitRequests: cfg.RateLimitRequests,
				RateLimitWindow:   cfg.RateLimitWindow,
			}, log)

			server := &http.Server{
				Addr:        ":" + cfg.DevServerPort,
				Handler:     srv.Handler(),
				ReadTimeout: 30 * time.Second,
				IdleTimeout: 120 * time.Second,
			}

			go func() {
				log.Info("dev server listening", zap.String("port", cfg.DevServerPort))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("server error", zap.Error(err))
					os.Exit(1)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info("shutting down dev server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().DurationVar(&chunkDelay, "chunk-delay", 150*time.Millisecond, "delay between streamed chunks")
	return cmd
}
