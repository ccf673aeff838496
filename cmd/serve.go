package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"attendance/internal/api"
	"attendance/internal/app"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API and autosave until interrupted.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Address to listen on, overrides server.listen."},
		},
		Action: withApp(func(c *cli.Context, a *app.App) error {
			addr := a.Config.ListenAddr
			if c.IsSet("listen") {
				addr = c.String("listen")
			}

			if a.Config.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.ContextWithFallback = true
			router.Use(gin.Recovery(), api.RequestLogger(a.Logger))
			if len(a.Config.CORSOrigins) > 0 {
				corsConfig := cors.DefaultConfig()
				corsConfig.AllowOrigins = a.Config.CORSOrigins
				corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
				corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
				router.Use(cors.New(corsConfig))
			}
			api.NewHTTPHandler(api.HTTPOptions{
				App:    a,
				Router: router.Group("/api/v1"),
			})

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			autosaved := a.StartAutosave(ctx, a.Config.AutosaveInterval)

			srv := &http.Server{Addr: addr, Handler: router}
			serveErr := make(chan error, 1)
			go func() {
				a.Logger.Info("Serving API.", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			var runErr error
			select {
			case <-ctx.Done():
			case err := <-serveErr:
				runErr = fmt.Errorf("server failed: %w", err)
				stop()
			}

			a.Logger.Info("Shutting down.")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Warn("Graceful shutdown failed", "error", err)
			}
			<-autosaved
			return runErr
		}),
	}
}
