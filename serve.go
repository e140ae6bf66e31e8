package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AnTengye/contractwatch/handler"
	"github.com/AnTengye/contractwatch/middleware"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger("/health"))
	router.Use(middleware.CORS())
	router.Use(middleware.NoCache())
	router.Use(middleware.RateLimit(a.cfg.Server.RateLimitPerMin, time.Minute))
	router.MaxMultipartMemory = a.cfg.Upload.MaxBytes + 1<<20

	h := &handler.Handlers{
		Contracts: handler.NewContractHandler(a.store, a.runner, a.detector, a.calculator, a.cfg.Upload.MaxBytes),
		Alerts:    handler.NewAlertHandler(a.store),
		Dashboard: handler.NewDashboardHandler(a.store, a.model),
	}
	if a.mineru != nil {
		h.Callback = handler.NewCallbackHandler(a.mineru)
	}
	h.Register(router)
	return router
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(a),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Analyses already started run to completion
	a.runner.Wait()
	slog.Info("server exited gracefully")
	return nil
}
