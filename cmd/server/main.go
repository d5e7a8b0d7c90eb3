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

	"librarian/internal/api"
	"librarian/internal/database"
	"librarian/pkg/factory"
)

func main() {
	appFactory, err := factory.NewFactory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "application could not be initialised: %v\n", err)
		os.Exit(1)
	}
	defer appFactory.Close()

	log := appFactory.GetLogger()
	cfg := appFactory.GetConfig()

	log.Info("Starting application", map[string]interface{}{"env": cfg.AppEnv})

	migrationService := database.NewMigrationService(appFactory.GetDB(), log)
	if err := migrationService.RunMigrations(context.Background()); err != nil {
		log.Fatal("Migrations could not be applied", map[string]interface{}{"error": err.Error()})
	}

	if err := appFactory.GetWarmUpManager().Run(context.Background()); err != nil {
		log.Warn("Starting with a cold cache", map[string]interface{}{"error": err.Error()})
	}

	userService := appFactory.GetUserService()
	handler := api.NewRouter(api.Handlers{
		Users:     api.NewUserHandler(userService, log),
		Books:     api.NewBookHandler(appFactory.GetBookService(), log),
		Borrows:   api.NewBorrowHandler(appFactory.GetBorrowService(), log),
		Penalties: api.NewPenaltyHandler(appFactory.GetPenaltyService(), log),
		AuditLogs: api.NewAuditLogHandler(appFactory.GetAuditLogService(), log),
		Cache:     api.NewCacheHandler(appFactory.GetCacheManager(), appFactory.GetWarmUpManager(), log),
		Health:    api.NewHealthHandler(appFactory.GetDB(), appFactory.GetCache(), log),
	}, userService, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"port": cfg.Server.Port})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server", map[string]interface{}{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", map[string]interface{}{"error": err.Error()})
		return
	}

	log.Info("Server stopped", map[string]interface{}{})
}
