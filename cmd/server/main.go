package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notely-server/internal/config"
	"notely-server/internal/handler"
	"notely-server/internal/identity"
	"notely-server/internal/logging"
	"notely-server/internal/repository"
	"notely-server/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging, cfg.IsProduction(), os.Stdout)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := repository.Open(startCtx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	resolver, err := identity.New(startCtx, cfg.Identity)
	if err != nil {
		logger.Error("failed to build identity resolver", "provider", cfg.Identity.Provider, "error", err)
		os.Exit(1)
	}

	userService := service.NewUserService(store.Users())
	noteService := service.NewNoteService(store.Notes())

	r := handler.NewRouter(handler.Deps{
		Notes:    noteService,
		Users:    userService,
		Resolver: resolver,
		Store:    store,
		Config:   cfg,
		Logger:   logger,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting notely server",
			"addr", addr,
			"env", cfg.Server.Env,
			"db_driver", cfg.Database.Driver,
			"identity_provider", cfg.Identity.Provider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped gracefully")
}
