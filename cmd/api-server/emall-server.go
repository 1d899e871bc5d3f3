package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emall/db"
	"emall/db/migrations"
	"emall/internal/config"
	"emall/internal/format"
	"emall/internal/handlers"
	"emall/internal/logger"
	"emall/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	seedPath := flag.String("seed", "", "JSON-файл с закупками для загрузки в базу")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.RequireDB(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	format.Location = cfg.Location

	dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
	if err != nil {
		log.Fatal("Cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		log.Fatal("Migrations failed", zap.Error(err))
	}

	store := db.NewStorage(dbConn)

	if n, err := store.NormalizePending(context.Background()); err != nil {
		log.Error("Normalize procurements", zap.Error(err))
	} else if n > 0 {
		log.Info("Procurements normalized", zap.Int("rows", n))
	}

	if *seedPath != "" {
		n, err := seedFile(context.Background(), store, *seedPath)
		if err != nil {
			log.Fatal("Seed failed", zap.String("path", *seedPath), zap.Error(err))
		}
		log.Info("Seed loaded", zap.Int("procurements", n))
	}
	h := handlers.NewHandler(store, log.Named("handlers"))

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Username)
	r.Use(middleware.Logger(log.Named("http")))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CSRF)
	h.Routes(r)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("addr", cfg.ServerAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
}
