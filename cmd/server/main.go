package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/C0lies/carbook/internal/auth"
	"github.com/C0lies/carbook/internal/config"
	"github.com/C0lies/carbook/internal/es"
	"github.com/C0lies/carbook/internal/events"
	"github.com/C0lies/carbook/internal/handlers"
	"github.com/C0lies/carbook/internal/logging"
	"github.com/C0lies/carbook/internal/middleware/authmw"
	"github.com/C0lies/carbook/internal/middleware/loggingmw"
	httpserver "github.com/C0lies/carbook/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"))

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	if configuration.ACCESS_SECRET == "" || configuration.REFRESH_SECRET == "" {
		log.Fatal("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}

	tokens := &auth.TokenService{
		DB:            db,
		AccessSecret:  []byte(configuration.ACCESS_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}

	producer := events.NewProducer([]string{configuration.KAFKA_ADDRESS})

	var searchHandler *handlers.SearchHandler
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			logger.Warn("elasticsearch unavailable, search disabled", "error", err)
		} else {
			searchHandler = &handlers.SearchHandler{ES: esClient, Index: "vehicle"}
		}
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:             db,
		AuthHandler:    &handlers.AuthHandler{Tokens: tokens, Producer: producer, Production: configuration.IsProduction()},
		UserHandler:    &handlers.UserHandler{DB: db, Producer: producer},
		VehicleHandler: &handlers.VehicleHandler{DB: db, Producer: producer},
		SearchHandler:  searchHandler,
		AuthMW:         &authmw.Middleware{Tokens: tokens},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
