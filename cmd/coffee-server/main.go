package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/perkhub/coffee-shop-backend/internal/api"
	"github.com/perkhub/coffee-shop-backend/internal/api/handlers"
	"github.com/perkhub/coffee-shop-backend/internal/auth"
	"github.com/perkhub/coffee-shop-backend/internal/events"
	"github.com/perkhub/coffee-shop-backend/internal/repository"
	"github.com/perkhub/coffee-shop-backend/internal/rules"
	"github.com/perkhub/coffee-shop-backend/internal/service"
	"github.com/perkhub/coffee-shop-backend/pkg/db"
)

func main() {
	addr := pflag.String("addr", envOr("HTTP_ADDR", ":8080"), "listen address")
	kafkaBrokers := pflag.String("kafka-brokers", os.Getenv("KAFKA_BROKERS"), "comma-separated Kafka broker list; empty disables events")
	skipSeed := pflag.Bool("skip-seed", false, "skip seeding the menu on startup")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	conn, err := db.NewPostgresConnection(db.LoadPostgresConfig())
	if err != nil {
		slog.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx := context.Background()
	if err := db.EnsureSchema(ctx, conn); err != nil {
		slog.Error("schema bootstrap", "error", err)
		os.Exit(1)
	}
	if !*skipSeed {
		if err := db.Seed(ctx, conn); err != nil {
			slog.Error("seed", "error", err)
			os.Exit(1)
		}
	}

	engine := rules.NewEngine(conn)
	if err := engine.WarmCache(ctx); err != nil {
		slog.Warn("rule cache warm failed, will retry lazily", "error", err)
	}

	var publisher *events.Publisher
	if *kafkaBrokers != "" {
		publisher = events.NewPublisher(strings.Split(*kafkaBrokers, ","))
		defer publisher.Close()
	}

	tokens := auth.NewTokenService([]byte(jwtSecret))
	authService := service.NewAuthService(
		repository.NewUserRepo(conn), repository.NewTokenRepo(conn), tokens)
	menuService := service.NewMenuService(repository.NewCoffeeRepo(conn))
	orderService := service.NewOrderService(
		repository.NewOrderRepo(conn), repository.NewCoffeeRepo(conn), engine, publisher)
	reviewService := service.NewReviewService(
		repository.NewReviewRepo(conn), repository.NewCoffeeRepo(conn))

	router := api.NewRouter(api.Deps{
		Tokens:  tokens,
		Auth:    authService,
		Menu:    menuService,
		Orders:  orderService,
		Reviews: reviewService,
		Rules:   handlers.NewRulesHandler(engine, repository.NewRulesAdminRepo(conn)),
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	slog.Info("starting coffee-server", "addr", *addr, "kafka", *kafkaBrokers != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("listen", "error", err)
		os.Exit(1)
	}

	<-idleConnsClosed
	slog.Info("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
