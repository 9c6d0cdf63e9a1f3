package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whereabout/gate-ticketing/internal/adapters/crdb"
	mongoadapter "github.com/whereabout/gate-ticketing/internal/adapters/mongo"
	redisadapter "github.com/whereabout/gate-ticketing/internal/adapters/redis"
	"github.com/whereabout/gate-ticketing/internal/config"
	"github.com/whereabout/gate-ticketing/internal/gate"
	httphandler "github.com/whereabout/gate-ticketing/internal/http"
	"github.com/whereabout/gate-ticketing/internal/issuance"
	"github.com/whereabout/gate-ticketing/internal/observability"
	"github.com/whereabout/gate-ticketing/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	auditor := mongoadapter.NewScanAuditor(mongoClient.Database("whereabout"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	locks := redisadapter.NewClient(redisClient)
	idemp := redisadapter.NewIdempotency(redisClient, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(locks)

	issuer := issuance.NewService(repo, locks, logger)
	machine := gate.NewMachine(repo, auditor, logger)

	handlers := httphandler.NewHandlers(repo, issuer, machine, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, cfg.StationKey)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.ListenAddr).Info("API listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
