package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whereabout/gate-ticketing/internal/adapters/crdb"
	mongoadapter "github.com/whereabout/gate-ticketing/internal/adapters/mongo"
	"github.com/whereabout/gate-ticketing/internal/config"
	"github.com/whereabout/gate-ticketing/internal/gate"
	"github.com/whereabout/gate-ticketing/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CameraURL == "" {
		log.Fatal("CAMERA_URL is required")
	}
	if cfg.StationID == "" {
		log.Fatal("STATION_ID is required")
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger().WithField("station_id", cfg.StationID)

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

	machine := gate.NewMachine(repo, auditor, logger)
	feedback := gate.NewFeedbackController(&gate.ConsolePresenter{W: os.Stdout}, cfg.DismissAfter)

	sink := func(ctx context.Context, payload string) {
		outcome := machine.ProcessScan(ctx, payload, cfg.StationID)
		feedback.Announce(outcome)
	}

	loop := gate.NewCaptureLoop(
		gate.NewMJPEGSource(cfg.CameraURL),
		gate.NewQRDetector(),
		sink,
		cfg.ScanInterval,
		cfg.ScanCooldown,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loop.Start(ctx); err != nil {
		log.Fatalf("failed to start capture: %v", err)
	}
	logger.WithField("camera", cfg.CameraURL).Info("Gate station scanning")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutdown gate station")
	loop.Stop()
}
