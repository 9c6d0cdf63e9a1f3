package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/whereabout/gate-ticketing/internal/adapters/rabbit"
	"github.com/whereabout/gate-ticketing/internal/config"
	"github.com/whereabout/gate-ticketing/internal/observability"
)

// board keeps a live headcount per event from gate transitions. Counts start
// at zero on boot; the board shows deltas since it connected, which is what a
// venue display needs during an event.
type board struct {
	mu     sync.Mutex
	inside map[uuid.UUID]int
	logger observability.Logger
}

func (b *board) apply(routingKey string, payload []byte) {
	var msg struct {
		EventID uuid.UUID `json:"event_id"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.WithError(err).Warn("unparseable gate event")
		return
	}

	b.mu.Lock()
	switch routingKey {
	case "gate.entered":
		b.inside[msg.EventID]++
	case "gate.exited":
		if b.inside[msg.EventID] > 0 {
			b.inside[msg.EventID]--
		}
	}
	count := b.inside[msg.EventID]
	b.mu.Unlock()

	b.logger.WithField("event_id", msg.EventID).
		WithField("inside", count).
		Info("occupancy updated")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "board.occupancy")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	b := &board{inside: make(map[uuid.UUID]int), logger: logger}

	go func() {
		for d := range deliveries {
			b.apply(d.RoutingKey, d.Body)
			d.Ack(false)
		}
	}()
	logger.Info("Occupancy board started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown occupancy board")
}
