package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
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

const stationKey = "integration-station-key"

const schema = `
	CREATE DATABASE IF NOT EXISTS whereabout;
	CREATE TABLE IF NOT EXISTS whereabout.events (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		capacity INT NOT NULL DEFAULT 0,
		attending INT NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS whereabout.event_registrations (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL,
		user_id UUID NOT NULL,
		registered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (event_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS whereabout.tickets (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL,
		user_id UUID NOT NULL,
		code TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('valid', 'used', 'invalid')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (event_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS whereabout.ticket_entries (
		id UUID PRIMARY KEY,
		ticket_id UUID NOT NULL,
		entered_at TIMESTAMPTZ NOT NULL,
		exited_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS whereabout.outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED')),
		dedupe_key TEXT NOT NULL UNIQUE
	);
`

func TestIntegration_IssueAndGateToggle(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongosh", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	crdbDSN, err := crdbContainer.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		DBDSN:          crdbDSN + "/whereabout?sslmode=disable",
		MongoURI:       "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:      redisHost + ":" + redisPort.Port(),
		StationKey:     stationKey,
		IdempotencyTTL: time.Hour,
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)

	logger := observability.NewLogger()
	auditor := mongoadapter.NewScanAuditor(mongoClient.Database("whereabout"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	locks := redisadapter.NewClient(redisClient)
	idemp := redisadapter.NewIdempotency(redisClient, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(locks)

	issuer := issuance.NewService(repo, locks, logger)
	machine := gate.NewMachine(repo, auditor, logger)

	handlers := httphandler.NewHandlers(repo, issuer, machine, idemp)
	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, rl, cfg.StationKey))
	defer srv.Close()

	// Seed one event with a confirmed registration.
	eventID := uuid.New()
	userID := uuid.New()
	if _, err := pool.Exec(ctx, `
		INSERT INTO events (id, title, starts_at, location, capacity, attending)
		VALUES ($1, 'Spring Fest', now() + INTERVAL '1 hour', 'Main Hall', 500, 1)
	`, eventID); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO event_registrations (id, event_id, user_id)
		VALUES ($1, $2, $3)
	`, uuid.New(), eventID, userID); err != nil {
		t.Fatal(err)
	}

	// Listing the attendee's tickets lazily issues one per registration.
	resp, err := http.Get(srv.URL + "/v1/attendees/" + userID.String() + "/tickets")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tickets: expected 200, got %d", resp.StatusCode)
	}
	var tickets []struct {
		ID     uuid.UUID `json:"id"`
		Code   string    `json:"code"`
		Status string    `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&tickets)
	resp.Body.Close()
	if len(tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(tickets))
	}
	if tickets[0].Status != "valid" {
		t.Fatalf("expected valid ticket, got %s", tickets[0].Status)
	}

	// The QR endpoint renders the code as a PNG.
	resp, err = http.Get(srv.URL + "/v1/tickets/" + tickets[0].ID.String() + "/qr.png")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("qr: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("qr: expected image/png, got %s", ct)
	}
	resp.Body.Close()

	// First scan enters, second scan on the same code exits.
	scan := func(code string) (status int, body struct {
		EntryStatus string `json:"entry_status"`
		Message     string `json:"message"`
	}) {
		payload, _ := json.Marshal(map[string]string{
			"code":       code,
			"station_id": "gate-1",
		})
		req, _ := http.NewRequest("POST", srv.URL+"/v1/gate/scans", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Station-Key", stationKey)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body
	}

	status, first := scan(tickets[0].Code)
	if status != http.StatusOK || first.EntryStatus != "entered" {
		t.Fatalf("first scan: expected entered, got %d %+v", status, first)
	}
	if first.Message != "Entry confirmed" {
		t.Errorf("first scan message: %q", first.Message)
	}

	status, second := scan(tickets[0].Code)
	if status != http.StatusOK || second.EntryStatus != "exited" {
		t.Fatalf("second scan: expected exited, got %d %+v", status, second)
	}
	if second.Message != "Exit confirmed" {
		t.Errorf("second scan message: %q", second.Message)
	}

	status, garbage := scan("not-a-ticket-code")
	if status != http.StatusOK || garbage.EntryStatus != "error" {
		t.Fatalf("garbage scan: expected error outcome, got %d %+v", status, garbage)
	}
	if garbage.Message != "Invalid QR format" {
		t.Errorf("garbage scan message: %q", garbage.Message)
	}

	// A scan without the station key never reaches the machine.
	payload, _ := json.Marshal(map[string]string{"code": tickets[0].Code})
	req, _ := http.NewRequest("POST", srv.URL+"/v1/gate/scans", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	unauth, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	unauth.Body.Close()
	if unauth.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without station key, got %d", unauth.StatusCode)
	}

	// Every scan, accepted or not, leaves an audit document.
	count, err := mongoClient.Database("whereabout").Collection("scan_audits").
		CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 audit documents, got %d", count)
	}

	// Both gate transitions landed in the outbox.
	pending, err := repo.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 outbox records, got %d", len(pending))
	}
}
