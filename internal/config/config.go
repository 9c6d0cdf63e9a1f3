package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN      string
	MongoURI   string
	RedisAddr  string
	RabbitURL  string
	ListenAddr string

	// Gate stations authenticate with a shared key; scanning is staff-only.
	StationKey string
	StationID  string
	CameraURL  string

	ScanInterval   time.Duration
	ScanCooldown   time.Duration
	DismissAfter   time.Duration
	IdempotencyTTL time.Duration

	OTLPEndpoint string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8080"
	}

	return &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		ListenAddr:     listen,
		StationKey:     os.Getenv("STATION_KEY"),
		StationID:      os.Getenv("STATION_ID"),
		CameraURL:      os.Getenv("CAMERA_URL"),
		ScanInterval:   duration("SCAN_INTERVAL", 33*time.Millisecond),
		ScanCooldown:   duration("SCAN_COOLDOWN", 1500*time.Millisecond),
		DismissAfter:   duration("DISMISS_AFTER", 3500*time.Millisecond),
		IdempotencyTTL: duration("IDEMPOTENCY_TTL", time.Hour),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func duration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
