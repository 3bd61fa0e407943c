package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config carries environment-derived settings only. Connections are opened
// by the caller and passed around as explicit handles.
type Config struct {
	Port        string
	MongoURI    string
	DBName      string
	ChunkSize   int
	CORSOrigins []string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	EmailAPIURL string
	EmailAPIKey string
	EmailFrom   string

	SweepInterval time.Duration
	SweepGrace    time.Duration

	LogLevel string
}

// Load reads .env when present and builds the Config from the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("MONGO_DB", "eventmanager"),
		ChunkSize:   getEnvInt("CHUNK_SIZE_BYTES", 0),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bookings"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "booking-confirmations"),

		EmailAPIURL: os.Getenv("EMAIL_API_URL"),
		EmailAPIKey: os.Getenv("EMAIL_API_KEY"),
		EmailFrom:   os.Getenv("EMAIL_FROM"),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		SweepGrace:    getEnvDuration("SWEEP_GRACE", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ConnectMongo opens and pings a client for the configured deployment.
func ConnectMongo(ctx context.Context, cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
