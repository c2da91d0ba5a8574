package server

import (
	"log"
	"os"
	"strconv"

	"homegraph/pkg/config"
	"homegraph/pkg/history"
	"homegraph/pkg/ingest"
	"homegraph/pkg/refresh"
	"homegraph/pkg/storage"
	"homegraph/pkg/storage/badger"
)

// LoadConfig loads the yaml config file and applies environment overrides.
// The config path itself comes from HOMEGRAPH_CONFIG.
func LoadConfig() (config.File, error) {
	path := os.Getenv("HOMEGRAPH_CONFIG")
	if path == "" {
		path = "./homegraph.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if dir := os.Getenv("HOMEGRAPH_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	cfg.MaxMemoryMB = getEnvInt64("HOMEGRAPH_MAX_MEMORY_MB", cfg.MaxMemoryMB)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return cfg, err
	}

	log.Printf("Config loaded: %d entities, %vh window, %v points/hour",
		len(cfg.Widget.Entities), cfg.Widget.WindowHours, cfg.Widget.PointsPerHour)
	return cfg, nil
}

// InitializeStorage opens BadgerDB storage with the configured limits.
func InitializeStorage(cfg config.File) (storage.Storage, error) {
	log.Println("Initializing BadgerDB event store with Snappy compression...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB event store initialized")
	return store, nil
}

// InitializeHandlers creates the ingest handler, history fetcher, WebSocket
// hub and refresher.
func InitializeHandlers(store storage.Storage, cfg config.File) (
	*ingest.Handler,
	*history.Fetcher,
	*ingest.SeriesHub,
	*refresh.Refresher,
) {
	ingestHandler := ingest.NewHandler(store)
	log.Println("Ingest handler created")

	fetcher := history.NewFetcher(store)
	log.Println("History fetcher created")

	hub := ingest.NewSeriesHub()
	log.Println("WebSocket hub created for live series updates")

	refresher := refresh.New(fetcher, hub, cfg.Widget)
	log.Printf("Refresher ready (runs every %v)", config.RefreshInterval)

	return ingestHandler, fetcher, hub, refresher
}

// InitializeMQTT starts the MQTT state source when a broker is configured.
// Returns nil when MQTT is disabled.
func InitializeMQTT(cfg config.File, store storage.Storage) (*ingest.MQTTSource, error) {
	if cfg.MQTT.BrokerURL == "" {
		log.Println("MQTT disabled (no broker_url configured)")
		return nil, nil
	}

	src, err := ingest.NewMQTTSource(ingest.MQTTConfig{
		BrokerURL:   cfg.MQTT.BrokerURL,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		ClientID:    cfg.MQTT.ClientID,
	}, store)
	if err != nil {
		return nil, err
	}
	log.Printf("MQTT state source connected to %s", cfg.MQTT.BrokerURL)
	return src, nil
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}
