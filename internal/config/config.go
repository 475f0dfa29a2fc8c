package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Storage.
	DBDriver string
	DBDSN    string

	// Offline artifacts loaded at startup.
	RegistryPath string
	ScalersPath  string
	ModelPath    string

	SnapshotRefreshInterval time.Duration
	ClusterSeed             uint64

	// Kafka ingestion and cluster publication.
	IngestEnabled      bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration

	// Mapbox geocoding for cities missing coordinates.
	MapboxToken   string
	MapboxEnabled bool
	MapboxTimeout time.Duration
}

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	refresh, err := time.ParseDuration(sharedcfg.EnvOrDefault("SNAPSHOT_REFRESH_INTERVAL", "1m"))
	if err != nil || refresh < 0 {
		return nil, errors.New("invalid SNAPSHOT_REFRESH_INTERVAL")
	}

	ingestEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("INGEST_ENABLED", "false"))
	if err != nil {
		return nil, errors.New("invalid INGEST_ENABLED")
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("CLUSTER_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid CLUSTER_SEED")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     parseList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),

		DBDriver: sharedcfg.EnvOrDefault("DB_DRIVER", DriverSQLite),
		DBDSN:    sharedcfg.EnvOrDefault("DB_DSN", "aq.db"),

		RegistryPath: sharedcfg.EnvOrDefault("REGISTRY_PATH", "data/entity_metadata.json"),
		ScalersPath:  sharedcfg.EnvOrDefault("SCALERS_PATH", "data/scalers.json"),
		ModelPath:    sharedcfg.EnvOrDefault("MODEL_PATH", "data/model.json"),

		SnapshotRefreshInterval: refresh,
		ClusterSeed:             seed,

		IngestEnabled:      ingestEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "aq-hourly-readings"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "aq-city-clusters"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "aq-forecast"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		MapboxToken:   mapboxToken,
		MapboxEnabled: mapboxEnabled,
		MapboxTimeout: mapboxTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.IngestEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
