// Package config handles loading and parsing application configuration.
// The config file path comes from (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// A .env file in the working directory, when present, is loaded into the
// environment first, so local overrides work the same way as in a
// container.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Audit sinks.
const (
	AuditStore = "store"
	AuditKafka = "kafka"
	AuditNone  = "none"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	Storage    Storage    `yaml:"storage"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Import     Import     `yaml:"import"`
	Audit      Audit      `yaml:"audit"`
	Revalidate Revalidate `yaml:"revalidate"`
}

// Storage selects and configures the database backend.
type Storage struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	// Path is the SQLite database file.
	Path string `yaml:"path" env:"STORAGE_PATH"`
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr         string        `yaml:"address"       env:"HTTP_SERVER_ADDR" env-required:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"HTTP_READ_TIMEOUT"  env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"HTTP_IDLE_TIMEOUT"  env-default:"60s"`
}

// Import tunes the CSV importer.
type Import struct {
	// MaxUploadBytes caps the uploaded file size.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"IMPORT_MAX_UPLOAD_BYTES" env-default:"10485760"`
	// MaxReportedInvalid is how many invalid rows the result message quotes.
	MaxReportedInvalid int `yaml:"max_reported_invalid" env:"IMPORT_MAX_REPORTED_INVALID" env-default:"5"`
}

// Audit selects where audit entries go.
type Audit struct {
	Sink          string        `yaml:"sink"           env:"AUDIT_SINK"           env-default:"store"`
	KafkaBroker   string        `yaml:"kafka_broker"   env:"KAFKA_BROKER"`
	KafkaTopic    string        `yaml:"kafka_topic"    env:"KAFKA_AUDIT_TOPIC"    env-default:"student-base.audit"`
	KafkaUsername string        `yaml:"kafka_username" env:"KAFKA_USERNAME"`
	KafkaPassword string        `yaml:"kafka_password" env:"KAFKA_PASSWORD"`
	WriteTimeout  time.Duration `yaml:"write_timeout"  env:"KAFKA_WRITE_TIMEOUT"  env-default:"5s"`
}

// Revalidate configures the admin UI cache hook. An empty URL disables it.
type Revalidate struct {
	URL     string        `yaml:"url"     env:"REVALIDATE_URL"`
	Secret  string        `yaml:"secret"  env:"REVALIDATE_SECRET"`
	Path    string        `yaml:"path"    env:"REVALIDATE_PATH"    env-default:"/admin/students"`
	Timeout time.Duration `yaml:"timeout" env:"REVALIDATE_TIMEOUT" env-default:"5s"`
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Audit.Sink {
	case AuditStore, AuditNone:
	case AuditKafka:
		if c.Audit.KafkaBroker == "" {
			return errors.New("audit.kafka_broker is required for the kafka sink")
		}
	default:
		return fmt.Errorf("unknown audit sink %q", c.Audit.Sink)
	}

	if c.Import.MaxUploadBytes <= 0 {
		return errors.New("import.max_upload_bytes must be positive")
	}
	return nil
}

// MustLoad reads, validates, and returns the application config.
// It exits the process on any error.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("cannot load .env: %s", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}
