// Package config loads runtime settings from the environment, reading a
// .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrNilPointer    = errors.New("nil pointer provided to config loader")
	ErrInvalidStore  = errors.New("invalid store configuration")
)

var dotenvOnce sync.Once

// Load fills v from environment variables according to its env tags.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// A missing .env file is fine.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is Load for settings the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreJSON     StoreKind = "json"
	StoreYAML     StoreKind = "yaml"
	StoreRedis    StoreKind = "redis"
	StorePostgres StoreKind = "postgres"
)

// Runtime holds the settings of a process driving entities through a graph.
type Runtime struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Service   string `env:"SERVICE_NAME" envDefault:"hfsm"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"`

	QueueSize int `env:"QUEUE_SIZE" envDefault:"64"`
	Entities  int `env:"ENTITIES" envDefault:"3"`

	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"200ms"`

	Store       Store  `envPrefix:"STORE_"`
	Redis       Redis
	DatabaseURL string `env:"DATABASE_URL"`
}

type Store struct {
	Kind StoreKind `env:"KIND" envDefault:"memory"`
	Dir  string    `env:"DIR" envDefault:"./snapshots"`
}

type Redis struct {
	URL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix  string        `env:"REDIS_KEY_PREFIX" envDefault:"hfsm:"`
	TTL        time.Duration `env:"REDIS_TTL" envDefault:"0s"`
	RetryCount int           `env:"REDIS_RETRY_COUNT" envDefault:"3"`
	RetryDelay time.Duration `env:"REDIS_RETRY_DELAY" envDefault:"500ms"`
}

// Validate checks settings that env tags cannot express.
func (r *Runtime) Validate() error {
	switch r.Store.Kind {
	case StoreMemory, StoreJSON, StoreYAML, StoreRedis:
	case StorePostgres:
		if r.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrInvalidStore)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidStore, r.Store.Kind)
	}
	if r.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be positive, got %d", r.QueueSize)
	}
	return nil
}
