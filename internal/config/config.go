// Package config defines the typed configuration tree for ChemLens and its
// viper-based loader.  Values come from an optional YAML file plus CHEMLENS_*
// environment variables, environment taking precedence.
package config

import (
	"fmt"
	"time"

	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
)

// Config is the root configuration object for every ChemLens process.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Registry RegistryConfig `mapstructure:"registry"`
	Synonyms SynonymsConfig `mapstructure:"synonyms"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      logging.LogConfig `mapstructure:"log"`
}

// AppConfig identifies the running process.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development | staging | production
	Version     string `mapstructure:"version"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSOrigins lists allowed browser origins; empty means same-origin only.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Addr returns the host:port string for the API listener.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// DatabaseConfig controls the PostgreSQL connection pool.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// DSN assembles the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// RedisConfig controls the Redis cache connection.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RegistryTTL is how long cached registry lookups stay valid.
	RegistryTTL time.Duration `mapstructure:"registry_ttl"`
}

// KafkaConfig controls domain event publishing.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	ClientID     string        `mapstructure:"client_id"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// Enabled gates publishing entirely; when false the producer is a no-op.
	Enabled bool `mapstructure:"enabled"`
}

// MinIOConfig controls object storage for validation documents.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// RegistryConfig controls the upstream chemical registry client.
type RegistryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RequestInterval is the minimum spacing between upstream requests.
	RequestInterval time.Duration `mapstructure:"request_interval"`
	// MaxSynonyms caps how many synonyms are retained per record.
	MaxSynonyms int `mapstructure:"max_synonyms"`
}

// SynonymsConfig controls the PubChem fallback synonym source.
type SynonymsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// LLMConfig controls the optional language-model assistant.  When APIKey is
// empty the assistant reports itself unavailable and every pipeline stage
// that depends on it is skipped.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// Available reports whether the assistant is configured.
func (l LLMConfig) Available() bool { return l.APIKey != "" }

// WorkerConfig controls the background enrichment worker.
type WorkerConfig struct {
	// QueueSize bounds how many enrichment jobs may wait behind the running one.
	QueueSize int `mapstructure:"queue_size"`
	// ItemTimeout bounds the wall time spent on a single item.
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.MetricsPort == c.Server.Port {
		return fmt.Errorf("config: metrics_port must differ from server port")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("config: database.max_idle_conns (%d) exceeds max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("config: registry.base_url is required")
	}
	if c.Registry.RequestInterval < 0 {
		return fmt.Errorf("config: registry.request_interval must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka enabled but no brokers configured")
	}
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("config: unknown environment %q", c.App.Environment)
	}
	return nil
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool { return c.App.Environment == "production" }
