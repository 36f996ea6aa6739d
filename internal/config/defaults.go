package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults installs the baseline value for every key so that a bare
// environment (no file, no env vars) still yields a runnable development
// configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chemlens")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chemlens")
	v.SetDefault("database.password", "chemlens")
	v.SetDefault("database.database", "chemlens")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.registry_ttl", 7*24*time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "chemlens")
	v.SetDefault("kafka.batch_timeout", 100*time.Millisecond)
	v.SetDefault("kafka.enabled", false)

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "minioadmin")
	v.SetDefault("minio.secret_key", "minioadmin")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "chemlens-validation-docs")

	v.SetDefault("registry.base_url", "https://commonchemistry.cas.org/api")
	v.SetDefault("registry.api_key", "")
	v.SetDefault("registry.timeout", 10*time.Second)
	// Upstream fair-use policy allows roughly one request per second; keep a
	// small margin.
	v.SetDefault("registry.request_interval", 1100*time.Millisecond)
	v.SetDefault("registry.max_synonyms", 10)

	v.SetDefault("synonyms.base_url", "https://pubchem.ncbi.nlm.nih.gov/rest/pug")
	v.SetDefault("synonyms.timeout", 10*time.Second)
	v.SetDefault("synonyms.enabled", true)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.0)

	v.SetDefault("worker.queue_size", 4)
	v.SetDefault("worker.item_timeout", 2*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("log.error_output_paths", []string{"stderr"})
}
