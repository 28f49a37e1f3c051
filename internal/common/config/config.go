// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Search   SearchConfig   `mapstructure:"search"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
	APIs     APIsConfig     `mapstructure:"apis"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string  `mapstructure:"host"`
	Port            int     `mapstructure:"port"`
	OpsPort         int     `mapstructure:"ops_port"` // health + metrics listener
	ReadTimeout     int     `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int     `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int     `mapstructure:"shutdown_timeout"` // milliseconds
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst"`
}

// Addr returns the listen address for the API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OpsAddr returns the listen address for the ops (health/metrics) server.
func (s ServerConfig) OpsAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.OpsPort)
}

// SchemaConfig locates the intent/entity schema document.
type SchemaConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"` // hot reload on file change
}

// DatasetConfig selects where the three record collections load from.
// Source is one of "file", "postgres", "elasticsearch"; the index built in
// memory is identical regardless of source.
type DatasetConfig struct {
	Source        string                     `mapstructure:"source"`
	Files         DatasetFilesConfig         `mapstructure:"files"`
	Tables        DatasetTablesConfig        `mapstructure:"tables"`
	Elasticsearch DatasetElasticsearchConfig `mapstructure:"elasticsearch"`
}

type DatasetFilesConfig struct {
	Plans     string `mapstructure:"plans"`
	Coverage  string `mapstructure:"coverage"`
	Providers string `mapstructure:"providers"`
}

type DatasetTablesConfig struct {
	Plans     string `mapstructure:"plans"`
	Coverage  string `mapstructure:"coverage"`
	Providers string `mapstructure:"providers"`
}

type DatasetElasticsearchConfig struct {
	PlansIndex     string `mapstructure:"plans_index"`
	CoverageIndex  string `mapstructure:"coverage_index"`
	ProvidersIndex string `mapstructure:"providers_index"`
	FetchSize      int    `mapstructure:"fetch_size"`
}

// SearchConfig tunes the scoring engine.
type SearchConfig struct {
	TopN          int    `mapstructure:"top_n"`
	DefaultRegion string `mapstructure:"default_region"` // state code for the unfiltered fallback bonus
}

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	TTL            int `mapstructure:"ttl"`             // milliseconds
	ReaperInterval int `mapstructure:"reaper_interval"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIsConfig holds settings for the external collaborators.
type APIsConfig struct {
	NLU       NLUConfig       `mapstructure:"nlu"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

type NLUConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
	CacheSize  int    `mapstructure:"cache_size"` // LRU entries; 0 disables
}

type WebSearchConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
	MaxResults   int    `mapstructure:"max_results"`
	CacheEnabled bool   `mapstructure:"cache_enabled"` // redis-backed response cache
	CacheTTL     int    `mapstructure:"cache_ttl"`     // milliseconds
}

// AlertsConfig holds settings for operational alerting (schema reload
// failures, oracle circuit-open events).
type AlertsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	SNS     struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"email"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
