// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Geocoding     GeocodingConfig     `mapstructure:"geocoding"`
	Forecast      ForecastConfig      `mapstructure:"forecast"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
	ReadTimeout int `mapstructure:"read_timeout"` // milliseconds
}

// LLMConfig holds settings for the OpenAI-compatible text-generation service.
type LLMConfig struct {
	BaseURL              string  `mapstructure:"base_url"`
	APIKey               string  `mapstructure:"api_key"`
	Model                string  `mapstructure:"model"`
	Timeout              int     `mapstructure:"timeout"` // milliseconds
	MaxRetries           int     `mapstructure:"max_retries"`
	MaxTokens            int     `mapstructure:"max_tokens"`
	ExtractTemperature   float64 `mapstructure:"extract_temperature"`
	SummaryTemperature   float64 `mapstructure:"summary_temperature"`
}

// GetTimeout returns the per-call deadline for LLM requests.
func (l LLMConfig) GetTimeout() time.Duration {
	return time.Duration(l.Timeout) * time.Millisecond
}

type GeocodingConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	Timeout   int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL  int    `mapstructure:"cache_ttl"` // seconds, 0 disables caching
}

func (g GeocodingConfig) GetTimeout() time.Duration {
	return time.Duration(g.Timeout) * time.Millisecond
}

func (g GeocodingConfig) GetCacheTTL() time.Duration {
	return time.Duration(g.CacheTTL) * time.Second
}

type ForecastConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

func (f ForecastConfig) GetTimeout() time.Duration {
	return time.Duration(f.Timeout) * time.Millisecond
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}
