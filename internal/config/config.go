package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// AdminSecretHash is a bcrypt hash of the shared secret the external
	// administrative component presents on /api/admin. Empty disables
	// shared-secret auth (admin JWTs still work).
	AdminSecretHash string `mapstructure:"admin_secret_hash" yaml:"admin_secret_hash"`

	// Per-connection inbound frame throttle.
	WSMessageRate  float64 `mapstructure:"ws_message_rate" yaml:"ws_message_rate"`
	WSMessageBurst int     `mapstructure:"ws_message_burst" yaml:"ws_message_burst"`

	EventBufferSize  int `mapstructure:"event_buffer_size" yaml:"event_buffer_size"`
	MaxMessageLength int `mapstructure:"max_message_length" yaml:"max_message_length"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "pocketgarden.db",
		LogLevel:          "info",
		JWTIssuer:         "pocketgarden",
		JWTAudience:       "pocketgarden-client",
		JWTTTL:            24 * time.Hour,
		WSMessageRate:     10,
		WSMessageBurst:    20,
		EventBufferSize:   32,
		MaxMessageLength:  2000,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
}
