// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the API server reads at startup.
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"GO_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	// JWTKeys has the form kid:secret,kid2:secret2 and enables key rotation.
	JWTSecret    string        `mapstructure:"JWT_SECRET"`
	JWTKeys      string        `mapstructure:"JWT_KEYS"`
	JWTActiveKid string        `mapstructure:"JWT_ACTIVE_KID"`
	JWTTTL       time.Duration `mapstructure:"JWT_TTL"`

	ClientURL string `mapstructure:"CLIENT_URL"`

	RateLimitRPM        int           `mapstructure:"RATE_LIMIT_RPM"`
	SendRateLimitPerMin int           `mapstructure:"SEND_RATE_LIMIT_PER_MIN"`
	TypingThrottle      time.Duration `mapstructure:"TYPING_THROTTLE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	GRPCHealthPort string `mapstructure:"GRPC_HEALTH_PORT"`

	TLSCert    string `mapstructure:"TLS_CERT"`
	TLSKey     string `mapstructure:"TLS_KEY"`
	RequireTLS bool   `mapstructure:"REQUIRE_TLS"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":                    "5000",
	"GO_ENV":                  "development",
	"LOG_LEVEL":               "info",
	"MONGODB_URI":             "",
	"MONGODB_DATABASE":        "connect_chat",
	"JWT_SECRET":              "",
	"JWT_KEYS":                "",
	"JWT_ACTIVE_KID":          "",
	"JWT_TTL":                 "168h",
	"CLIENT_URL":              "http://localhost:5173",
	"RATE_LIMIT_RPM":          10,
	"SEND_RATE_LIMIT_PER_MIN": 60,
	"TYPING_THROTTLE":         "3s",
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"GRPC_HEALTH_PORT":        "50051",
	"TLS_CERT":                "",
	"TLS_KEY":                 "",
	"REQUIRE_TLS":             false,
	"SHUTDOWN_TIMEOUT":        "10s",
}

// Load reads envFile (if it exists) and the process environment. Environment
// variables win over values from the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if c.JWTSecret == "" && c.JWTKeys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.RequireTLS && (c.TLSCert == "" || c.TLSKey == "") {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

// IsProduction reports whether GO_ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AllowedOrigins splits CLIENT_URL into a clean origin list.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.ClientURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ParseJWTKeys parses JWT_KEYS into a kid -> secret map.
func (c *Config) ParseJWTKeys() (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(c.JWTKeys, ",") {
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}
