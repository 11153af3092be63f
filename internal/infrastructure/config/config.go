package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers understood by the database package.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Password hashing algorithms understood by the auth package.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Config is the root configuration structure for the user service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// DatabaseConfig selects the account store backend.
//
// The sqlite driver uses Path, WALMode and BusyTimeout; the postgres driver uses DSN.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	DSN         string `yaml:"dsn"`
	MaxOpenConn int    `yaml:"max_open_conns"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// MQTTConfig contains MQTT broker connection settings.
// When disabled, audit events are stored but not published.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for auth telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains credential and token settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	Password  PasswordConfig  `yaml:"password"`
	SeedAdmin SeedAdminConfig `yaml:"seed_admin"`
}

// JWTConfig contains bearer token settings.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // minutes
	Issuer   string `yaml:"issuer"`
}

// PasswordConfig tunes the credential hasher work factor.
type PasswordConfig struct {
	Algorithm       string `yaml:"algorithm"`
	ArgonMemory     uint32 `yaml:"argon_memory"` // KiB
	ArgonIterations uint32 `yaml:"argon_iterations"`
	ArgonThreads    uint8  `yaml:"argon_threads"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
}

// SeedAdminConfig controls first-boot admin account creation.
type SeedAdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Email   string `yaml:"email"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: USERSVC_SECTION_KEY
// For example: USERSVC_DATABASE_DSN, USERSVC_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			Path:        "./data/users.db",
			WALMode:     true,
			BusyTimeout: 5,
			MaxOpenConn: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "user-service",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "usersvc",
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "auth",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 120,
				Issuer:   "user-service",
			},
			Password: PasswordConfig{
				Algorithm:       AlgorithmArgon2id,
				ArgonMemory:     64 * 1024,
				ArgonIterations: 3,
				ArgonThreads:    1,
				BcryptCost:      10,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("USERSVC_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("USERSVC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("USERSVC_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// API
	if v := os.Getenv("USERSVC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("USERSVC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("USERSVC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("USERSVC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("USERSVC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("USERSVC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - the signing secret should only ever come from the environment in production
	if v := os.Getenv("USERSVC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("USERSVC_JWT_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Security.JWT.TokenTTL = ttl
		}
	}
}

// Validate checks the configuration for errors and security issues.
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the postgres driver (set USERSVC_DATABASE_DSN)")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (want sqlite or postgres)", c.Database.Driver))
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Security validation - a missing signing secret is a startup failure
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set USERSVC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}
	if c.Security.JWT.TokenTTL <= 0 {
		errs = append(errs, "security.jwt.token_ttl must be positive")
	}

	switch c.Security.Password.Algorithm {
	case AlgorithmArgon2id:
		if c.Security.Password.ArgonIterations == 0 || c.Security.Password.ArgonMemory < 8*1024 ||
			c.Security.Password.ArgonThreads == 0 {
			errs = append(errs, "security.password argon2id parameters are too weak (iterations >= 1, memory >= 8192 KiB, threads >= 1)")
		}
	case AlgorithmBcrypt:
		if c.Security.Password.BcryptCost < 4 || c.Security.Password.BcryptCost > 31 {
			errs = append(errs, "security.password.bcrypt_cost must be between 4 and 31")
		}
	default:
		errs = append(errs, fmt.Sprintf("security.password.algorithm %q is not supported", c.Security.Password.Algorithm))
	}

	if c.Security.SeedAdmin.Enabled && c.Security.SeedAdmin.Email == "" {
		errs = append(errs, "security.seed_admin.email is required when seeding is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTokenTTL returns the bearer token lifetime as a Duration.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}
