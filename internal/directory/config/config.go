// Package config loads the directory service settings from a YAML file,
// an optional .env file and the process environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PathEnv names the variable that overrides the config file location.
const PathEnv = "DEXAPP_CONFIG"

// DefaultPath is the config file used when PathEnv is unset.
var DefaultPath = filepath.Join("internal", "directory", "config", "config.yaml")

// Config struct for YAML configuration
type Config struct {
	GRPCPort     int      `yaml:"GRPC_PORT"`
	HTTPPort     int      `yaml:"HTTP_PORT"`
	DBDriver     string   `yaml:"DB_DRIVER"`
	DBDSN        string   `yaml:"DB_DSN"`
	DBHost       string   `yaml:"DB_HOST"`
	DBPort       int      `yaml:"DB_PORT"`
	DBUser       string   `yaml:"DB_USER"`
	DBPassword   string   `yaml:"DB_PASSWORD"`
	DBName       string   `yaml:"DB_NAME"`
	DBSSLMode    string   `yaml:"DB_SSLMODE"`
	KafkaBrokers []string `yaml:"KAFKA_BROKERS"`
	KafkaGroupID string   `yaml:"KAFKA_GROUP_ID"`
	JWTSecret    string   `yaml:"JWT_SECRET"`
	Topic        string   `yaml:"TOPIC"`
}

func defaults() Config {
	return Config{
		GRPCPort:     50051,
		HTTPPort:     8080,
		DBDriver:     "postgres",
		DBHost:       "localhost",
		DBPort:       5432,
		DBSSLMode:    "disable",
		KafkaGroupID: "dexapp-auditlog",
		Topic:        "company-directory-events",
	}
}

// Load reads the YAML file at path (DefaultPath, or $DEXAPP_CONFIG, when
// empty), then applies .env and environment overrides. A missing file is
// not an error; the defaults and environment still apply.
func Load(path string) (*Config, error) {
	// .env is optional in every environment.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := defaults()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DB_DRIVER":      &c.DBDriver,
		"DB_DSN":         &c.DBDSN,
		"DB_HOST":        &c.DBHost,
		"DB_USER":        &c.DBUser,
		"DB_PASSWORD":    &c.DBPassword,
		"DB_NAME":        &c.DBName,
		"DB_SSLMODE":     &c.DBSSLMode,
		"KAFKA_GROUP_ID": &c.KafkaGroupID,
		"JWT_SECRET":     &c.JWTSecret,
		"TOPIC":          &c.Topic,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GRPC_PORT": &c.GRPCPort,
		"HTTP_PORT": &c.HTTPPort,
		"DB_PORT":   &c.DBPort,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(v)
	}
	return nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.GRPCPort <= 0 || c.HTTPPort <= 0 {
		errs = append(errs, errors.New("GRPC_PORT and HTTP_PORT must be positive"))
	}
	if c.GRPCPort == c.HTTPPort {
		errs = append(errs, errors.New("GRPC_PORT and HTTP_PORT must differ"))
	}
	switch c.DBDriver {
	case "postgres":
		if c.DBDSN == "" && c.DBHost == "" {
			errs = append(errs, errors.New("DB_HOST or DB_DSN is required for postgres"))
		}
	case "sqlite":
		if c.DBDSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

// KafkaEnabled reports whether events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
