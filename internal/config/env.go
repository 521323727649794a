package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the matcher
type Config struct {
	Database DatabaseConfig
	Web      WebConfig
	Match    MatchConfig

	LogLevel string
	Debug    bool
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConnections int
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// WebConfig holds the HTTP listener settings
type WebConfig struct {
	Host string
	Port int
}

// Addr returns host:port
func (w WebConfig) Addr() string {
	return net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
}

// MatchConfig holds the engine limits
type MatchConfig struct {
	MaxCandidates    int
	MaxLinks         int
	SurfaceTolerance float64
	LinkWorkers      int
}

// Load reads .env, if present, and then the environment
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:           GetEnv("PGHOST", "localhost"),
			Port:           GetEnvInt("PGPORT", 5432),
			User:           GetEnv("PGUSER", "postgres"),
			Password:       GetEnv("PGPASSWORD", "postgres"),
			Name:           GetEnv("PGDATABASE", "dpe"),
			SSLMode:        GetEnv("PGSSLMODE", "disable"),
			MaxConnections: GetEnvInt("DB_MAX_CONNECTIONS", 20),
		},
		Web: WebConfig{
			Host: GetEnv("WEB_HOST", "localhost"),
			Port: GetEnvInt("WEB_PORT", 8080),
		},
		Match: MatchConfig{
			MaxCandidates:    GetEnvInt("MATCH_MAX_CANDIDATES", 50),
			MaxLinks:         GetEnvInt("MATCH_MAX_LINKS", 5),
			SurfaceTolerance: GetEnvFloat("MATCH_SURFACE_TOLERANCE", 0.10),
			LinkWorkers:      GetEnvInt("MATCH_LINK_WORKERS", 4),
		},
		LogLevel: GetEnv("LOG_LEVEL", "info"),
		Debug:    GetEnvBool("DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the limits are usable
func (c *Config) Validate() error {
	var errs []error

	if c.Database.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNECTIONS must be positive, got %d", c.Database.MaxConnections))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("WEB_PORT out of range: %d", c.Web.Port))
	}
	if c.Match.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_CANDIDATES must be positive, got %d", c.Match.MaxCandidates))
	}
	if c.Match.MaxLinks <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_LINKS must be positive, got %d", c.Match.MaxLinks))
	}
	if c.Match.MaxLinks > c.Match.MaxCandidates {
		errs = append(errs, fmt.Errorf("MATCH_MAX_LINKS (%d) exceeds MATCH_MAX_CANDIDATES (%d)",
			c.Match.MaxLinks, c.Match.MaxCandidates))
	}
	if c.Match.SurfaceTolerance <= 0 || c.Match.SurfaceTolerance >= 1 {
		errs = append(errs, fmt.Errorf("MATCH_SURFACE_TOLERANCE must be in (0,1), got %v", c.Match.SurfaceTolerance))
	}
	if c.Match.LinkWorkers <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_LINK_WORKERS must be positive, got %d", c.Match.LinkWorkers))
	}

	return errors.Join(errs...)
}

// LoadEnv loads the first .env file found in the current directory or its
// parents. Variables already set in the environment win.
func LoadEnv() error {
	envPaths := []string{".env", "../.env", "../../.env"}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("failed to load %s: %w", envPath, err)
		}
		break
	}
	return nil
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets integer environment variable with default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets float environment variable with default
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvBool gets boolean environment variable with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}
