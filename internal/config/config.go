package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cleanbites/backend/internal/ml"
	"github.com/joho/godotenv"
)

const (
	defaultPort           = "8000"
	defaultDatabasePath   = "cleanbites.db"
	defaultEnvironment    = "production"
	defaultMaxUploadBytes = 10 << 20 // 10 MiB
	defaultAllowedOrigins = "https://cleanbitesai.vercel.app,http://localhost:3000"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	ML       ml.Config      `json:"ml"`
	Auth     AuthConfig     `json:"auth"`
}

type ServerConfig struct {
	Port           string   `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	MaxUploadBytes int64    `json:"max_upload_bytes"`
	Environment    string   `json:"environment"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type AuthConfig struct {
	// JWTSecret enables bearer token verification when set.
	JWTSecret string `json:"jwt_secret"`
}

// IsDevelopment reports whether detailed errors may be returned to clients.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Server.Environment) {
	case "development", "dev", "local":
		return true
	}
	return false
}

// LoadDotEnv loads a .env file from the working directory. A missing file is
// not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadConfig reads the JSON file at configPath, if any, then applies
// environment overrides and defaults. An empty configPath skips the file.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	if _, err := strconv.Atoi(config.Server.Port); err != nil {
		return nil, fmt.Errorf("invalid server port %q", config.Server.Port)
	}
	return &config, nil
}

// GetConfigPath returns the path to the configuration file, or "" when there
// is none.
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("CLEANBITES_CONFIG"); path != "" {
		return path
	}

	for _, path := range []string{filepath.Join("config", "config.json"), "config.json"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Environment, "ENVIRONMENT")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Server.MaxUploadBytes = n
		}
	}

	setString(&c.Database.Path, "DATABASE_PATH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	setString(&c.ML.Type, "ML_TYPE")
	setString(&c.ML.Google.ProjectID, "GOOGLE_PROJECT_ID")
	setString(&c.ML.Google.Location, "GOOGLE_LOCATION")
	setString(&c.ML.Google.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	setString(&c.ML.Google.Model, "GEMINI_MODEL")
	setString(&c.ML.Static.PayloadFile, "STATIC_PAYLOAD_FILE")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if c.Server.Environment == "" {
		c.Server.Environment = defaultEnvironment
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = splitList(defaultAllowedOrigins)
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	c.ML.ApplyDefaults()
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
