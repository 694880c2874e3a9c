package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/utils"
)

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	Root       string `yaml:"root"`
	SQLitePath string `yaml:"sqlite_path"`

	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresName     string `yaml:"postgres_name"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TestUserUUID  string `yaml:"test_user_uuid"`
	AllowTestUser bool   `yaml:"allow_test_user"`
}

// Config is built once in main and passed by reference into every
// constructor. Nothing reads the environment after Load returns.
type Config struct {
	LogMode        string        `yaml:"log_mode"`
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Storage        StorageConfig `yaml:"storage"`
	OpenAI         OpenAIConfig  `yaml:"openai"`
	Auth           AuthConfig    `yaml:"auth"`
}

// Load builds the configuration from an optional YAML file (CONFIG_FILE)
// with environment variables taking precedence over file values.
func Load(log *logger.Logger) (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}

	cfg.LogMode = utils.GetEnv("LOG_MODE", cfg.LogMode, log)
	cfg.Port = utils.GetEnv("PORT", cfg.Port, log)
	if origins := utils.GetEnv("ALLOWED_ORIGINS", "", log); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}

	cfg.Storage.Driver = utils.GetEnv("STORAGE_DRIVER", cfg.Storage.Driver, log)
	cfg.Storage.Root = utils.GetEnv("STORAGE_PATH", cfg.Storage.Root, log)
	cfg.Storage.SQLitePath = utils.GetEnv("SQLITE_PATH", cfg.Storage.SQLitePath, log)
	cfg.Storage.PostgresHost = utils.GetEnv("POSTGRES_HOST", cfg.Storage.PostgresHost, log)
	cfg.Storage.PostgresPort = utils.GetEnv("POSTGRES_PORT", cfg.Storage.PostgresPort, log)
	cfg.Storage.PostgresUser = utils.GetEnv("POSTGRES_USER", cfg.Storage.PostgresUser, log)
	cfg.Storage.PostgresPassword = utils.GetEnv("POSTGRES_PASSWORD", cfg.Storage.PostgresPassword, log)
	cfg.Storage.PostgresName = utils.GetEnv("POSTGRES_NAME", cfg.Storage.PostgresName, log)

	cfg.OpenAI.APIKey = utils.GetEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey, log)
	cfg.OpenAI.BaseURL = utils.GetEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL, log)
	cfg.OpenAI.Model = utils.GetEnv("OPENAI_MODEL", cfg.OpenAI.Model, log)
	cfg.OpenAI.TimeoutSeconds = utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", cfg.OpenAI.TimeoutSeconds, log)
	cfg.OpenAI.MaxRetries = utils.GetEnvAsInt("OPENAI_MAX_RETRIES", cfg.OpenAI.MaxRetries, log)

	cfg.Auth.JWTSecret = utils.GetEnv("JWT_SECRET_KEY", cfg.Auth.JWTSecret, log)
	cfg.Auth.TestUserUUID = utils.GetEnv("TEST_UUID", cfg.Auth.TestUserUUID, log)
	cfg.Auth.AllowTestUser = utils.GetEnvAsBool("ALLOW_TEST_USER", cfg.Auth.AllowTestUser, log)

	switch cfg.Storage.Driver {
	case DriverFile, DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LogMode: "development",
		Port:    "8080",
		AllowedOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		Storage: StorageConfig{
			Driver:       DriverFile,
			Root:         "./storage/chat",
			SQLitePath:   "./storage/chat.db",
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresUser: "postgres",
			PostgresName: "pinechat",
		},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 180,
			MaxRetries:     4,
		},
		Auth: AuthConfig{
			TestUserUUID:  "00000000-0000-0000-0000-000000000000",
			AllowTestUser: true,
		},
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
