package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	AI      AIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port          int    `validate:"min=1,max=65535"`
	Host          string `validate:"required"`
	AllowedOrigin string `validate:"required"`
	APIToken      string
}

type StorageConfig struct {
	Backend string `validate:"oneof=file sqlite"`
	DataDir string `validate:"required"`
}

type AIConfig struct {
	APIKey  string
	BaseURL string        `validate:"required,url"`
	Model   string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// Addr returns the host:port the HTTP server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps Level to a slog level. Unknown values map to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:          5000,
			Host:          "127.0.0.1",
			AllowedOrigin: "http://localhost:3000",
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: defaultDataDir(),
		},
		AI: AIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-3.5-turbo",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DotEnvFile is loaded from the working directory before environment
// overrides are applied. Variables already present in the environment win.
const DotEnvFile = ".env"

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/feedtrack/config.json, then the .env file, then
// environment variables (FEEDTRACK_*, plus PORT and OPENAI_API_KEY).
//
// A missing AI API key is not an error here: the server starts and the ask
// endpoint reports the missing configuration.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), DotEnvFile)
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(fe.StructNamespace())
		msgs = append(msgs, fmt.Sprintf("%s=%v fails %q", key, fe.Value(), fe.ActualTag()+paramSuffix(fe.Param())))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// fieldKey maps a struct namespace such as "Config.Storage.Backend" back to
// its config key.
func fieldKey(ns string) string {
	if s, ok := specByField[strings.TrimPrefix(ns, "Config.")]; ok {
		return s.key
	}
	return ns
}
