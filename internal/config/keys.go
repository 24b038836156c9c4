package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	field   string // struct path used in validation messages
	typ     keyType
	env     []string // first match wins
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", field: "Server.Port", typ: kInt, env: []string{"FEEDTRACK_SERVER_PORT", "PORT"},
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.host", field: "Server.Host", typ: kString, env: []string{"FEEDTRACK_SERVER_HOST"},
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.allowed_origin", field: "Server.AllowedOrigin", typ: kString, env: []string{"FEEDTRACK_SERVER_ALLOWED_ORIGIN"},
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigin = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigin },
	},
	{
		key: "server.api_token", field: "Server.APIToken", typ: kString, env: []string{"FEEDTRACK_SERVER_API_TOKEN"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.backend", field: "Storage.Backend", typ: kString, env: []string{"FEEDTRACK_STORAGE_BACKEND"},
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", field: "Storage.DataDir", typ: kString, env: []string{"FEEDTRACK_STORAGE_DATA_DIR"},
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "ai.api_key", field: "AI.APIKey", typ: kString, env: []string{"FEEDTRACK_AI_API_KEY", "OPENAI_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.AI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.APIKey },
	},
	{
		key: "ai.base_url", field: "AI.BaseURL", typ: kString, env: []string{"FEEDTRACK_AI_BASE_URL"},
		apply:   func(cfg *Config, v any) { cfg.AI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.BaseURL },
	},
	{
		key: "ai.model", field: "AI.Model", typ: kString, env: []string{"FEEDTRACK_AI_MODEL"},
		apply:   func(cfg *Config, v any) { cfg.AI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.Model },
	},
	{
		key: "ai.timeout", field: "AI.Timeout", typ: kDuration, env: []string{"FEEDTRACK_AI_TIMEOUT"},
		apply:   func(cfg *Config, v any) { cfg.AI.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.AI.Timeout },
	},
	{
		key: "log.level", field: "Log.Level", typ: kString, env: []string{"FEEDTRACK_LOG_LEVEL"},
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

var specByField = func() map[string]keySpec {
	m := make(map[string]keySpec, len(specs))
	for _, s := range specs {
		m[s.field] = s
	}
	return m
}()

func toInt(v any) (int, error) {
	return cast.ToIntE(v)
}

func parseDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// Bare numbers are seconds.
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(secs) * time.Second, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				d, err := parseDuration(v)
				if err != nil {
					return fmt.Errorf("reading %s: %w", s.key, err)
				}
				s.apply(cfg, d)
			}
		}
	}
	return nil
}

// lookupEnv returns the first non-empty variable among names.
func lookupEnv(names []string) (name, val string, ok bool) {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return n, v, true
		}
	}
	return "", "", false
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw, ok := lookupEnv(s.env)
		if !ok {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("could not parse integer from env var, using default", "var", name, "value", raw, "error", err)
			}
		case kDuration:
			if d, err := parseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				slog.Warn("could not parse duration from env var, using default", "var", name, "value", raw, "error", err)
			}
		}
	}
}
