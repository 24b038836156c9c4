package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigBackend abstracts persistent config storage.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
}

// fileBackend stores config as JSON through viper. Dotted keys such as
// "server.port" become nested objects in the file.
type fileBackend struct {
	path string
	v    *viper.Viper
}

func newFileBackend(path string) *fileBackend {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	b := &fileBackend{path: path, v: v}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("could not read config file, using defaults", "path", path, "error", err)
		}
	}
	return b
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	if !b.v.IsSet(key) {
		return "", false, nil
	}
	return b.v.GetString(key), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	if !b.v.IsSet(key) {
		return 0, false, nil
	}
	i, err := toInt(b.v.Get(key))
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *fileBackend) SetString(key, val string) error {
	b.v.Set(key, val)
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.v.Set(key, val)
	return b.save()
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := b.v.WriteConfigAs(b.path); err != nil {
		return fmt.Errorf("writing %s: %w", b.path, err)
	}
	return os.Chmod(b.path, 0o600)
}
