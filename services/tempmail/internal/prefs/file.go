package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FileStore keeps preferences in a YAML file
type FileStore struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
}

// NewFileStore opens the preference file at path; a missing file is created on first Set
func NewFileStore(path string) (*FileStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read preferences %s: %w", path, err)
		}
	}

	return &FileStore{path: path, v: v}, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.v.IsSet(key) {
		return "", ErrNotFound
	}
	return s.v.GetString(key), nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	if strings.Contains(key, ".") {
		return fmt.Errorf("invalid preference key %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(key, value)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write preferences %s: %w", s.path, err)
	}
	return nil
}
