// Package store persists fitted model artifacts.
package store

import (
	"context"
	"encoding"
	"errors"
	"fmt"

	"cropwise-go/internal/config"
)

// ErrNotFound is returned by Load when no artifact has the given name.
var ErrNotFound = errors.New("artifact not found")

// ArtifactStore saves and loads named model artifacts.
type ArtifactStore interface {
	Save(ctx context.Context, name string, v encoding.BinaryMarshaler) error
	Load(ctx context.Context, name string, v encoding.BinaryUnmarshaler) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// New opens the backend selected by cfg.Backend under cfg.Dir.
func New(cfg config.ModelsConfig) (ArtifactStore, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Dir)
	case config.BackendBadger:
		return OpenBadgerStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

func validName(name string) error {
	if name == "" {
		return errors.New("artifact name is empty")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return fmt.Errorf("invalid artifact name %q", name)
		}
	}
	return nil
}
