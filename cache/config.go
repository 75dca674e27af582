package cache

import (
	"errors"
	"fmt"
)

// Store backends selectable from Config.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Configuration errors.
var (
	ErrInvalidBackend = errors.New("cache: invalid backend")
	ErrMissingRoot    = errors.New("cache: file backend requires a root directory")
)

// Config selects and configures a Store.
type Config struct {
	Backend  string // memory|file, empty means memory
	Root     string // file backend only
	Compress bool   // zstd-compress file data blobs
}

// Validate validates the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendMemory:
		return nil
	case BackendFile:
		if c.Root == "" {
			return ErrMissingRoot
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
}

// New builds the Store described by cfg. File options are applied after
// the ones derived from cfg and are ignored by the memory backend.
func New(cfg Config, opts ...FileOption) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend != BackendFile {
		return NewMemoryStore(), nil
	}
	if cfg.Compress {
		opts = append([]FileOption{WithCompression(defaultCompressionLevel)}, opts...)
	}
	return NewFileStore(cfg.Root, opts...)
}
