package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/jonwraymond/reproducible/observe"
	"github.com/jonwraymond/reproducible/value"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644

	typeBlob           = "type"
	dataBlob           = "data"
	compressedDataBlob = "data.zst"

	stagingPrefix = ".staging-"
	hashedPrefix  = "k-"

	// Keys longer than this are stored under a hashed directory name.
	maxEntryNameLen = 200
)

// defaultCompressionLevel is used when compression is enabled from Config.
const defaultCompressionLevel = zstd.SpeedDefault

// FileStore persists entries under a root directory, one subdirectory per key:
//
//	root/<entry>/type      the wrapper kind
//	root/<entry>/data      the serialized payload
//	root/<entry>/data.zst  the payload, zstd-compressed, in place of data
//
// <entry> is EntryName(key). Memoized keys always contain ':', so their
// entries live under "k-" followed by the SHA-256 of the key; only plain
// keys map to a directory of the same name.
//
// Set is atomic: both blobs are staged in a temporary directory under root and
// renamed into place, so readers never observe a half-written entry.
type FileStore struct {
	root     string
	dirPerm  os.FileMode
	registry *value.Registry
	logger   observe.Logger

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	commitMu sync.Mutex
}

// FileOption configures a FileStore.
type FileOption func(*FileStore) error

// WithDirPerm sets the permissions used for entry directories.
func WithDirPerm(mode os.FileMode) FileOption {
	return func(s *FileStore) error {
		s.dirPerm = mode
		return nil
	}
}

// WithRegistry sets the registry used to decode stored kinds. Defaults to value.Default.
func WithRegistry(r *value.Registry) FileOption {
	return func(s *FileStore) error {
		if r == nil {
			return errors.New("cache: registry is nil")
		}
		s.registry = r
		return nil
	}
}

// WithLogger sets the logger that receives per-entry debug lines.
func WithLogger(l observe.Logger) FileOption {
	return func(s *FileStore) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithCompression compresses data blobs with zstd at the given level.
// Compressed payloads are written to their own blob, so a root may hold a
// mix of compressed and plain entries.
func WithCompression(level zstd.EncoderLevel) FileOption {
	return func(s *FileStore) error {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("cache: zstd encoder: %w", err)
		}
		s.encoder = enc
		return nil
	}
}

// NewFileStore opens a store rooted at root, creating the directory if needed.
// It fails with ErrIO if root exists and is not a directory.
func NewFileStore(root string, opts ...FileOption) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: root is empty", ErrIO)
	}
	s := &FileStore{
		root:     root,
		dirPerm:  defaultDirPerm,
		registry: value.Default,
		logger:   observe.NopLogger(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrIO, root)
	}
	if err := os.MkdirAll(root, s.dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("cache: zstd decoder: %w", err)
	}
	s.decoder = dec
	return s, nil
}

// Root returns the store's root directory.
func (s *FileStore) Root() string { return s.root }

// Set writes w under key, replacing any existing entry.
func (s *FileStore) Set(ctx context.Context, key string, w value.Wrapper) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if w == nil {
		return ErrNilWrapper
	}

	data, err := w.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	blob := dataBlob
	if s.encoder != nil {
		data = s.encoder.EncodeAll(data, nil)
		blob = compressedDataBlob
	}

	stage, err := os.MkdirTemp(s.root, stagingPrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(stage)
		}
	}()
	if err := os.Chmod(stage, s.dirPerm); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.WriteFile(filepath.Join(stage, typeBlob), []byte(w.Kind()), defaultFilePerm); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.WriteFile(filepath.Join(stage, blob), data, defaultFilePerm); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	s.commitMu.Lock()
	err = commitDir(stage, s.entryPath(key))
	s.commitMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	committed = true

	s.logger.Debug(ctx, "cache entry stored",
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "kind", Value: w.Kind()},
		observe.Field{Key: "bytes", Value: len(data)},
	)
	return nil
}

// commitDir moves stage to target, replacing whatever is there. Another
// process may recreate target between the remove and the rename, so the pair
// is retried a few times.
func commitDir(stage, target string) error {
	var err error
	for range 3 {
		if err = os.RemoveAll(target); err != nil {
			return err
		}
		if err = os.Rename(stage, target); err == nil {
			return nil
		}
	}
	return err
}

// Get reads the entry stored under key.
func (s *FileStore) Get(ctx context.Context, key string) (value.Wrapper, error) {
	dir := s.entryPath(key)

	kind, err := readBlob(dir, typeBlob, key)
	if err != nil {
		return nil, err
	}
	data, err := s.readData(dir, key)
	if err != nil {
		return nil, err
	}

	w, err := s.registry.Decode(string(kind), data)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}

	s.logger.Debug(ctx, "cache entry loaded",
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "kind", Value: string(kind)},
	)
	return w, nil
}

// readData returns the entry payload, decompressing it when it was stored
// as data.zst.
func (s *FileStore) readData(dir, key string) ([]byte, error) {
	packed, err := readBlob(dir, compressedDataBlob, key)
	switch {
	case err == nil:
		data, err := s.decoder.DecodeAll(packed, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrDeserialization, key, err)
		}
		return data, nil
	case errors.Is(err, ErrNotFound):
		return readBlob(dir, dataBlob, key)
	default:
		return nil, err
	}
}

func readBlob(dir, name, key string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: key %q (%s)", ErrNotFound, key, name)
	default:
		return nil, fmt.Errorf("%w: key %q: %v", ErrIO, key, err)
	}
}

// IsCached reports whether an entry directory exists for key. It does not
// inspect the blobs.
func (s *FileStore) IsCached(_ context.Context, key string) bool {
	if ValidateKey(key) != nil {
		return false
	}
	info, err := os.Stat(s.entryPath(key))
	return err == nil && info.IsDir()
}

// Delete removes the entry for key. Idempotent - no error on miss.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.RemoveAll(s.entryPath(key)); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Ping checks that the root is still a writable directory.
func (s *FileStore) Ping(context.Context) error {
	f, err := os.CreateTemp(s.root, stagingPrefix+"ping-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Close releases the zstd coders. The store must not be used afterwards.
func (s *FileStore) Close() error {
	if s.encoder != nil {
		_ = s.encoder.Close()
	}
	s.decoder.Close()
	return nil
}

func (s *FileStore) entryPath(key string) string {
	return filepath.Join(s.root, EntryName(key))
}

// EntryName returns the directory name used for key. Keys that are safe
// single path elements are used verbatim; everything else is replaced by
// "k-" and the SHA-256 of the key.
func EntryName(key string) string {
	if safeEntryName(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return hashedPrefix + hex.EncodeToString(sum[:])
}

func safeEntryName(key string) bool {
	if key == "" || len(key) > maxEntryNameLen {
		return false
	}
	if strings.HasPrefix(key, ".") || strings.HasPrefix(key, hashedPrefix) {
		return false
	}
	return !strings.ContainsAny(key, "/\\\x00:*?\"<>|")
}

var _ Store = (*FileStore)(nil)
