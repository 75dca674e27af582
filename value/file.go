package value

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/jonwraymond/reproducible/digest"
)

// fileChunkSize is the read size used while hashing file content.
const fileChunkSize = 1024

// Path is a filesystem path whose content, not its name, identifies it.
// The default registry wraps Path values in a File.
type Path string

// File references a file by path. It does not own the content.
//
// The content fingerprint is cached together with the modification time seen
// when it was computed, and recomputed only when the current modification time
// is strictly later. A modification time that stays equal or moves backwards
// is treated as unchanged.
type File struct {
	path Path

	mu          sync.Mutex
	fingerprint string
	algorithm   string
	modTime     time.Time
}

// NewFile references path.
func NewFile(path Path) *File {
	return &File{path: path}
}

func newFile(v any) (Wrapper, error) {
	switch p := v.(type) {
	case Path:
		return NewFile(p), nil
	case *Path:
		return NewFile(*p), nil
	}
	return nil, fmt.Errorf("%w: %T is not a path", ErrSerialization, v)
}

func decodeFile(data []byte) (Wrapper, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file path", ErrDeserialization)
	}
	return NewFile(Path(data)), nil
}

// Value returns the referenced Path.
func (f *File) Value() any { return f.path }

// Path returns the referenced path.
func (f *File) Path() Path { return f.path }

// Kind returns KindFile.
func (f *File) Kind() string { return KindFile }

// MarshalBinary encodes the path, not the content.
func (f *File) MarshalBinary() ([]byte, error) {
	return []byte(f.path), nil
}

// Fingerprint returns the hex digest of the file content.
func (f *File) Fingerprint(d digest.Func) (string, error) {
	info, err := os.Stat(string(f.path))
	if err != nil {
		return "", f.pathError("stat", err)
	}
	modTime := info.ModTime()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fingerprint != "" && f.algorithm == d.Name() && !modTime.After(f.modTime) {
		return f.fingerprint, nil
	}

	fh, err := os.Open(string(f.path))
	if err != nil {
		return "", f.pathError("open", err)
	}
	defer fh.Close()

	sum, err := digest.HexReader(d, fh, fileChunkSize)
	if err != nil {
		return "", f.pathError("read", err)
	}

	f.fingerprint = sum
	f.algorithm = d.Name()
	f.modTime = modTime
	return sum, nil
}

func (f *File) pathError(op string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: file %s", ErrNotFound, f.path)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, f.path, err)
}
