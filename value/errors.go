package value

import "errors"

// Error taxonomy shared by wrappers and stores. Callers match with errors.Is.
var (
	// ErrNotFound indicates a missing cache key or a missing referenced file.
	ErrNotFound = errors.New("value: not found")

	// ErrIO indicates a filesystem failure while reading or writing.
	ErrIO = errors.New("value: i/o failure")

	// ErrSerialization indicates a value no registered encoder can represent.
	ErrSerialization = errors.New("value: serialization failed")

	// ErrDeserialization indicates an unknown type tag or a corrupt payload.
	ErrDeserialization = errors.New("value: deserialization failed")

	// ErrInvalidRegistration indicates a nil type, constructor, decoder or an empty kind.
	ErrInvalidRegistration = errors.New("value: invalid registration")
)
