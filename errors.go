package isodenoise

// Error is a wrapper for specific types of errors for which there is no additional information
// necessary. These errors are defined as global variables and are wrapped with context by
// github.com/pkg/errors, so that errors.Cause(err) can be compared against them.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// These are the global errors that may be returned, usually wrapped.
var (
	// ErrConfig marks a configuration that cannot be used: unknown kinds, invalid
	// hyperparameters, missing required paths.
	ErrConfig = Error{"invalid configuration"}

	// ErrIndexRange is returned when a sample index is outside [0, Len()).
	ErrIndexRange = Error{"sample index out of range"}

	// ErrLayout is returned when an on-disk dataset does not follow its layout.
	ErrLayout = Error{"invalid dataset layout"}

	// ErrSplit is returned when a split would leave one side without any originals.
	ErrSplit = Error{"invalid dataset split"}

	// ErrCheckpoint is returned for malformed or incompatible checkpoints.
	ErrCheckpoint = Error{"invalid checkpoint"}

	// ErrNumeric marks numeric failures: NaN or infinite losses and model/loss
	// combinations that cannot be computed.
	ErrNumeric = Error{"numeric error"}
)

// NilArgError documents errors resulting from certain arguments provided to a function being nil.
type NilArgError struct{ string }

func (err NilArgError) Error() string {
	return err.string + " is nil"
}

// NewNilArgError returns a NilArgError naming the argument that was nil.
func NewNilArgError(name string) NilArgError {
	return NilArgError{name}
}
