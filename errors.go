package fiddler

import "errors"

// Sentinel lifecycle signals a driver returns from read()/read_batch() to
// tell the input worker how to proceed. Wrap these with pkg/errors.Wrap
// when additional context is useful; callers should compare with
// errors.Is against these values, never by type assertion.
var (
	// ErrEndOfInput signals graceful, permanent termination of a source.
	ErrEndOfInput = errors.New("end of input")
	// ErrNoInputToReturn signals "nothing available right now, try again
	// later"; the input worker backs off and retries.
	ErrNoInputToReturn = errors.New("no input to return")
	// ErrConditionalCheckFailed is a soft skip at a processor or output:
	// no state event is emitted and the message is simply dropped from
	// that stage's perspective.
	ErrConditionalCheckFailed = errors.New("conditional check failed")
	// ErrDuplicateMessageID is a fatal, bug-indicating error: the state
	// tracker saw a MessageHandle whose id already has a live entry.
	ErrDuplicateMessageID = errors.New("duplicate message id")
)

// Configuration errors abort Runtime construction before any worker starts.
var (
	ErrDuplicateRegisteredName  = errors.New("duplicate registered plugin name")
	ErrConfigurationNotFound    = errors.New("configuration item not found")
	ErrConfigFailedValidation   = errors.New("configuration failed validation")
	ErrInvalidValidationSchema  = errors.New("invalid plugin validation schema")
	ErrUnknownPluginKind        = errors.New("unknown plugin kind")
	ErrMultiplePluginKeys       = errors.New("stage config must have exactly one plugin key")
)
