package engine

import "fmt"

// ConfigurationError reports invalid initialization parameters. It is fatal:
// no partial world is ever created.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports a caller bug, such as resolving an interaction
// against an extinct civilization. It is never suppressed by the engine.
type InvalidStateError struct {
	Op     string
	CivID  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state in %s (civ %s): %s", e.Op, e.CivID, e.Reason)
}

// StorageUnavailableError reports that the recorder cannot accept output.
// Raised before the first tick; losing snapshots silently would corrupt
// the historical record, so there is no retry policy.
type StorageUnavailableError struct {
	Target string
	Err    error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Target, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Err
}
