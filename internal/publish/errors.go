package publish

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is wrapped by every ConfigurationError.
var ErrNotConfigured = errors.New("GitHub settings not configured")

// ConfigurationError reports missing settings. It is returned before any
// remote call is made.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing %v", ErrNotConfigured, e.Missing)
}

func (e *ConfigurationError) Unwrap() error { return ErrNotConfigured }

// ValidationError reports a filename that cannot be used as a repository path.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid filename %q: %s", e.Filename, e.Reason)
}

// RemoteReadError reports a version lookup that failed for any reason other
// than the file being absent. No write is attempted after it.
type RemoteReadError struct {
	Path       string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RemoteReadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GitHub API read error: %d %s: %v", e.StatusCode, e.Path, e.Err)
	}
	return fmt.Sprintf("GitHub API read error: %s: %v", e.Path, e.Err)
}

func (e *RemoteReadError) Unwrap() error { return e.Err }

// RemoteWriteError carries the status and body of a rejected write.
type RemoteWriteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("GitHub API Error: %d %s", e.StatusCode, e.Body)
}
