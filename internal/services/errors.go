package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable marks network, timeout, and non-2xx failures from the
	// catalog or a scraper. Recoverable; the next cycle retries.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNotFound marks a well-formed empty result.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks malformed or unwritable persisted state.
	ErrStorage = errors.New("storage error")
	// ErrUserInput marks invalid selections, unknown titles, and duplicates.
	ErrUserInput     = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrSourceUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether err should be retried on the next cycle rather
// than surfaced as a hard failure.
func Recoverable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// Kind returns a short label for the marker carried by err, suitable for log
// fields and RPC error codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrUserInput):
		return "user_input"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
