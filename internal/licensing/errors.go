package licensing

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the client and reconciler.
var (
	// ErrLicenseNotFound means no remote record matched the lookup. It is
	// deliberately distinct from APIError so callers (Renew in particular)
	// can treat absence as "create it fresh" rather than a failure.
	ErrLicenseNotFound = errors.New("license not found")

	ErrEmptyPassword = errors.New("the password cannot be empty")
)

// APIError represents a failed call to the remote license service: any
// HTTP status outside the expected success status, or a transport-level
// failure. Transport failures carry StatusCode 0.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("license api transport error: %s", e.Message)
	}
	return fmt.Sprintf("license api error (%d): %s", e.StatusCode, e.Message)
}

// NewAPIError builds an APIError from a status code and remote message.
func NewAPIError(statusCode int, message string) *APIError {
	if message == "" {
		message = "unknown error"
	}
	return &APIError{StatusCode: statusCode, Message: message}
}

// IsNotFound reports whether err is the not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLicenseNotFound)
}
