package payments

import "fmt"

// ValidationError means the caller supplied unusable input (no identifiers,
// unparseable payment id).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthenticationError means an inbound webhook failed verification: bad
// signature, tampered payload or malformed event structure. Always fatal
// for the request.
type AuthenticationError struct {
	Message string
	Reasons []string
}

func (e *AuthenticationError) Error() string {
	if len(e.Reasons) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Reasons)
}

// NotFoundError means the referenced order or store does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConfigurationError means the store is missing its gateway credential.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// UpstreamError wraps a failed call to the payment gateway.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }
