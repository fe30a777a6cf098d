package telemetry

import "fmt"

// TelemetryError wraps a classified telemetry failure, adapted from the
// teacher's SaaSError.
type TelemetryError struct {
	Code    string
	Message string
	Err     error
}

func (e *TelemetryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TelemetryError) Unwrap() error {
	return e.Err
}

func ErrInvalidConfig(msg string) error {
	return &TelemetryError{Code: "INVALID_CONFIG", Message: msg}
}

func ErrConnectionFailed(err error) error {
	return &TelemetryError{Code: "CONNECTION_FAILED", Message: "failed to connect to cloud endpoint", Err: err}
}

func ErrAuthenticationFailed(msg string) error {
	return &TelemetryError{Code: "AUTH_FAILED", Message: msg}
}

func ErrCommandFailed(msg string, err error) error {
	return &TelemetryError{Code: "COMMAND_FAILED", Message: msg, Err: err}
}

func ErrCommandTimeout(cmdID string) error {
	return &TelemetryError{Code: "COMMAND_TIMEOUT", Message: fmt.Sprintf("command %s timed out", cmdID)}
}
