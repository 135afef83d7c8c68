package domain

import "errors"

// RetriableError is implemented by errors that may clear up on the next attempt
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable reports whether any error in err's chain says another attempt may succeed
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport failure talking to a remote service
type NetworkError struct {
	Op        string // Operation that failed (e.g., "quote", "dial", "write")
	Err       error  // Underlying error
	Retriable bool
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a failure worth retrying on the next poll, such as a timeout or reset
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError wraps a failure that repeats on every attempt, such as a malformed request URL
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnauthorized is returned when the data provider rejects the credentials. Not retriable.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the provider throttles a request. Transient.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedResponse is returned for unexpected statuses or undecodable bodies
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNotConnected is returned when sending to the advisory service while it is offline
	ErrNotConnected = errors.New("AI Council is not connected")

	// ErrUnknownSymbol is returned when a symbol is not in the registry
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrAlertNotFound is returned when removing an alert that does not exist
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidCondition is returned for alert conditions other than above/below
	ErrInvalidCondition = errors.New("invalid alert condition")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
