package detector

import (
	"errors"
	"fmt"
	"net/http"
)

type Category string

const (
	CategoryRateLimited Category = "rate_limited"
	CategoryStatus      Category = "status"
	CategoryTransport   Category = "transport"
)

var ErrParse = errors.New("detection payload could not be parsed")

// TransportError is returned when the detection call itself failed: the
// endpoint was unreachable or answered with a non-success status.
type TransportError struct {
	StatusCode int
	Category   Category
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("detection endpoint returned %d (%s): %s", e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("detection endpoint unreachable: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) RateLimited() bool {
	return e.Category == CategoryRateLimited
}

func newStatusError(status int, message string) *TransportError {
	category := CategoryStatus
	if status == http.StatusTooManyRequests {
		category = CategoryRateLimited
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &TransportError{StatusCode: status, Category: category, Message: message}
}

// IsRateLimited reports whether err carries a rate-limited TransportError.
func IsRateLimited(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.RateLimited()
}
