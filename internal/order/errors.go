package order

import "errors"

var (
	ErrKilled        = errors.New("trading is killed")
	ErrNoExchange    = errors.New("no exchange keys configured for live mode")
	ErrExposureLimit = errors.New("amount exceeds MAX_POSITION_USD")
	ErrInvalidOrder  = errors.New("invalid order")
)

// RejectionError is a request refused before any exchange or store call.
type RejectionError struct {
	Code   string // killed | no_exchange | exposure_limit | invalid
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Err.Error()
}

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(code string, err error, reason string) *RejectionError {
	return &RejectionError{Code: code, Reason: reason, Err: err}
}
