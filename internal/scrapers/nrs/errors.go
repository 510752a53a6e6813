package nrs

import (
	"errors"
	"fmt"
)

var (
	ErrTransportExhausted  = errors.New("failed to reach or understand the host after retrying")
	ErrDatasetChanged      = errors.New("the data set changed during crawling, a re-run is needed")
	ErrEmptyDataset        = errors.New("the data set is empty")
	ErrTokenNotFound       = errors.New("postback token not found in response")
	ErrRecordCountNotFound = errors.New("record count not found in response")
	ErrMarkupNotFound      = errors.New("expected markup not found in response")
)

// TransportError is returned once every attempt of a request has failed.
type TransportError struct {
	Method   string
	Url      string
	Attempts int
	// Status is the status code of the last response, 0 if there was none.
	Status int
	// Body is the body of the last response, if there was one.
	Body string
	// Err is the last transport-level error, if there was one.
	Err error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf(
		"%s %s: %s (attempts: %d, status: %d)",
		e.Method, e.Url, ErrTransportExhausted.Error(), e.Attempts, e.Status,
	)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransportExhausted}
	}
	return []error{ErrTransportExhausted, e.Err}
}
