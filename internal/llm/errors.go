package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a transport failure.
type ErrorKind int

const (
	// Transient failures (request timeouts) are retried with backoff.
	Transient ErrorKind = iota
	// Fatal failures (bad status, bad envelope) abort the call immediately.
	Fatal
)

func (k ErrorKind) String() string {
	if k == Transient {
		return "transient"
	}
	return "fatal"
}

// TransportError is returned by Client.Chat for every failure mode.
type TransportError struct {
	Kind   ErrorKind
	Status int // HTTP status code, 0 when the request never completed
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm transport (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("llm transport (%s): %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable transport failure.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == Transient
}

// IsFatal reports whether err is a non-retryable transport failure.
func IsFatal(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == Fatal
}
