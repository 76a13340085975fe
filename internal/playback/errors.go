package playback

import (
	"errors"
	"strings"
)

// ErrorClass buckets playback failures by how the controller reacts
type ErrorClass int

const (
	// ErrorClassNetwork covers transient transport failures. Retried
	// with backoff up to the configured budget.
	ErrorClassNetwork ErrorClass = iota
	// ErrorClassMedia covers decode and demux failures. Retried once
	// per attachment.
	ErrorClassMedia
	// ErrorClassFatal is not retried
	ErrorClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassNetwork:
		return "network"
	case ErrorClassMedia:
		return "media"
	default:
		return "fatal"
	}
}

// ClassifiedError carries an explicit class. Providers and the player
// wrap errors in this when they know the nature of the failure.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	return e.Class.String() + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NetworkError wraps err as a transient network failure
func NetworkError(err error) error {
	return &ClassifiedError{Class: ErrorClassNetwork, Err: err}
}

// MediaError wraps err as a decode failure
func MediaError(err error) error {
	return &ClassifiedError{Class: ErrorClassMedia, Err: err}
}

// FatalError wraps err as unrecoverable
func FatalError(err error) error {
	return &ClassifiedError{Class: ErrorClassFatal, Err: err}
}

var networkMarkers = []string{
	"timeout",
	"connection",
	"network",
	"temporarily unavailable",
	"tls",
	"dns",
	"eof",
	"reset by peer",
	"5xx",
	"503",
	"502",
}

var mediaMarkers = []string{
	"decode",
	"demux",
	"codec",
	"corrupt",
	"invalid data",
	"unsupported format",
}

// Classify determines how the controller should react to err. Explicit
// classifications win; otherwise the error text is matched against
// known mpv and transport failure signatures, defaulting to fatal.
func Classify(err error) ErrorClass {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range networkMarkers {
		if strings.Contains(msg, marker) {
			return ErrorClassNetwork
		}
	}
	for _, marker := range mediaMarkers {
		if strings.Contains(msg, marker) {
			return ErrorClassMedia
		}
	}
	return ErrorClassFatal
}
