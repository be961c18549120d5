// Package roomerr is the Room Client's error taxonomy (spec §7).
package roomerr

import (
	"errors"
	"fmt"
)

var (
	// ErrSignalingTimeout is returned when a signaling request exceeded
	// config.RequestTimeout across all retries.
	ErrSignalingTimeout = errors.New("server request error")

	// ErrNotFoundInSFU is the local stand-in for mediasoup's
	// notFoundInMediasoupError marker: the SFU no longer knows the
	// producer/consumer/transport being referenced.
	ErrNotFoundInSFU = errors.New("not found in sfu")

	// ErrMediaAcquisition covers getUserMedia/screen-capture failure or
	// denial.
	ErrMediaAcquisition = errors.New("could not access media device")

	// ErrDeviceCapability is returned when device.canProduce(kind) is
	// false for the requested kind.
	ErrDeviceCapability = errors.New("device cannot produce this kind of media")

	// ErrInvalidArgument is a programmatic misuse error, e.g. requesting
	// a device change without restart.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSignalingDisconnected marks a channel closed permanently ("io
	// server disconnect"), as opposed to a transient disconnect.
	ErrSignalingDisconnected = errors.New("signaling channel disconnected")

	// ErrAlreadyInProgress is returned when a single-flighted per-source
	// operation is invoked while another is still running.
	ErrAlreadyInProgress = errors.New("operation already in progress for this source")

	// ErrClosed is returned by operations invoked after Close().
	ErrClosed = errors.New("room client closed")
)

// OpError wraps a sentinel error with the operation and optional detail
// that produced it, mirroring the teacher's TransferError.
type OpError struct {
	Op      string
	Err     error
	Details string
}

func (e *OpError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// New wraps err as having occurred during op.
func New(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

// Wrap wraps err as having occurred during op, with extra detail.
func Wrap(op string, err error, details string) *OpError {
	return &OpError{Op: op, Err: err, Details: details}
}
