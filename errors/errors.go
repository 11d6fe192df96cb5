// Package errors provides standardized error handling for the transit layer.
// It includes error classification, sentinel variables for well-known
// conditions, structured error types for protocol-level failures, and
// helper functions for consistent error wrapping across the system.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Inbound packet errors
	ErrMissingPacket   = errors.New("missing packet")
	ErrMissingPayload  = errors.New("missing packet payload")
	ErrVersionMismatch = errors.New("protocol version mismatch")

	// Outbound request errors
	ErrQueueFull       = errors.New("pending request queue is full")
	ErrRequestRejected = errors.New("request rejected")
	ErrRemoteFailure   = errors.New("remote call failed")

	// Connection and lifecycle errors
	ErrNotConnected       = errors.New("transporter not connected")
	ErrAlreadyConnected   = errors.New("transit already connected")
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrDisconnecting      = errors.New("transit is disconnecting")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ProtocolVersionMismatchError is raised when a decoded payload carries a
// protocol version other than the local one. The packet is dropped.
type ProtocolVersionMismatchError struct {
	Sender   string
	Expected string
	Actual   string
}

// Error implements the error interface
func (e *ProtocolVersionMismatchError) Error() string {
	return fmt.Sprintf("protocol version mismatch: node %q sent version %q, expected %q",
		e.Sender, e.Actual, e.Expected)
}

// Is reports whether this error matches ErrVersionMismatch
func (e *ProtocolVersionMismatchError) Is(target error) bool {
	return target == ErrVersionMismatch
}

// QueueFullError is raised when an outbound request arrives while the pending
// request table already holds its configured limit of entries.
type QueueFullError struct {
	Action string
	NodeID string
	Size   int
	Limit  int
}

// Error implements the error interface
func (e *QueueFullError) Error() string {
	return fmt.Sprintf("pending request queue is full: action %q to node %q (size %d, limit %d)",
		e.Action, e.NodeID, e.Size, e.Limit)
}

// Is reports whether this error matches ErrQueueFull
func (e *QueueFullError) Is(target error) bool {
	return target == ErrQueueFull
}

// RequestRejectedError completes a pending call aborted by peer disconnect.
type RequestRejectedError struct {
	Action string
	NodeID string
}

// Error implements the error interface
func (e *RequestRejectedError) Error() string {
	return fmt.Sprintf("request %q rejected: node %q is disconnected", e.Action, e.NodeID)
}

// Is reports whether this error matches ErrRequestRejected
func (e *RequestRejectedError) Is(target error) bool {
	return target == ErrRequestRejected
}

// RemoteError is reconstructed from a peer's failed RESPONSE. Field values
// are copied verbatim from the wire envelope; Message carries a
// "(NodeID: <sender>)" suffix identifying the failing node.
type RemoteError struct {
	Name    string
	Message string
	Code    int
	Type    string
	NodeID  string
	Data    []byte
	Stack   string
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return e.Message
}

// Is reports whether this error matches ErrRemoteFailure
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteFailure
}

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrQueueFull) ||
		errors.Is(err, ErrRequestRejected) ||
		errors.Is(err, ErrSubscriptionFailed)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrMissingPacket) ||
		errors.Is(err, ErrMissingPayload) ||
		errors.Is(err, ErrVersionMismatch) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return false
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Default to transient for unknown errors to allow retry
	return ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}
