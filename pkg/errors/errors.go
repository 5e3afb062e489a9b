// Package errors defines agentbus's error taxonomy (spec §7): values,
// never exceptions, propagated by the caller. It follows the teacher
// repo's AppError shape, retargeted from HTTP/CRUD error codes to the
// bus's own codes and recovery policy.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Init-time codes. runtime.New returns the fatal ones; AffinityFailed is
// built by producers and workers when pinning fails at Run time, and is
// logged and counted rather than returned.
const (
	CodeCapacityNotPowerOfTwo = "CAPACITY_NOT_POWER_OF_TWO"
	CodeAllocationFailed      = "ALLOCATION_FAILED"
	CodeAffinityFailed        = "AFFINITY_FAILED"
	CodeCoreCountExceeded     = "CORE_COUNT_EXCEEDED"
)

// Hot-path codes. Full is reported to the direct caller and recovered
// there; CorruptFrame and ChecksumMismatch are counted, never propagated
// — they only appear here so a host's statistics/alerting surface has a
// stable code to key off when translating a snapshot into alerts.
const (
	CodeFull             = "FULL"
	CodeCorruptFrame     = "CORRUPT_FRAME"
	CodeChecksumMismatch = "CHECKSUM_MISMATCH"
)

// AppError pairs a stable code with a human message and an optional
// wrapped cause.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func CapacityNotPowerOfTwo(field string) *AppError {
	return New(CodeCapacityNotPowerOfTwo, fmt.Sprintf("%s must be a power of two", field), nil)
}

func AllocationFailed(err error) *AppError {
	return New(CodeAllocationFailed, "failed to allocate ring buffer memory", err)
}

func AffinityFailed(coreID int, err error) *AppError {
	return New(CodeAffinityFailed, fmt.Sprintf("failed to pin thread to core %d", coreID), err)
}

func CoreCountExceeded(err error) *AppError {
	return New(CodeCoreCountExceeded, "requested core topology exceeds available cores", err)
}

// GRPCStatus projects an AppError onto a gRPC status, for hosts that
// expose the runtime's init/admin surface over gRPC.
func GRPCStatus(err error) *status.Status {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeCapacityNotPowerOfTwo, CodeCoreCountExceeded:
			return status.New(codes.InvalidArgument, appErr.Message)
		case CodeAllocationFailed, CodeAffinityFailed:
			return status.New(codes.ResourceExhausted, appErr.Message)
		case CodeFull:
			return status.New(codes.ResourceExhausted, appErr.Message)
		}
	}
	return status.New(codes.Unknown, err.Error())
}

// Wrap is a utility to wrap an error with a message.
func Wrap(err error, msg string) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }
