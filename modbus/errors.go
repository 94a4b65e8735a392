// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when no response arrives within the configured
// window. Recoverable: a sampling loop continues to the next tick.
var ErrTimeout = errors.New("modbus: request timed out")

// ErrNoResponse signals that a request must be discarded without answering.
// Slave transports treat it as "send nothing" (CRC garbage, foreign unit id).
var ErrNoResponse = errors.New("modbus: no response")

// FrameError reports malformed or corrupted transport bytes: a failed CRC,
// a truncated frame, or an MBAP header that does not match the payload.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "modbus: frame error: " + e.Reason
}

// FrameErrorf builds a FrameError from a format string.
func FrameErrorf(format string, args ...interface{}) *FrameError {
	return &FrameError{Reason: fmt.Sprintf(format, args...)}
}

// Exception is an exception response returned by a slave. It is conclusive
// for the transaction and is not retried automatically.
type Exception struct {
	FunctionCode  byte
	ExceptionCode byte
}

func (e *Exception) Error() string {
	return fmt.Sprintf("modbus: exception %s (function 0x%02X)",
		exceptionName(e.ExceptionCode), e.FunctionCode)
}

func exceptionName(code byte) string {
	switch code {
	case ExceptionCodeIllegalFunction:
		return "illegal function"
	case ExceptionCodeIllegalDataAddress:
		return "illegal data address"
	case ExceptionCodeIllegalDataValue:
		return "illegal data value"
	case ExceptionCodeSlaveDeviceFailure:
		return "slave device failure"
	default:
		return fmt.Sprintf("code 0x%02X", code)
	}
}

// TransportError reports a lost or unreadable connection. Fatal: it
// terminates the current operation or sampling loop.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "modbus: transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError reports a request that violates address, count or value
// constraints. Raised before any I/O, never sent on the wire.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "modbus: invalid request: " + e.Reason
}

// ValidationErrorf builds a ValidationError from a format string.
func ValidationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
