// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package modbus

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestExceptionError(t *testing.T) {
	err := &Exception{FunctionCode: 0x03, ExceptionCode: ExceptionCodeIllegalDataAddress}

	msg := err.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}

	wrapped := fmt.Errorf("request failed: %w", err)
	var exc *Exception
	if !errors.As(wrapped, &exc) {
		t.Error("Exception not recoverable through wrapping")
	}
	if exc.ExceptionCode != ExceptionCodeIllegalDataAddress {
		t.Errorf("ExceptionCode = %d, want 2", exc.ExceptionCode)
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Err: io.ErrClosedPipe}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Error("TransportError does not unwrap to its cause")
	}
}

func TestErrorKindsAreDistinct(t *testing.T) {
	frameErr := FrameErrorf("checksum mismatch")
	validationErr := ValidationErrorf("quantity out of range")

	var fe *FrameError
	var ve *ValidationError
	if !errors.As(frameErr, &fe) || errors.As(frameErr, &ve) {
		t.Error("FrameError misclassified")
	}
	if !errors.As(validationErr, &ve) || errors.As(validationErr, &fe) {
		t.Error("ValidationError misclassified")
	}
	if errors.Is(frameErr, ErrTimeout) {
		t.Error("FrameError matches ErrTimeout")
	}
}
