// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ibenim/MoModbus/modbus"
)

// Outcome is one sampling tick: the decoded result or the error that
// transaction produced.
type Outcome struct {
	Result *modbus.Result
	Err    error
	At     time.Time
}

// Sample runs the same transaction once immediately and then once per
// interval, emitting each outcome on the returned channel.
//
// Timeouts, frame errors and protocol exceptions are emitted and the loop
// keeps going: the next tick gets a fresh chance. A transport or validation
// error is emitted and ends the loop, since retrying cannot help. Cancelling
// the context closes the channel. A non-positive interval yields a single
// validation-error outcome.
func (c *Client) Sample(ctx context.Context, interval time.Duration, funcCode byte, address, quantity uint16, values []uint16) <-chan Outcome {
	if interval <= 0 {
		out := make(chan Outcome, 1)
		out <- Outcome{
			Err: modbus.ValidationErrorf("sampling interval %v must be positive", interval),
			At:  time.Now(),
		}
		close(out)
		return out
	}

	out := make(chan Outcome)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			result, err := c.Perform(ctx, funcCode, address, quantity, values)
			if ctx.Err() != nil {
				return
			}

			select {
			case out <- Outcome{Result: result, Err: err, At: time.Now()}:
			case <-ctx.Done():
				return
			}

			if err != nil && fatal(err) {
				slog.Error("sampling terminated", "error", err)
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func fatal(err error) bool {
	var transportErr *modbus.TransportError
	var validationErr *modbus.ValidationError
	return errors.As(err, &transportErr) || errors.As(err, &validationErr)
}
