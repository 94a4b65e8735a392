// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package local provides an in-process Requester that short-circuits the
// wire: requests are handed straight to a RequestHandler. It backs tests
// and any deployment where master and slave share a process.
package local

import (
	"context"
	"errors"

	"github.com/ibenim/MoModbus/modbus"
	"github.com/ibenim/MoModbus/transport"
)

// Requester implements transport.Requester against an in-process handler.
type Requester struct {
	handler transport.RequestHandler
}

// NewRequester creates a Requester backed by handler.
func NewRequester(handler transport.RequestHandler) *Requester {
	return &Requester{handler: handler}
}

// Send hands the PDU to the handler. A request the handler discards
// (modbus.ErrNoResponse) surfaces the way it would on a real wire: as a
// timeout.
func (r *Requester) Send(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	resp, err := r.handler(ctx, unitID, pdu)
	if errors.Is(err, modbus.ErrNoResponse) {
		return modbus.ProtocolDataUnit{}, modbus.ErrTimeout
	}
	return resp, err
}

// Connect is a no-op.
func (r *Requester) Connect(ctx context.Context) error { return nil }

// Close is a no-op.
func (r *Requester) Close() error { return nil }
