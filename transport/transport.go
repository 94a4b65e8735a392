// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transport defines the byte-stream abstractions shared by the RTU
// and TCP variants. A Listener serves requests on the slave side; a
// Requester issues transactions on the master side. Framing is owned by the
// variant packages; both sides exchange transport-independent PDUs.
package transport

import (
	"context"

	"github.com/ibenim/MoModbus/modbus"
)

// RequestHandler handles one decoded request addressed to unitID and returns
// the response PDU. Returning modbus.ErrNoResponse instructs the listener to
// discard the frame without answering.
type RequestHandler func(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// Listener accepts connections (or owns a serial line) on the slave side and
// runs the handler for every well-formed request frame.
type Listener interface {
	// Start binds the transport and blocks serving requests until ctx is
	// cancelled or a fatal transport error occurs.
	Start(ctx context.Context, handler RequestHandler) error
	// Close releases the transport. Idempotent.
	Close() error
}

// Requester performs one request/response transaction at a time on the
// master side.
type Requester interface {
	// Connect establishes the underlying connection. Bounded by ctx.
	Connect(ctx context.Context) error
	// Send frames pdu for unitID, writes it, and blocks until the matching
	// response is read or the configured timeout elapses.
	Send(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)
	// Close releases the connection. Idempotent.
	Close() error
}
