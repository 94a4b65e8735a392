// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibenim/MoModbus/modbus"
)

const (
	tcpTimeout = 10 * time.Second
)

// Client is a Modbus TCP master. It implements transport.Requester over one
// persistent connection, dialed on Connect (or lazily on the first Send) and
// reused across transactions until Close. Responses are matched to requests
// by transaction id.
type Client struct {
	Address string
	Timeout time.Duration

	transactionID uint32 // atomic counter

	mu   sync.Mutex
	conn net.Conn
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string) *Client {
	return &Client{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Connect dials the slave. Bounded by the client timeout and ctx.
func (mb *Client) Connect(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.connect(ctx)
}

// connect dials if not connected. Caller must hold the mutex.
func (mb *Client) connect(ctx context.Context) error {
	if mb.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: mb.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", mb.Address)
	if err != nil {
		return &modbus.TransportError{Err: err}
	}
	mb.conn = conn
	return nil
}

// Send frames pdu for unitID, writes it, and reads the response with the
// matching transaction id. The deadline for the whole exchange is the
// client timeout.
func (mb *Client) Send(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.connect(ctx); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	tid := uint16(atomic.AddUint32(&mb.transactionID, 1))
	adu := NewADU(tid, unitID, pdu)

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	deadline := time.Now().Add(mb.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := mb.conn.SetDeadline(deadline); err != nil {
		return modbus.ProtocolDataUnit{}, mb.fail(err)
	}

	slog.Debug("send to modbus tcp slave", "request", hex.EncodeToString(aduBytes))
	if _, err := mb.conn.Write(aduBytes); err != nil {
		return modbus.ProtocolDataUnit{}, mb.fail(err)
	}

	// A transaction that timed out earlier may have left its response
	// queued on the stream. Discard frames whose id does not match the
	// current request and keep reading; the connection deadline bounds
	// the whole loop.
	for {
		respBytes, err := readFrame(mb.conn)
		if err != nil {
			return modbus.ProtocolDataUnit{}, mb.fail(err)
		}
		slog.Debug("recv from modbus tcp slave", "response", hex.EncodeToString(respBytes))

		respAdu, err := Decode(respBytes)
		if err != nil {
			// Undecodable bytes leave the stream unsynchronized.
			return modbus.ProtocolDataUnit{}, mb.fail(err)
		}
		if err := adu.Verify(respAdu); err != nil {
			slog.Debug("discarding stale response", "transaction", respAdu.TransactionID, "want", adu.TransactionID)
			continue
		}

		return respAdu.Pdu, nil
	}
}

// fail maps an I/O error onto the error taxonomy. Deadline expiry keeps the
// connection: the response may simply be late, and the next Send discards
// any frame whose transaction id does not match its own. Anything else
// tears the connection down so the next Send redials.
func (mb *Client) fail(err error) error {
	if isDeadline(err) {
		return modbus.ErrTimeout
	}
	if mb.conn != nil {
		mb.conn.Close()
		mb.conn = nil
	}
	var fe *modbus.FrameError
	if errors.As(err, &fe) {
		return err
	}
	return &modbus.TransportError{Err: err}
}

// Close releases the connection. Idempotent.
func (mb *Client) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.conn == nil {
		return nil
	}
	err := mb.conn.Close()
	mb.conn = nil
	return err
}

// readFrame reads one complete MBAP frame: the fixed header first, then
// exactly the number of bytes the length field declares.
func readFrame(conn io.Reader) ([]byte, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}

	length := int(header[4])<<8 | int(header[5])
	if length < 2 || length > tcpMaxSize-6 {
		return nil, modbus.FrameErrorf("declared length %d out of range", length)
	}

	frame := make([]byte, 6+length)
	copy(frame, header)
	if _, err := io.ReadFull(conn, frame[6:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func isDeadline(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
