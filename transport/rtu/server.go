// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/grid-x/serial"
	"github.com/ibenim/MoModbus/internal/config"
	"github.com/ibenim/MoModbus/modbus"
	rtuframe "github.com/ibenim/MoModbus/modbus/rtu"
	"github.com/ibenim/MoModbus/transport"
)

// Server is a Modbus RTU slave listener: it owns the serial line, assembles
// frames by inter-frame silence, and answers requests via the handler.
//
// RTU has no length prefix. A frame ends when the line stays quiet for at
// least 3.5 character-times, so the read timeout on the port is set to that
// gap: any read that returns no bytes closes out the frame being assembled.
type Server struct {
	Config config.SerialConfig

	mu     sync.Mutex
	port   io.ReadWriteCloser
	closed bool
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Start opens the serial device and serves until ctx is cancelled or the
// port fails.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	gap := frameGapDuration(s.Config.BaudRate)

	port, err := serial.Open(&serial.Config{
		Address:  s.Config.Device,
		BaudRate: s.Config.BaudRate,
		DataBits: s.Config.DataBits,
		StopBits: s.Config.StopBits,
		Parity:   s.Config.Parity,
		Timeout:  gap,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		port.Close()
		return nil
	}
	s.port = port
	s.mu.Unlock()

	slog.Info("RTU server listening", "device", s.Config.Device, "baudRate", s.Config.BaudRate, "frameGap", gap)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return s.scanLoop(ctx, port, handler)
}

// scanLoop assembles frames from the port. Bytes are accumulated until a
// read comes back empty, meaning the line was silent for the inter-frame
// gap; the accumulated bytes are then one complete frame.
func (s *Server) scanLoop(ctx context.Context, port io.ReadWriteCloser, handler transport.RequestHandler) error {
	buf := make([]byte, rtuframe.MaxSize)
	frame := make([]byte, 0, rtuframe.MaxSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			frame = append(frame, buf[:n]...)
			if len(frame) > rtuframe.MaxSize {
				// Line garbage longer than any legal frame; resync.
				frame = frame[:0]
			}
			if err == nil {
				continue
			}
		}

		// Quiet gap (or terminal error): the pending frame is complete.
		if len(frame) > 0 {
			s.serveFrame(ctx, port, frame, handler)
			frame = frame[:0]
		}

		if err != nil && !isTimeout(err) {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return &modbus.TransportError{Err: err}
		}
	}
}

// serveFrame validates one assembled frame and writes the response. Frames
// with a bad CRC and frames the handler refuses (foreign unit id) are
// discarded without answering.
func (s *Server) serveFrame(ctx context.Context, port io.Writer, frame []byte, handler transport.RequestHandler) {
	adu, err := Decode(frame)
	if err != nil {
		slog.Debug("discarding malformed RTU frame", "frame", hex.EncodeToString(frame), "err", err)
		return
	}

	respPdu, err := handler(ctx, adu.UnitID, adu.Pdu)
	if err != nil {
		if errors.Is(err, modbus.ErrNoResponse) {
			slog.Debug("discarding RTU frame for unserved unit", "unit", adu.UnitID)
			return
		}
		slog.Error("RTU request handler failed", "unit", adu.UnitID, "err", err)
		respPdu = modbus.NewExceptionPDU(adu.Pdu.FunctionCode, modbus.ExceptionCodeSlaveDeviceFailure)
	}

	respAdu := &ApplicationDataUnit{UnitID: adu.UnitID, Pdu: respPdu}
	respBytes, err := respAdu.Encode()
	if err != nil {
		slog.Error("failed to encode RTU response", "err", err)
		return
	}
	if _, err := port.Write(respBytes); err != nil {
		slog.Error("failed to write RTU response", "err", err)
	}
}

// Close releases the serial port. Idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}

// isTimeout reports whether err is a read timeout, which on an RTU line is
// the frame delimiter rather than a failure.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
