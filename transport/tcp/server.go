// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ibenim/MoModbus/modbus"
	"github.com/ibenim/MoModbus/transport"
)

// Server is a Modbus TCP slave listener. Each accepted connection is served
// by its own goroutine; the frame boundary is the MBAP length field, so
// reads loop until the declared byte count has arrived.
type Server struct {
	Address string

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewServer creates a new TCP Server.
func NewServer(address string) *Server {
	return &Server{
		Address: address,
	}
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	slog.Info("Modbus TCP server listening", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			slog.Error("failed to accept connection", "err", err)
			continue
		}
		go s.handleConnection(ctx, conn, handler)
	}
}

// Addr returns the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close closes the server listener. Idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, handler transport.RequestHandler) {
	defer conn.Close()
	slog.Info("TCP client connected", "addr", conn.RemoteAddr())

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		raw, err := readFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("TCP client disconnected", "addr", conn.RemoteAddr())
			} else if ctx.Err() == nil {
				slog.Error("failed to read from connection", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		adu, err := Decode(raw)
		if err != nil {
			// A broken frame leaves the stream unsynchronized.
			slog.Error("failed to decode TCP request, dropping connection", "err", err)
			return
		}

		respPdu, err := handler(ctx, adu.UnitID, adu.Pdu)
		if err != nil {
			if errors.Is(err, modbus.ErrNoResponse) {
				slog.Debug("discarding TCP request for unserved unit", "unit", adu.UnitID)
				continue
			}
			slog.Error("TCP request handler failed", "unit", adu.UnitID, "err", err)
			respPdu = modbus.NewExceptionPDU(adu.Pdu.FunctionCode, modbus.ExceptionCodeSlaveDeviceFailure)
		}

		respAdu := NewADU(adu.TransactionID, adu.UnitID, respPdu)
		respRaw, err := respAdu.Encode()
		if err != nil {
			slog.Error("failed to encode TCP response", "err", err)
			continue
		}

		if _, err := conn.Write(respRaw); err != nil {
			slog.Error("failed to write response to connection", "err", err)
			return
		}
	}
}
