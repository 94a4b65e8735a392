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
	"time"

	"github.com/ibenim/MoModbus/internal/config"
	"github.com/ibenim/MoModbus/modbus"
	rtuframe "github.com/ibenim/MoModbus/modbus/rtu"
)

// Client is a Modbus RTU master. It implements transport.Requester over a
// serial line. Only one transaction is outstanding at any time.
type Client struct {
	rtuSerialTransporter
}

// NewClient allocates and initializes an RTU Client.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{}

	client.serialPort.Config.Address = cfg.Device
	client.serialPort.Config.BaudRate = cfg.BaudRate
	client.serialPort.Config.DataBits = cfg.DataBits
	client.serialPort.Config.StopBits = cfg.StopBits
	client.serialPort.Config.Parity = cfg.Parity
	client.serialPort.Config.Timeout = cfg.Timeout

	client.IdleTimeout = serialIdleTimeout
	return client
}

// Send frames pdu for unitID, writes it, and reads the matching response.
func (mb *Client) Send(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	adu := &ApplicationDataUnit{
		UnitID: unitID,
		Pdu:    pdu,
	}

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	respBytes, err := mb.rtuSerialTransporter.Send(ctx, aduBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	respAdu, err := Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	return respAdu.Pdu, nil
}

// rtuSerialTransporter implements the underlying serial exchange.
type rtuSerialTransporter struct {
	serialPort
}

func (mb *rtuSerialTransporter) Send(ctx context.Context, aduRequest []byte) ([]byte, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.connect(ctx); err != nil {
		return nil, &modbus.TransportError{Err: err}
	}
	mb.lastActivity = time.Now()
	mb.startCloseTimer()

	slog.Debug("send to modbus slave", "request", hex.EncodeToString(aduRequest))
	if _, err := mb.port.Write(aduRequest); err != nil {
		mb.close()
		return nil, &modbus.TransportError{Err: err}
	}

	// Hold off reading until the request and response have had time to
	// travel the wire, plus the mandatory inter-frame silence.
	bytesToRead := rtuframe.CalculateResponseLength(aduRequest)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mb.turnaroundDelay(len(aduRequest) + bytesToRead)):
	}

	data, err := rtuframe.ReadResponse(aduRequest[0], aduRequest[1], mb.port, time.Now().Add(mb.Config.Timeout))
	if err != nil {
		// A quiet line is a timeout, whether the deadline expired or the
		// port's own read timeout fired first.
		if errors.Is(err, modbus.ErrTimeout) || errors.Is(err, io.EOF) || isTimeout(err) {
			return nil, modbus.ErrTimeout
		}
		var fe *modbus.FrameError
		if errors.As(err, &fe) {
			return nil, err
		}
		mb.close()
		return nil, &modbus.TransportError{Err: err}
	}
	slog.Debug("recv from modbus slave", "response", hex.EncodeToString(data))
	return data, nil
}

// turnaroundDelay is the wire time of chars characters plus one frame gap.
func (mb *rtuSerialTransporter) turnaroundDelay(chars int) time.Duration {
	return characterDuration(mb.BaudRate)*time.Duration(chars) + frameGapDuration(mb.BaudRate)
}
