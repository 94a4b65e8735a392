// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package master implements the Modbus client side: single-shot requests
// and a cancellable fixed-interval sampling loop, over either transport.
package master

import (
	"context"
	"fmt"

	"github.com/ibenim/MoModbus/internal/config"
	"github.com/ibenim/MoModbus/modbus"
	"github.com/ibenim/MoModbus/transport"
	"github.com/ibenim/MoModbus/transport/rtu"
	"github.com/ibenim/MoModbus/transport/tcp"
)

// Client is a Modbus master bound to one transport connection and one
// remote unit id. Requests are issued one at a time.
type Client struct {
	requester transport.Requester
	unitID    byte
}

// Connect opens a transport per the configuration and returns a Client.
// The connection is held until Close.
func Connect(ctx context.Context, cfg config.TransportConfig) (*Client, error) {
	var requester transport.Requester
	switch cfg.Protocol {
	case "rtu":
		requester = rtu.NewClient(cfg.Serial)
	case "tcp":
		client := tcp.NewClient(cfg.Address)
		if cfg.Timeout > 0 {
			client.Timeout = cfg.Timeout
		}
		requester = client
	default:
		return nil, fmt.Errorf("unknown protocol %q", cfg.Protocol)
	}

	if err := requester.Connect(ctx); err != nil {
		return nil, err
	}

	return &Client{
		requester: requester,
		unitID:    cfg.UnitID,
	}, nil
}

// NewClient wraps an existing requester. Used by tests and in-process setups.
func NewClient(requester transport.Requester, unitID byte) *Client {
	return &Client{requester: requester, unitID: unitID}
}

// Perform executes one transaction: build the request PDU for the function
// code, send it, and decode the matching response.
//
// The values argument parameterizes writes: one word for function codes 5
// and 6 (for 5, zero is OFF and anything else is ON), one word per coil for
// 15, and the register words for 16. Read functions (1-4) ignore it.
func (c *Client) Perform(ctx context.Context, funcCode byte, address, quantity uint16, values []uint16) (*modbus.Result, error) {
	req, err := c.buildRequest(funcCode, address, quantity, values)
	if err != nil {
		return nil, err
	}

	resp, err := c.requester.Send(ctx, c.unitID, req)
	if err != nil {
		return nil, err
	}

	return modbus.ParseResponse(req, resp)
}

// Close releases the transport connection. Idempotent.
func (c *Client) Close() error {
	return c.requester.Close()
}

func (c *Client) buildRequest(funcCode byte, address, quantity uint16, values []uint16) (modbus.ProtocolDataUnit, error) {
	switch funcCode {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		return modbus.NewReadRequest(funcCode, address, quantity)

	case modbus.FuncCodeWriteSingleCoil:
		if len(values) != 1 {
			return modbus.ProtocolDataUnit{}, modbus.ValidationErrorf("function 5 requires exactly one value, got %d", len(values))
		}
		return modbus.NewWriteSingleCoilRequest(address, values[0] != 0), nil

	case modbus.FuncCodeWriteSingleRegister:
		if len(values) != 1 {
			return modbus.ProtocolDataUnit{}, modbus.ValidationErrorf("function 6 requires exactly one value, got %d", len(values))
		}
		return modbus.NewWriteSingleRegisterRequest(address, values[0]), nil

	case modbus.FuncCodeWriteMultipleCoils:
		if len(values) == 0 {
			return modbus.ProtocolDataUnit{}, modbus.ValidationErrorf("function 15 requires at least one value")
		}
		bits := make([]bool, len(values))
		for i, v := range values {
			bits[i] = v != 0
		}
		return modbus.NewWriteMultipleCoilsRequest(address, bits)

	case modbus.FuncCodeWriteMultipleRegisters:
		if len(values) == 0 {
			return modbus.ProtocolDataUnit{}, modbus.ValidationErrorf("function 16 requires at least one value")
		}
		return modbus.NewWriteMultipleRegistersRequest(address, values)

	default:
		return modbus.ProtocolDataUnit{}, modbus.ValidationErrorf("unsupported function code %d", funcCode)
	}
}
