// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtu provides frame size arithmetic and an incremental response
// reader for Modbus RTU. RTU frames carry no length prefix, so the reader
// derives the expected byte count from the function code.
package rtu

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/ibenim/MoModbus/modbus"
)

const (
	stateUnitID = 1 << iota
	stateFunctionCode
	stateReadLength
	stateReadPayload
	stateCRC
)

// CalculateResponseLength returns the expected length of the response ADU
// for the given request ADU.
func CalculateResponseLength(adu []byte) int {
	length := MinSize
	switch adu[1] {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count/8
		if count%8 != 0 {
			length++
		}
	case modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count*2
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		length += 4
	default:
	}
	return length
}

// ReadResponse reads an RTU response frame incrementally from r. It scans
// for the expected unit id and function code, then consumes the rest of the
// frame based on the function's payload shape. An exception function code
// (request code with the high bit set) is accepted and returned as a
// complete frame for the caller to decode.
func ReadResponse(unitID, functionCode byte, r io.Reader, deadline time.Time) ([]byte, error) {
	if r == nil {
		return nil, modbus.FrameErrorf("reader is nil")
	}

	buf := make([]byte, 1)
	data := make([]byte, MaxSize)

	state := stateUnitID
	var length, toRead byte
	var n, crcCount int

	for {
		if time.Now().After(deadline) {
			return nil, modbus.ErrTimeout
		}

		if _, err := io.ReadAtLeast(r, buf, 1); err != nil {
			return nil, err
		}

		switch state {
		case stateUnitID:
			if buf[0] == unitID {
				state = stateFunctionCode
				data[n] = buf[0]
				n++
			}
		case stateFunctionCode:
			switch buf[0] {
			case functionCode:
				switch functionCode {
				case modbus.FuncCodeReadCoils,
					modbus.FuncCodeReadDiscreteInputs,
					modbus.FuncCodeReadHoldingRegisters,
					modbus.FuncCodeReadInputRegisters:
					state = stateReadLength
				case modbus.FuncCodeWriteSingleCoil,
					modbus.FuncCodeWriteSingleRegister,
					modbus.FuncCodeWriteMultipleCoils,
					modbus.FuncCodeWriteMultipleRegisters:
					state = stateReadPayload
					toRead = 4
				default:
					return nil, modbus.FrameErrorf("function code 0x%02X not handled", functionCode)
				}
				data[n] = buf[0]
				n++
			case functionCode | modbus.ExceptionFlag:
				state = stateReadPayload
				data[n] = buf[0]
				n++
				toRead = 1
			default:
				// Noise between the unit id and a frame from another
				// transaction; restart the scan.
				state = stateUnitID
				n = 0
			}
		case stateReadLength:
			length = buf[0]
			if length == 0 || length > MaxSize-5 {
				return nil, modbus.FrameErrorf("invalid length byte %d", length)
			}
			toRead = length
			data[n] = length
			n++
			state = stateReadPayload
		case stateReadPayload:
			data[n] = buf[0]
			toRead--
			n++
			if toRead == 0 {
				state = stateCRC
			}
		case stateCRC:
			data[n] = buf[0]
			crcCount++
			n++
			if crcCount == 2 {
				return data[:n], nil
			}
		}
	}
}
