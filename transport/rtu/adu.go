// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"github.com/ibenim/MoModbus/modbus"
	"github.com/ibenim/MoModbus/modbus/crc"
	rtuframe "github.com/ibenim/MoModbus/modbus/rtu"
)

// ApplicationDataUnit is a PDU framed for the serial line.
type ApplicationDataUnit struct {
	UnitID byte
	Pdu    modbus.ProtocolDataUnit
}

// Decode parses raw RTU bytes, recomputing and checking the trailing CRC.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	length := len(raw)
	if length < rtuframe.MinSize {
		return nil, modbus.FrameErrorf("frame length %d below minimum %d", length, rtuframe.MinSize)
	}

	checksum := uint16(raw[length-1])<<8 | uint16(raw[length-2])
	if want := crc.Checksum(raw[:length-2]); checksum != want {
		return nil, modbus.FrameErrorf("crc %04X does not match computed %04X", checksum, want)
	}

	return &ApplicationDataUnit{
		UnitID: raw[0],
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: raw[1],
			Data:         raw[2 : length-2],
		},
	}, nil
}

// Encode frames the PDU for the serial line:
//
//	Unit ID   : 1 byte
//	Function  : 1 byte
//	Data      : 0 up to 252 bytes
//	CRC       : 2 bytes, low byte first
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := len(adu.Pdu.Data) + 4
	if length > rtuframe.MaxSize {
		return nil, modbus.FrameErrorf("frame length %d exceeds maximum %d", length, rtuframe.MaxSize)
	}
	raw := make([]byte, length)

	raw[0] = adu.UnitID
	raw[1] = adu.Pdu.FunctionCode
	copy(raw[2:], adu.Pdu.Data)

	checksum := crc.Checksum(raw[:length-2])
	raw[length-2] = byte(checksum)
	raw[length-1] = byte(checksum >> 8)
	return raw, nil
}

// Verify checks that resp answers req: matching unit id on the same line.
func (adu *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) error {
	if adu.UnitID != resp.UnitID {
		return modbus.FrameErrorf("response unit id %d does not match request %d", resp.UnitID, adu.UnitID)
	}
	return nil
}
