// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"github.com/ibenim/MoModbus/modbus"
)

const (
	// HeaderSize is the MBAP header length: transaction id, protocol id,
	// length field, unit id.
	HeaderSize = 7

	tcpMinSize = 8
	tcpMaxSize = 260
)

// ApplicationDataUnit is a PDU framed with the MBAP header.
type ApplicationDataUnit struct {
	TransactionID uint16
	ProtocolID    uint16
	Length        uint16
	UnitID        byte
	Pdu           modbus.ProtocolDataUnit
}

// Decode parses raw MBAP bytes. The protocol id must be zero and the length
// field must cover exactly the unit id, function code and payload received.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	if len(raw) < tcpMinSize {
		return nil, modbus.FrameErrorf("frame length %d below minimum %d", len(raw), tcpMinSize)
	}

	adu := &ApplicationDataUnit{}
	adu.TransactionID = uint16(raw[0])<<8 | uint16(raw[1])
	adu.ProtocolID = uint16(raw[2])<<8 | uint16(raw[3])
	adu.Length = uint16(raw[4])<<8 | uint16(raw[5])

	if adu.ProtocolID != 0 {
		return nil, modbus.FrameErrorf("protocol id %d, expected 0", adu.ProtocolID)
	}
	if int(adu.Length) != len(raw)-6 {
		return nil, modbus.FrameErrorf("length field %d does not match %d received bytes", adu.Length, len(raw)-6)
	}

	adu.UnitID = raw[6]
	adu.Pdu.FunctionCode = raw[7]
	adu.Pdu.Data = raw[8:]
	return adu, nil
}

// NewADU frames pdu for unitID, filling in the length field.
func NewADU(transactionID uint16, unitID byte, pdu modbus.ProtocolDataUnit) *ApplicationDataUnit {
	return &ApplicationDataUnit{
		TransactionID: transactionID,
		ProtocolID:    0,
		Length:        uint16(2 + len(pdu.Data)), // unit id + function code + payload
		UnitID:        unitID,
		Pdu:           pdu,
	}
}

// Encode serializes the ADU:
//
//	Transaction ID : 2 bytes
//	Protocol ID    : 2 bytes (always 0)
//	Length         : 2 bytes
//	Unit ID        : 1 byte
//	Function       : 1 byte
//	Data           : 0 up to 252 bytes
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := len(adu.Pdu.Data) + 8
	if length > tcpMaxSize {
		return nil, modbus.FrameErrorf("frame length %d exceeds maximum %d", length, tcpMaxSize)
	}
	raw := make([]byte, length)

	raw[0] = byte(adu.TransactionID >> 8)
	raw[1] = byte(adu.TransactionID)
	raw[2] = byte(adu.ProtocolID >> 8)
	raw[3] = byte(adu.ProtocolID)
	raw[4] = byte(adu.Length >> 8)
	raw[5] = byte(adu.Length)
	raw[6] = adu.UnitID
	raw[7] = adu.Pdu.FunctionCode
	copy(raw[8:], adu.Pdu.Data)

	return raw, nil
}

// Verify checks that resp answers req by transaction id.
func (adu *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) error {
	if resp.TransactionID != adu.TransactionID {
		return modbus.FrameErrorf("response transaction id %d does not match request %d",
			resp.TransactionID, adu.TransactionID)
	}
	return nil
}
