// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ibenim/MoModbus/modbus"
)

func TestADU_EncodeDecode(t *testing.T) {
	pdu := modbus.ProtocolDataUnit{
		FunctionCode: 0x03,
		Data:         []byte{0x00, 0x01, 0x00, 0x02},
	}
	adu := NewADU(0x1234, 0x11, pdu)

	raw, err := adu.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// MBAP: TransID 1234, Proto 0000, Length 0006, Unit 11
	want := []byte{0x12, 0x34, 0x00, 0x00, 0x00, 0x06, 0x11, 0x03, 0x00, 0x01, 0x00, 0x02}
	if !bytes.Equal(raw, want) {
		t.Errorf("Encoded ADU mismatch.\nWant: %X\nGot:  %X", want, raw)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.TransactionID != 0x1234 {
		t.Errorf("TransactionID = %04X, want 1234", decoded.TransactionID)
	}
	if decoded.UnitID != 0x11 {
		t.Errorf("UnitID = %02X, want 11", decoded.UnitID)
	}
	if decoded.Pdu.FunctionCode != 0x03 || !bytes.Equal(decoded.Pdu.Data, pdu.Data) {
		t.Errorf("PDU mismatch: %02X %X", decoded.Pdu.FunctionCode, decoded.Pdu.Data)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"TooShort", []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x01}},
		{"BadProtocolID", []byte{0x00, 0x01, 0x00, 0x07, 0x00, 0x02, 0x01, 0x03}},
		{"LengthMismatch", []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 0x01, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			var frameErr *modbus.FrameError
			if !errors.As(err, &frameErr) {
				t.Errorf("Decode() err = %v, want FrameError", err)
			}
		})
	}
}

func TestVerify_TransactionMismatch(t *testing.T) {
	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x02, 0xAA, 0xBB}}
	req := NewADU(1, 1, pdu)
	resp := NewADU(2, 1, pdu)

	if err := req.Verify(resp); err == nil {
		t.Error("Verify accepted a response with a foreign transaction id")
	}
}
