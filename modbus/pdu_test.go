// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package modbus

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewReadRequest(t *testing.T) {
	pdu, err := NewReadRequest(FuncCodeReadHoldingRegisters, 0x0102, 0x0003)
	if err != nil {
		t.Fatalf("NewReadRequest failed: %v", err)
	}
	if pdu.FunctionCode != 0x03 {
		t.Errorf("FunctionCode = %02X, want 03", pdu.FunctionCode)
	}
	if !bytes.Equal(pdu.Data, []byte{0x01, 0x02, 0x00, 0x03}) {
		t.Errorf("Data = %X, want 01020003", pdu.Data)
	}
}

func TestNewReadRequest_Validation(t *testing.T) {
	tests := []struct {
		name     string
		funcCode byte
		address  uint16
		quantity uint16
	}{
		{"QuantityZero", FuncCodeReadCoils, 0, 0},
		{"TooManyBits", FuncCodeReadCoils, 0, 2001},
		{"TooManyRegisters", FuncCodeReadInputRegisters, 0, 126},
		{"AddressOverflow", FuncCodeReadHoldingRegisters, 0xFFFF, 2},
		{"NotARead", FuncCodeWriteSingleCoil, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReadRequest(tt.funcCode, tt.address, tt.quantity)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}

	// The limits themselves are legal.
	if _, err := NewReadRequest(FuncCodeReadCoils, 0, 2000); err != nil {
		t.Errorf("2000 bits rejected: %v", err)
	}
	if _, err := NewReadRequest(FuncCodeReadHoldingRegisters, 0, 125); err != nil {
		t.Errorf("125 registers rejected: %v", err)
	}
}

func TestNewWriteRequests(t *testing.T) {
	pdu := NewWriteSingleCoilRequest(9, true)
	if !bytes.Equal(pdu.Data, []byte{0x00, 0x09, 0xFF, 0x00}) {
		t.Errorf("coil on Data = %X, want 0009FF00", pdu.Data)
	}
	pdu = NewWriteSingleCoilRequest(9, false)
	if !bytes.Equal(pdu.Data, []byte{0x00, 0x09, 0x00, 0x00}) {
		t.Errorf("coil off Data = %X, want 00090000", pdu.Data)
	}

	pdu, err := NewWriteMultipleCoilsRequest(0, []bool{true, false, true, true})
	if err != nil {
		t.Fatalf("NewWriteMultipleCoilsRequest failed: %v", err)
	}
	if !bytes.Equal(pdu.Data, []byte{0x00, 0x00, 0x00, 0x04, 0x01, 0x0D}) {
		t.Errorf("Data = %X, want 00000004010D", pdu.Data)
	}

	pdu, err = NewWriteMultipleRegistersRequest(1, []uint16{10, 20})
	if err != nil {
		t.Fatalf("NewWriteMultipleRegistersRequest failed: %v", err)
	}
	if !bytes.Equal(pdu.Data, []byte{0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x00, 0x14}) {
		t.Errorf("Data = %X", pdu.Data)
	}

	if _, err := NewWriteMultipleCoilsRequest(0, make([]bool, 1969)); err == nil {
		t.Error("1969 coils accepted, limit is 1968")
	}
	if _, err := NewWriteMultipleRegistersRequest(0, make([]uint16, 124)); err == nil {
		t.Error("124 registers accepted, limit is 123")
	}
}

func TestParseResponse_Read(t *testing.T) {
	req, _ := NewReadRequest(FuncCodeReadCoils, 0, 10)
	resp := ProtocolDataUnit{FunctionCode: FuncCodeReadCoils, Data: []byte{0x02, 0x33, 0x03}}

	result, err := ParseResponse(req, resp)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	want := []bool{true, true, false, false, true, true, false, false, true, true}
	for i, b := range want {
		if result.Bits[i] != b {
			t.Errorf("bit %d = %v, want %v", i, result.Bits[i], b)
		}
	}

	req, _ = NewReadRequest(FuncCodeReadHoldingRegisters, 0, 2)
	resp = ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: []byte{0x04, 0xAB, 0xCD, 0x00, 0x2A}}

	result, err = ParseResponse(req, resp)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if result.Registers[0] != 0xABCD || result.Registers[1] != 42 {
		t.Errorf("Registers = %v, want [43981 42]", result.Registers)
	}
}

func TestParseResponse_Exception(t *testing.T) {
	req, _ := NewReadRequest(FuncCodeReadHoldingRegisters, 0, 1)
	resp := ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters | ExceptionFlag, Data: []byte{ExceptionCodeIllegalDataAddress}}

	_, err := ParseResponse(req, resp)
	var exc *Exception
	if !errors.As(err, &exc) {
		t.Fatalf("err = %v, want Exception", err)
	}
	if exc.FunctionCode != FuncCodeReadHoldingRegisters {
		t.Errorf("FunctionCode = %02X, want 03", exc.FunctionCode)
	}
	if exc.ExceptionCode != ExceptionCodeIllegalDataAddress {
		t.Errorf("ExceptionCode = %02X, want 02", exc.ExceptionCode)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	readReq, _ := NewReadRequest(FuncCodeReadHoldingRegisters, 0, 2)
	writeReq := NewWriteSingleRegisterRequest(1, 42)

	tests := []struct {
		name string
		req  ProtocolDataUnit
		resp ProtocolDataUnit
	}{
		{
			"FunctionMismatch",
			readReq,
			ProtocolDataUnit{FunctionCode: FuncCodeReadCoils, Data: []byte{0x01, 0x00}},
		},
		{
			"ByteCountShort",
			readReq,
			ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: []byte{0x04, 0xAB, 0xCD}},
		},
		{
			"EchoMismatch",
			writeReq,
			ProtocolDataUnit{FunctionCode: FuncCodeWriteSingleRegister, Data: []byte{0x00, 0x01, 0x00, 0x99}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.req, tt.resp)
			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				t.Errorf("err = %v, want FrameError", err)
			}
		})
	}
}

func TestPackUnpackBits(t *testing.T) {
	values := []bool{true, false, true, true, false, false, true, false, true}
	packed := PackBits(values)
	if !bytes.Equal(packed, []byte{0x4D, 0x01}) {
		t.Errorf("PackBits = %X, want 4D01", packed)
	}

	unpacked := UnpackBits(packed, uint16(len(values)))
	for i, v := range values {
		if unpacked[i] != v {
			t.Errorf("bit %d = %v, want %v", i, unpacked[i], v)
		}
	}
}
