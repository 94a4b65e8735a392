// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtu

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/ibenim/MoModbus/modbus"
	"github.com/ibenim/MoModbus/modbus/crc"
)

type mockPort struct {
	io.Reader
	io.Writer
}

func (m *mockPort) Close() error { return nil }

// buildADU frames a PDU for unitID with the checksum appended low byte first.
func buildADU(unitID byte, pdu []byte) []byte {
	adu := append([]byte{unitID}, pdu...)
	sum := crc.Checksum(adu)
	return append(adu, byte(sum), byte(sum>>8))
}

func TestScanLoop(t *testing.T) {
	// ReadHoldingRegisters: unit 01, func 03, addr 0, quantity 1
	reqADU := buildADU(0x01, []byte{0x03, 0x00, 0x00, 0x00, 0x01})

	reader := bytes.NewReader(reqADU)
	writer := &bytes.Buffer{}
	port := &mockPort{Reader: reader, Writer: writer}

	s := &Server{}
	served := false
	handler := func(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		if unitID != 0x01 {
			t.Errorf("Handler got unit %v, want 1", unitID)
		}
		if pdu.FunctionCode != 0x03 {
			t.Errorf("Handler got func %v, want 3", pdu.FunctionCode)
		}
		served = true
		return modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x02, 0xAA, 0xBB}}, nil
	}

	// The exhausted reader returns EOF, which ends the loop after the
	// pending frame is served.
	if err := s.scanLoop(context.Background(), port, handler); err != nil {
		t.Fatalf("scanLoop returned %v", err)
	}
	if !served {
		t.Fatal("Handler not called")
	}

	wantResp := buildADU(0x01, []byte{0x03, 0x02, 0xAA, 0xBB})
	if !bytes.Equal(writer.Bytes(), wantResp) {
		t.Errorf("Response mismatch.\nWant: %X\nGot:  %X", wantResp, writer.Bytes())
	}
}

func TestScanLoop_CorruptedFrame(t *testing.T) {
	reqADU := buildADU(0x01, []byte{0x03, 0x00, 0x00, 0x00, 0x01})
	reqADU[len(reqADU)-1] ^= 0xFF // break the checksum

	reader := bytes.NewReader(reqADU)
	writer := &bytes.Buffer{}
	port := &mockPort{Reader: reader, Writer: writer}

	s := &Server{}
	handler := func(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		t.Error("Handler called for a frame with a bad checksum")
		return modbus.ProtocolDataUnit{}, nil
	}

	if err := s.scanLoop(context.Background(), port, handler); err != nil {
		t.Fatalf("scanLoop returned %v", err)
	}
	if writer.Len() != 0 {
		t.Errorf("Wrote %X for a corrupted frame, want silence", writer.Bytes())
	}
}

func TestScanLoop_NoResponse(t *testing.T) {
	// The handler refusing a unit id must leave the line silent.
	reqADU := buildADU(0x05, []byte{0x03, 0x00, 0x00, 0x00, 0x01})

	reader := bytes.NewReader(reqADU)
	writer := &bytes.Buffer{}
	port := &mockPort{Reader: reader, Writer: writer}

	s := &Server{}
	handler := func(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		return modbus.ProtocolDataUnit{}, modbus.ErrNoResponse
	}

	if err := s.scanLoop(context.Background(), port, handler); err != nil {
		t.Fatalf("scanLoop returned %v", err)
	}
	if writer.Len() != 0 {
		t.Errorf("Wrote %X for a refused frame, want silence", writer.Bytes())
	}
}

func TestScanLoop_HandlerError(t *testing.T) {
	reqADU := buildADU(0x01, []byte{0x03, 0x00, 0x00, 0x00, 0x01})

	reader := bytes.NewReader(reqADU)
	writer := &bytes.Buffer{}
	port := &mockPort{Reader: reader, Writer: writer}

	s := &Server{}
	handler := func(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
		return modbus.ProtocolDataUnit{}, io.ErrUnexpectedEOF
	}

	if err := s.scanLoop(context.Background(), port, handler); err != nil {
		t.Fatalf("scanLoop returned %v", err)
	}

	// A failing handler answers with a slave-device-failure exception.
	wantResp := buildADU(0x01, []byte{0x83, 0x04})
	if !bytes.Equal(writer.Bytes(), wantResp) {
		t.Errorf("Response mismatch.\nWant: %X\nGot:  %X", wantResp, writer.Bytes())
	}
}
