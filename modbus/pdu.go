// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"encoding/binary"
)

// Result carries the decoded payload of a successful response. Bits is
// populated for coil/discrete-input functions, Registers for register
// functions. Write responses echo the written values.
type Result struct {
	Bits      []bool
	Registers []uint16
}

// NewReadRequest builds a read request PDU for function codes 1-4.
func NewReadRequest(funcCode byte, address, quantity uint16) (ProtocolDataUnit, error) {
	if !IsReadFunction(funcCode) {
		return ProtocolDataUnit{}, ValidationErrorf("function 0x%02X is not a read function", funcCode)
	}
	max := uint16(MaxQuantityReadRegisters)
	if IsBitFunction(funcCode) {
		max = MaxQuantityReadBits
	}
	if quantity < 1 || quantity > max {
		return ProtocolDataUnit{}, ValidationErrorf("quantity %d out of range [1, %d]", quantity, max)
	}
	if int(address)+int(quantity) > 0x10000 {
		return ProtocolDataUnit{}, ValidationErrorf("address %d + quantity %d exceeds address space", address, quantity)
	}

	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], address)
	binary.BigEndian.PutUint16(data[2:4], quantity)
	return ProtocolDataUnit{FunctionCode: funcCode, Data: data}, nil
}

// NewWriteSingleCoilRequest builds a write-single-coil request (0x05).
func NewWriteSingleCoilRequest(address uint16, on bool) ProtocolDataUnit {
	value := CoilOff
	if on {
		value = CoilOn
	}
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], address)
	binary.BigEndian.PutUint16(data[2:4], value)
	return ProtocolDataUnit{FunctionCode: FuncCodeWriteSingleCoil, Data: data}
}

// NewWriteSingleRegisterRequest builds a write-single-register request (0x06).
func NewWriteSingleRegisterRequest(address, value uint16) ProtocolDataUnit {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], address)
	binary.BigEndian.PutUint16(data[2:4], value)
	return ProtocolDataUnit{FunctionCode: FuncCodeWriteSingleRegister, Data: data}
}

// NewWriteMultipleCoilsRequest builds a write-multiple-coils request (0x0F).
func NewWriteMultipleCoilsRequest(address uint16, values []bool) (ProtocolDataUnit, error) {
	quantity := len(values)
	if quantity < 1 || quantity > MaxQuantityWriteBits {
		return ProtocolDataUnit{}, ValidationErrorf("coil count %d out of range [1, %d]", quantity, MaxQuantityWriteBits)
	}
	if int(address)+quantity > 0x10000 {
		return ProtocolDataUnit{}, ValidationErrorf("address %d + quantity %d exceeds address space", address, quantity)
	}

	packed := PackBits(values)
	data := make([]byte, 5+len(packed))
	binary.BigEndian.PutUint16(data[0:2], address)
	binary.BigEndian.PutUint16(data[2:4], uint16(quantity))
	data[4] = byte(len(packed))
	copy(data[5:], packed)
	return ProtocolDataUnit{FunctionCode: FuncCodeWriteMultipleCoils, Data: data}, nil
}

// NewWriteMultipleRegistersRequest builds a write-multiple-registers request (0x10).
func NewWriteMultipleRegistersRequest(address uint16, values []uint16) (ProtocolDataUnit, error) {
	quantity := len(values)
	if quantity < 1 || quantity > MaxQuantityWriteRegisters {
		return ProtocolDataUnit{}, ValidationErrorf("register count %d out of range [1, %d]", quantity, MaxQuantityWriteRegisters)
	}
	if int(address)+quantity > 0x10000 {
		return ProtocolDataUnit{}, ValidationErrorf("address %d + quantity %d exceeds address space", address, quantity)
	}

	data := make([]byte, 5+quantity*2)
	binary.BigEndian.PutUint16(data[0:2], address)
	binary.BigEndian.PutUint16(data[2:4], uint16(quantity))
	data[4] = byte(quantity * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(data[5+i*2:], v)
	}
	return ProtocolDataUnit{FunctionCode: FuncCodeWriteMultipleRegisters, Data: data}, nil
}

// ParseResponse decodes a response PDU against the request that produced it.
// An exception response is surfaced as *Exception; a payload that does not
// match the request shape is a *FrameError.
func ParseResponse(req, resp ProtocolDataUnit) (*Result, error) {
	if resp.IsException() {
		if len(resp.Data) < 1 {
			return nil, FrameErrorf("exception response without exception code")
		}
		return nil, &Exception{
			FunctionCode:  resp.FunctionCode &^ ExceptionFlag,
			ExceptionCode: resp.Data[0],
		}
	}
	if resp.FunctionCode != req.FunctionCode {
		return nil, FrameErrorf("response function 0x%02X does not match request 0x%02X",
			resp.FunctionCode, req.FunctionCode)
	}

	switch req.FunctionCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		quantity := binary.BigEndian.Uint16(req.Data[2:4])
		expected := (int(quantity) + 7) / 8
		if len(resp.Data) < 1 || int(resp.Data[0]) != expected || len(resp.Data) != 1+expected {
			return nil, FrameErrorf("bit response byte count mismatch")
		}
		return &Result{Bits: UnpackBits(resp.Data[1:], quantity)}, nil

	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		quantity := binary.BigEndian.Uint16(req.Data[2:4])
		expected := int(quantity) * 2
		if len(resp.Data) < 1 || int(resp.Data[0]) != expected || len(resp.Data) != 1+expected {
			return nil, FrameErrorf("register response byte count mismatch")
		}
		regs := make([]uint16, quantity)
		for i := range regs {
			regs[i] = binary.BigEndian.Uint16(resp.Data[1+i*2:])
		}
		return &Result{Registers: regs}, nil

	case FuncCodeWriteSingleCoil:
		if !bytes.Equal(resp.Data, req.Data) {
			return nil, FrameErrorf("write single coil echo mismatch")
		}
		return &Result{Bits: []bool{binary.BigEndian.Uint16(req.Data[2:4]) == CoilOn}}, nil

	case FuncCodeWriteSingleRegister:
		if !bytes.Equal(resp.Data, req.Data) {
			return nil, FrameErrorf("write single register echo mismatch")
		}
		return &Result{Registers: []uint16{binary.BigEndian.Uint16(req.Data[2:4])}}, nil

	case FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
		if len(resp.Data) != 4 || !bytes.Equal(resp.Data, req.Data[0:4]) {
			return nil, FrameErrorf("write multiple confirmation mismatch")
		}
		return &Result{}, nil

	default:
		return nil, FrameErrorf("unsupported function code 0x%02X", req.FunctionCode)
	}
}

// PackBits packs booleans into bytes, 8 per byte, least significant bit first.
func PackBits(values []bool) []byte {
	packed := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	return packed
}

// UnpackBits expands packed bytes into quantity booleans.
func UnpackBits(data []byte, quantity uint16) []bool {
	values := make([]bool, quantity)
	for i := range values {
		values[i] = (data[i/8]>>uint(i%8))&1 != 0
	}
	return values
}
