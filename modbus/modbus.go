// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

// ProtocolDataUnit is the transport-independent part of a Modbus message:
// the function code plus its payload.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// Supported function codes.
const (
	FuncCodeReadCoils            = 0x01
	FuncCodeReadDiscreteInputs   = 0x02
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeReadInputRegisters   = 0x04

	FuncCodeWriteSingleCoil        = 0x05
	FuncCodeWriteSingleRegister    = 0x06
	FuncCodeWriteMultipleCoils     = 0x0F
	FuncCodeWriteMultipleRegisters = 0x10
)

// ExceptionFlag is set on the function code of an exception response.
const ExceptionFlag byte = 0x80

// Exception codes.
const (
	ExceptionCodeIllegalFunction    = 0x01
	ExceptionCodeIllegalDataAddress = 0x02
	ExceptionCodeIllegalDataValue   = 0x03
	ExceptionCodeSlaveDeviceFailure = 0x04
)

// Quantity limits defined by the protocol.
const (
	MaxQuantityReadBits       = 2000
	MaxQuantityWriteBits      = 1968
	MaxQuantityReadRegisters  = 125
	MaxQuantityWriteRegisters = 123
)

// Coil values on the wire for function code 0x05.
const (
	CoilOn  uint16 = 0xFF00
	CoilOff uint16 = 0x0000
)

// IsException reports whether the PDU is an exception response.
func (pdu ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&ExceptionFlag != 0
}

// IsReadFunction reports whether code is one of the four read function codes.
func IsReadFunction(code byte) bool {
	switch code {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		return true
	}
	return false
}

// IsBitFunction reports whether code addresses coils or discrete inputs.
func IsBitFunction(code byte) bool {
	switch code {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeWriteSingleCoil, FuncCodeWriteMultipleCoils:
		return true
	}
	return false
}

// NewExceptionPDU builds an exception response for the given request
// function code.
func NewExceptionPDU(funcCode, exceptionCode byte) ProtocolDataUnit {
	return ProtocolDataUnit{
		FunctionCode: funcCode | ExceptionFlag,
		Data:         []byte{exceptionCode},
	}
}
