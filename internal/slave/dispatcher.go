// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"encoding/binary"
	"errors"

	"github.com/ibenim/MoModbus/internal/store"
	"github.com/ibenim/MoModbus/modbus"
)

// Dispatcher maps an incoming PDU's function code to a data store operation
// and builds the response PDU. Every failure becomes an exception PDU: the
// dispatcher never refuses to answer, that is the transport's decision.
type Dispatcher struct {
	store *store.Store
}

// NewDispatcher creates a Dispatcher over st.
func NewDispatcher(st *store.Store) *Dispatcher {
	return &Dispatcher{store: st}
}

// Process executes the function code against the data store.
func (d *Dispatcher) Process(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	switch req.FunctionCode {
	case modbus.FuncCodeReadCoils:
		return d.handleRead(req, modbus.MaxQuantityReadBits, d.store.ReadCoils)
	case modbus.FuncCodeReadDiscreteInputs:
		return d.handleRead(req, modbus.MaxQuantityReadBits, d.store.ReadDiscreteInputs)
	case modbus.FuncCodeReadHoldingRegisters:
		return d.handleRead(req, modbus.MaxQuantityReadRegisters, d.store.ReadHoldingRegisters)
	case modbus.FuncCodeReadInputRegisters:
		return d.handleRead(req, modbus.MaxQuantityReadRegisters, d.store.ReadInputRegisters)
	case modbus.FuncCodeWriteSingleCoil:
		return d.handleWriteSingle(req, d.store.WriteSingleCoil)
	case modbus.FuncCodeWriteSingleRegister:
		return d.handleWriteSingle(req, d.store.WriteSingleRegister)
	case modbus.FuncCodeWriteMultipleCoils:
		return d.handleWriteMultiple(req, modbus.MaxQuantityWriteBits, bitByteCount, d.store.WriteMultipleCoils)
	case modbus.FuncCodeWriteMultipleRegisters:
		return d.handleWriteMultiple(req, modbus.MaxQuantityWriteRegisters, wordByteCount, d.store.WriteMultipleRegisters)
	default:
		return modbus.NewExceptionPDU(req.FunctionCode, modbus.ExceptionCodeIllegalFunction)
	}
}

func (d *Dispatcher) handleRead(req modbus.ProtocolDataUnit, maxQuantity uint16, read func(address, quantity uint16) ([]byte, error)) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.NewExceptionPDU(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > maxQuantity {
		return modbus.NewExceptionPDU(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	data, err := read(address, quantity)
	if err != nil {
		return d.exceptionFor(req.FunctionCode, err)
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

func (d *Dispatcher) handleWriteSingle(req modbus.ProtocolDataUnit, write func(address, value uint16) error) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.NewExceptionPDU(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := write(address, value); err != nil {
		return d.exceptionFor(req.FunctionCode, err)
	}

	return req // echo
}

func (d *Dispatcher) handleWriteMultiple(req modbus.ProtocolDataUnit, maxQuantity uint16, byteCount func(quantity uint16) int, write func(address, quantity uint16, data []byte) error) modbus.ProtocolDataUnit {
	if len(req.Data) < 6 {
		return modbus.NewExceptionPDU(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	declared := int(req.Data[4])

	if quantity < 1 || quantity > maxQuantity {
		return modbus.NewExceptionPDU(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	if declared != byteCount(quantity) || len(req.Data)-5 != declared {
		return modbus.NewExceptionPDU(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	if err := write(address, quantity, req.Data[5:]); err != nil {
		return d.exceptionFor(req.FunctionCode, err)
	}

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         req.Data[0:4], // echo address + quantity
	}
}

// exceptionFor maps a store error onto the protocol exception codes:
// capacity violations are IllegalDataAddress, malformed values are
// IllegalDataValue.
func (d *Dispatcher) exceptionFor(funcCode byte, err error) modbus.ProtocolDataUnit {
	if errors.Is(err, store.ErrOutOfRange) {
		return modbus.NewExceptionPDU(funcCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	return modbus.NewExceptionPDU(funcCode, modbus.ExceptionCodeIllegalDataValue)
}

func bitByteCount(quantity uint16) int  { return (int(quantity) + 7) / 8 }
func wordByteCount(quantity uint16) int { return int(quantity) * 2 }
