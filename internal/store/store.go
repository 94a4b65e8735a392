// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package store implements the slave's addressable memory: four independent
// register spaces with fixed capacities. Each space carries its own
// read-write lock, so request handlers and the background updater never
// observe a partial update, and readers of one space do not contend with
// writers of another.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the per-space capacity used when none is configured.
const DefaultCapacity = 1000

// ErrOutOfRange reports an address+quantity outside the space capacity.
var ErrOutOfRange = errors.New("store: address range out of bounds")

// Space identifies one of the four register spaces.
type Space int

const (
	Coils Space = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters
)

func (s Space) String() string {
	switch s {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete inputs"
	case HoldingRegisters:
		return "holding registers"
	case InputRegisters:
		return "input registers"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// bitSpace is a lockable array of single-bit values, stored one per byte.
type bitSpace struct {
	mu   sync.RWMutex
	bits []byte
}

// wordSpace is a lockable array of 16-bit values.
type wordSpace struct {
	mu    sync.RWMutex
	words []uint16
}

// Store owns all four register spaces of one slave instance.
type Store struct {
	coils          bitSpace
	discreteInputs bitSpace
	holding        wordSpace
	input          wordSpace
}

// New creates a Store with the given per-space capacities. A capacity of
// zero or less falls back to DefaultCapacity.
func New(coils, discreteInputs, holdingRegisters, inputRegisters int) *Store {
	return &Store{
		coils:          bitSpace{bits: make([]byte, capOrDefault(coils))},
		discreteInputs: bitSpace{bits: make([]byte, capOrDefault(discreteInputs))},
		holding:        wordSpace{words: make([]uint16, capOrDefault(holdingRegisters))},
		input:          wordSpace{words: make([]uint16, capOrDefault(inputRegisters))},
	}
}

func capOrDefault(n int) int {
	if n <= 0 {
		return DefaultCapacity
	}
	return n
}

// Capacity returns the number of addresses in the given space.
func (s *Store) Capacity(space Space) int {
	switch space {
	case Coils:
		return len(s.coils.bits)
	case DiscreteInputs:
		return len(s.discreteInputs.bits)
	case HoldingRegisters:
		return len(s.holding.words)
	case InputRegisters:
		return len(s.input.words)
	default:
		return 0
	}
}

// ReadCoils reads a range of coils as packed bytes, 8 per byte,
// least significant bit first.
func (s *Store) ReadCoils(address, quantity uint16) ([]byte, error) {
	return s.coils.read(address, quantity)
}

// ReadDiscreteInputs reads a range of discrete inputs as packed bytes.
func (s *Store) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return s.discreteInputs.read(address, quantity)
}

// ReadHoldingRegisters reads a range of holding registers as big-endian bytes.
func (s *Store) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return s.holding.read(address, quantity)
}

// ReadInputRegisters reads a range of input registers as big-endian bytes.
func (s *Store) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return s.input.read(address, quantity)
}

// WriteSingleCoil writes one coil. value is the wire encoding: 0xFF00 for
// ON, 0x0000 for OFF; anything else is rejected.
func (s *Store) WriteSingleCoil(address, value uint16) error {
	var bit byte
	switch value {
	case 0xFF00:
		bit = 1
	case 0x0000:
		bit = 0
	default:
		return fmt.Errorf("store: invalid coil value 0x%04X", value)
	}

	s.coils.mu.Lock()
	defer s.coils.mu.Unlock()

	if int(address) >= len(s.coils.bits) {
		return ErrOutOfRange
	}
	s.coils.bits[address] = bit
	return nil
}

// WriteMultipleCoils writes a range of coils from packed bytes.
func (s *Store) WriteMultipleCoils(address, quantity uint16, data []byte) error {
	if len(data) < (int(quantity)+7)/8 {
		return fmt.Errorf("store: insufficient data for %d coils", quantity)
	}

	s.coils.mu.Lock()
	defer s.coils.mu.Unlock()

	if err := validateRange(address, quantity, len(s.coils.bits)); err != nil {
		return err
	}
	for i := 0; i < int(quantity); i++ {
		s.coils.bits[int(address)+i] = (data[i/8] >> uint(i%8)) & 1
	}
	return nil
}

// WriteSingleRegister writes one holding register.
func (s *Store) WriteSingleRegister(address, value uint16) error {
	s.holding.mu.Lock()
	defer s.holding.mu.Unlock()

	if int(address) >= len(s.holding.words) {
		return ErrOutOfRange
	}
	s.holding.words[address] = value
	return nil
}

// WriteMultipleRegisters writes a range of holding registers from
// big-endian bytes.
func (s *Store) WriteMultipleRegisters(address, quantity uint16, data []byte) error {
	if len(data) < int(quantity)*2 {
		return fmt.Errorf("store: insufficient data for %d registers", quantity)
	}

	s.holding.mu.Lock()
	defer s.holding.mu.Unlock()

	if err := validateRange(address, quantity, len(s.holding.words)); err != nil {
		return err
	}
	for i := 0; i < int(quantity); i++ {
		s.holding.words[int(address)+i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return nil
}

// SetDiscreteInput sets one discrete input directly. Discrete inputs are
// read-only on the wire; this is the device-side mutation path.
func (s *Store) SetDiscreteInput(address uint16, on bool) error {
	s.discreteInputs.mu.Lock()
	defer s.discreteInputs.mu.Unlock()

	if int(address) >= len(s.discreteInputs.bits) {
		return ErrOutOfRange
	}
	var bit byte
	if on {
		bit = 1
	}
	s.discreteInputs.bits[address] = bit
	return nil
}

// SetInputRegister sets one input register directly.
func (s *Store) SetInputRegister(address, value uint16) error {
	s.input.mu.Lock()
	defer s.input.mu.Unlock()

	if int(address) >= len(s.input.words) {
		return ErrOutOfRange
	}
	s.input.words[address] = value
	return nil
}

func (b *bitSpace) read(address, quantity uint16) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := validateRange(address, quantity, len(b.bits)); err != nil {
		return nil, err
	}

	result := make([]byte, (int(quantity)+7)/8)
	for i := 0; i < int(quantity); i++ {
		if b.bits[int(address)+i] != 0 {
			result[i/8] |= 1 << uint(i%8)
		}
	}
	return result, nil
}

func (w *wordSpace) read(address, quantity uint16) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if err := validateRange(address, quantity, len(w.words)); err != nil {
		return nil, err
	}

	result := make([]byte, int(quantity)*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], w.words[int(address)+i])
	}
	return result, nil
}

func validateRange(address, quantity uint16, capacity int) error {
	if quantity == 0 {
		return fmt.Errorf("store: quantity must be greater than 0")
	}
	if int(address)+int(quantity) > capacity {
		return ErrOutOfRange
	}
	return nil
}
