// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements the CRC-16 checksum used by Modbus RTU framing
// (polynomial 0xA001, reflected, initial value 0xFFFF).
package crc

// CRC is an incremental CRC-16 accumulator. The zero value is not ready for
// use; call Reset first.
type CRC struct {
	value uint16
}

// Reset initializes the accumulator and returns it for chaining.
func (crc *CRC) Reset() *CRC {
	crc.value = 0xFFFF
	return crc
}

// PushBytes folds bs into the checksum and returns the accumulator.
func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.value ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc.value&1 != 0 {
				crc.value = crc.value>>1 ^ 0xA001
			} else {
				crc.value >>= 1
			}
		}
	}
	return crc
}

// Value returns the current checksum. The low byte is transmitted first on
// the wire.
func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum computes the CRC-16 of bs in one call.
func Checksum(bs []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(bs).Value()
}
