// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"math/rand"
)

// Randomize fills every space with independent random values: coils and
// discrete inputs with random bits, holding and input registers with values
// uniform in [0, maxRegisterValue]. Used to emulate a live device at startup.
func (s *Store) Randomize(maxRegisterValue uint16) {
	s.coils.randomize()
	s.discreteInputs.randomize()
	s.holding.randomize(maxRegisterValue)
	s.input.randomize(maxRegisterValue)
}

// UpdateRandom re-randomizes the register spaces within the same bound. The
// background updater calls this on every tick to present fresh values to a
// polling master.
func (s *Store) UpdateRandom(maxRegisterValue uint16) {
	s.holding.randomize(maxRegisterValue)
	s.input.randomize(maxRegisterValue)
}

func (b *bitSpace) randomize() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.bits {
		b.bits[i] = byte(rand.Intn(2))
	}
}

func (w *wordSpace) randomize(max uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.words {
		w.words[i] = uint16(rand.Intn(int(max) + 1))
	}
}
