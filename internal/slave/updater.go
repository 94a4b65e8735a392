// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"context"
	"log/slog"
	"time"

	"github.com/ibenim/MoModbus/internal/store"
)

// updater re-randomizes the data store on a fixed interval, emulating a
// live device for masters under test. It is owned by the Slave and stops
// with it; a tick in progress completes before the store is released.
type updater struct {
	store            *store.Store
	interval         time.Duration
	maxRegisterValue uint16
}

func newUpdater(st *store.Store, interval time.Duration, maxRegisterValue uint16) *updater {
	return &updater{
		store:            st,
		interval:         interval,
		maxRegisterValue: maxRegisterValue,
	}
}

func (u *updater) run(ctx context.Context) {
	slog.Info("background register updater started", "interval", u.interval, "maxRegisterValue", u.maxRegisterValue)
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("background register updater stopped")
			return
		case <-ticker.C:
			u.store.UpdateRandom(u.maxRegisterValue)
			slog.Debug("re-randomized holding and input registers")
		}
	}
}
