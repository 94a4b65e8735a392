// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	serialIdleTimeout = 60 * time.Second
)

// serialPort owns the platform serial handle and its lifecycle: lazy open,
// idle close, explicit close.
type serialPort struct {
	serial.Config

	IdleTimeout time.Duration

	mu           sync.Mutex
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

func (p *serialPort) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connect(ctx)
}

// connect opens the serial device if it is not open. Caller must hold the mutex.
func (p *serialPort) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.port == nil {
		port, err := serial.Open(&p.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", p.Config.Address, err)
		}
		p.port = port
	}
	return nil
}

func (p *serialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.close()
}

// close closes the serial device if it is open. Caller must hold the mutex.
func (p *serialPort) close() (err error) {
	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}

func (p *serialPort) startCloseTimer() {
	if p.IdleTimeout <= 0 {
		return
	}
	if p.closeTimer == nil {
		p.closeTimer = time.AfterFunc(p.IdleTimeout, p.closeIdle)
	} else {
		p.closeTimer.Reset(p.IdleTimeout)
	}
}

// closeIdle closes the device if the last activity is past IdleTimeout.
func (p *serialPort) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.IdleTimeout <= 0 {
		return
	}

	if idle := time.Since(p.lastActivity); idle >= p.IdleTimeout {
		slog.Debug("closing serial port after idle timeout", "device", p.Config.Address, "idle", idle)
		p.close()
	}
}

// characterDuration returns the wire time of one character at the given baud
// rate; frameGapDuration returns the 3.5-character inter-frame silence that
// delimits RTU frames. Above 19200 baud the protocol fixes both values.
func characterDuration(baudRate int) time.Duration {
	if baudRate <= 0 || baudRate > 19200 {
		return 750 * time.Microsecond
	}
	return time.Duration(15000000/baudRate) * time.Microsecond
}

func frameGapDuration(baudRate int) time.Duration {
	if baudRate <= 0 || baudRate > 19200 {
		return 1750 * time.Microsecond
	}
	return time.Duration(35000000/baudRate) * time.Microsecond
}
