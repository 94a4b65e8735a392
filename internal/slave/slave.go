// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package slave hosts the Modbus server side: an addressable data store, a
// function-code dispatcher, and a listener on either transport, plus an
// optional background updater that mutates registers on a timer.
package slave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ibenim/MoModbus/internal/config"
	"github.com/ibenim/MoModbus/internal/store"
	"github.com/ibenim/MoModbus/modbus"
	"github.com/ibenim/MoModbus/transport"
	"github.com/ibenim/MoModbus/transport/rtu"
	"github.com/ibenim/MoModbus/transport/tcp"
)

// Slave is a running Modbus server instance. It owns the data store,
// answers requests addressed to its unit id, and optionally re-randomizes
// registers on a fixed interval.
type Slave struct {
	store      *store.Store
	dispatcher *Dispatcher
	listener   transport.Listener

	unitID        byte
	acceptAnyUnit bool

	updater *updater

	closeOnce sync.Once
}

// Connect builds a Slave from transport and store configuration. The slave
// is not serving until Run is called.
func Connect(transportCfg config.TransportConfig, storeCfg config.StoreConfig) (*Slave, error) {
	var listener transport.Listener
	switch transportCfg.Protocol {
	case "rtu":
		listener = rtu.NewServer(transportCfg.Serial)
	case "tcp":
		listener = tcp.NewServer(transportCfg.Address)
	default:
		return nil, fmt.Errorf("unknown protocol %q", transportCfg.Protocol)
	}

	st := store.New(storeCfg.Coils, storeCfg.DiscreteInputs, storeCfg.HoldingRegisters, storeCfg.InputRegisters)
	if storeCfg.RandomInit {
		st.Randomize(storeCfg.MaxRegisterValue)
		slog.Info("initialized data store with random values", "maxRegisterValue", storeCfg.MaxRegisterValue)
	}

	s := &Slave{
		store:         st,
		dispatcher:    NewDispatcher(st),
		listener:      listener,
		unitID:        transportCfg.UnitID,
		acceptAnyUnit: transportCfg.AcceptAnyUnit,
	}

	if storeCfg.RandomUpdate {
		s.updater = newUpdater(st, storeCfg.UpdateInterval, storeCfg.MaxRegisterValue)
	}

	return s, nil
}

// Run serves requests until ctx is cancelled or the transport fails. The
// background updater, when configured, runs alongside request handling and
// stops with the server.
func (s *Slave) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if s.updater != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.updater.run(ctx)
		}()
	}

	err := s.listener.Start(ctx, s.handle)

	cancel()
	wg.Wait()
	return err
}

// Close releases the transport. Idempotent.
func (s *Slave) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.listener.Close()
	})
	return err
}

// Store exposes the slave's data store for in-process inspection.
func (s *Slave) Store() *store.Store {
	return s.store
}

// handle filters by unit id and dispatches. A request for a unit this slave
// does not serve is discarded without response.
func (s *Slave) handle(ctx context.Context, unitID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if !s.acceptAnyUnit && unitID != s.unitID {
		return modbus.ProtocolDataUnit{}, modbus.ErrNoResponse
	}

	resp := s.dispatcher.Process(pdu)
	if resp.IsException() {
		slog.Debug("request rejected", "unit", unitID, "function", pdu.FunctionCode, "exception", resp.Data)
	}
	return resp, nil
}
