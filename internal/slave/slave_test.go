// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package slave

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ibenim/MoModbus/internal/config"
	"github.com/ibenim/MoModbus/internal/master"
	"github.com/ibenim/MoModbus/modbus"
)

func testConfigs(t *testing.T) (config.TransportConfig, config.StoreConfig) {
	t.Helper()

	// Pre-allocate a loopback port for both ends.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	transportCfg := config.TransportConfig{
		Protocol: "tcp",
		Address:  addr,
		UnitID:   1,
		Timeout:  time.Second,
	}
	storeCfg := config.StoreConfig{
		Coils:            100,
		DiscreteInputs:   100,
		HoldingRegisters: 100,
		InputRegisters:   100,
	}
	return transportCfg, storeCfg
}

func startSlave(t *testing.T, transportCfg config.TransportConfig, storeCfg config.StoreConfig) (*Slave, context.CancelFunc) {
	t.Helper()

	s, err := Connect(transportCfg, storeCfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	// Wait for the listener to come up.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", transportCfg.Address)
		if err == nil {
			conn.Close()
			return s, cancel
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	t.Fatal("slave did not start listening")
	return nil, nil
}

func TestSlave_WriteThenRead(t *testing.T) {
	transportCfg, storeCfg := testConfigs(t)
	s, cancel := startSlave(t, transportCfg, storeCfg)
	defer cancel()
	defer s.Close()

	client, err := master.Connect(context.Background(), transportCfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	values := []uint16{10, 20, 30, 40, 50}
	ctx := context.Background()

	if _, err := client.Perform(ctx, modbus.FuncCodeWriteMultipleRegisters, 1, 0, values); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	result, err := client.Perform(ctx, modbus.FuncCodeReadHoldingRegisters, 1, 5, nil)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(result.Registers) != 5 {
		t.Fatalf("got %d registers, want 5", len(result.Registers))
	}
	for i, v := range values {
		if result.Registers[i] != v {
			t.Errorf("register %d = %d, want %d", i+1, result.Registers[i], v)
		}
	}
}

func TestSlave_Exception(t *testing.T) {
	transportCfg, storeCfg := testConfigs(t)
	s, cancel := startSlave(t, transportCfg, storeCfg)
	defer cancel()
	defer s.Close()

	client, err := master.Connect(context.Background(), transportCfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	// Address beyond the 100-register store.
	_, err = client.Perform(context.Background(), modbus.FuncCodeReadHoldingRegisters, 200, 5, nil)

	var exc *modbus.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("err = %v, want Exception", err)
	}
	if exc.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
		t.Errorf("exception function = %02X, want 03", exc.FunctionCode)
	}
	if exc.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("exception code = %02X, want 02", exc.ExceptionCode)
	}
}

func TestSlave_ForeignUnitTimesOut(t *testing.T) {
	transportCfg, storeCfg := testConfigs(t)
	s, cancel := startSlave(t, transportCfg, storeCfg)
	defer cancel()
	defer s.Close()

	foreign := transportCfg
	foreign.UnitID = 9
	foreign.Timeout = 100 * time.Millisecond

	client, err := master.Connect(context.Background(), foreign)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	_, err = client.Perform(context.Background(), modbus.FuncCodeReadCoils, 0, 1, nil)
	if !errors.Is(err, modbus.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestSlave_AcceptAnyUnit(t *testing.T) {
	transportCfg, storeCfg := testConfigs(t)
	transportCfg.AcceptAnyUnit = true
	s, cancel := startSlave(t, transportCfg, storeCfg)
	defer cancel()
	defer s.Close()

	foreign := transportCfg
	foreign.UnitID = 42

	client, err := master.Connect(context.Background(), foreign)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Perform(context.Background(), modbus.FuncCodeReadCoils, 0, 1, nil); err != nil {
		t.Errorf("read as unit 42 failed: %v", err)
	}
}

func TestSlave_RandomUpdate(t *testing.T) {
	transportCfg, storeCfg := testConfigs(t)
	storeCfg.RandomInit = true
	storeCfg.RandomUpdate = true
	storeCfg.UpdateInterval = 20 * time.Millisecond
	storeCfg.MaxRegisterValue = 1000

	s, err := Connect(transportCfg, storeCfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	before, err := s.Store().ReadHoldingRegisters(0, 100)
	if err != nil {
		t.Fatal(err)
	}

	// Wait for a few updater ticks, then expect the content to differ.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
		after, err := s.Store().ReadHoldingRegisters(0, 100)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(before, after) {
			return
		}
	}
	t.Error("holding registers never changed under the background updater")
}
