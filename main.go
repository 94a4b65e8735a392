// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ibenim/MoModbus/internal/config"
	"github.com/ibenim/MoModbus/internal/master"
	"github.com/ibenim/MoModbus/internal/slave"
	"github.com/ibenim/MoModbus/modbus"
)

const usage = `MoModbus - Modbus RTU/TCP slave simulator and master client

Usage:
  momodbus slave [flags]                 run a slave with a simulated data store
  momodbus read  [flags]                 perform (or repeat) a read transaction
  momodbus write [flags] <value>...      perform a write transaction

Run 'momodbus <command> --help' for the flags of each command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "slave":
		err = runSlave(os.Args[2:])
	case "read":
		err = runMaster(os.Args[2:], true)
	case "write":
		err = runMaster(os.Args[2:], false)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func commonFlags(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ExitOnError)
	flags.String("config", "", "path to config file")
	flags.String("protocol", "rtu", "transport protocol (rtu or tcp)")
	flags.String("device", "", "serial device, e.g. /dev/ttyUSB0")
	flags.Int("baud-rate", 9600, "serial baud rate")
	flags.Int("data-bits", 8, "serial data bits")
	flags.String("parity", "N", "serial parity (N, E or O)")
	flags.Int("stop-bits", 1, "serial stop bits")
	flags.String("host", "localhost", "TCP host")
	flags.Int("tcp-port", 502, "TCP port")
	flags.Uint8("unit-id", 1, "unit identifier")
	flags.Duration("timeout", time.Second, "response timeout")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "log file (empty for stdout)")
	return flags
}

func loadConfig(flags *pflag.FlagSet, args []string) (*config.Config, error) {
	// viper keys use underscores; map the dashed flag names onto them.
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "-", "_"))
	})
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg)
	return cfg, nil
}

func runSlave(args []string) error {
	flags := commonFlags("slave")
	flags.Bool("accept-any-unit", false, "answer requests for any unit id")
	flags.Int("coils", 1000, "number of coils")
	flags.Int("discrete-inputs", 1000, "number of discrete inputs")
	flags.Int("holding-registers", 1000, "number of holding registers")
	flags.Int("input-registers", 1000, "number of input registers")
	flags.Bool("random-init", false, "initialize the data store with random values")
	flags.Bool("random-update", false, "update the data store with random values periodically")
	flags.Duration("update-interval", time.Second, "interval between random updates")
	flags.Uint16("max-register-value", 65535, "upper bound for random register values")

	cfg, err := loadConfig(flags, args)
	if err != nil {
		return err
	}

	s, err := slave.Connect(cfg.Transport(), cfg.Store())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("Shutting down...")
		cancel()
	}()

	slog.Info("Starting Modbus slave", "protocol", cfg.Protocol, "unit_id", cfg.UnitID)
	return s.Run(ctx)
}

func runMaster(args []string, read bool) error {
	name := "write"
	if read {
		name = "read"
	}
	flags := commonFlags(name)
	flags.Uint8("function-code", 0, "Modbus function code")
	flags.Uint16("address", 0, "starting address")
	flags.Uint16("quantity", 1, "number of coils or registers to read")
	var interval time.Duration
	if read {
		flags.DurationVar(&interval, "interval", 0, "repeat the read at this interval (0 for one shot)")
	}

	cfg, err := loadConfig(flags, args)
	if err != nil {
		return err
	}

	funcCode, _ := flags.GetUint8("function_code")
	address, _ := flags.GetUint16("address")
	quantity, _ := flags.GetUint16("quantity")

	var values []uint16
	if !read {
		values, err = parseValues(flags.Args())
		if err != nil {
			return err
		}
	}

	if funcCode == 0 {
		switch {
		case read:
			funcCode = modbus.FuncCodeReadHoldingRegisters
		case len(values) > 1:
			funcCode = modbus.FuncCodeWriteMultipleRegisters
		default:
			funcCode = modbus.FuncCodeWriteSingleRegister
		}
	}
	if read && !modbus.IsReadFunction(funcCode) {
		return fmt.Errorf("function code %d is not a read function", funcCode)
	}
	if !read && modbus.IsReadFunction(funcCode) {
		return fmt.Errorf("function code %d is not a write function", funcCode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := master.Connect(ctx, cfg.Transport())
	if err != nil {
		return err
	}
	defer client.Close()

	if read && interval > 0 {
		for outcome := range client.Sample(ctx, interval, funcCode, address, quantity, nil) {
			printOutcome(funcCode, outcome.Result, outcome.Err)
		}
		return nil
	}

	result, err := client.Perform(ctx, funcCode, address, quantity, values)
	if err != nil {
		return err
	}
	printOutcome(funcCode, result, nil)
	return nil
}

func parseValues(args []string) ([]uint16, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("write requires at least one value argument")
	}
	values := make([]uint16, len(args))
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", arg, err)
		}
		values[i] = uint16(v)
	}
	return values, nil
}

func printOutcome(funcCode byte, result *modbus.Result, err error) {
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	switch {
	case result == nil:
		return
	case modbus.IsBitFunction(funcCode):
		bits := make([]int, len(result.Bits))
		for i, b := range result.Bits {
			if b {
				bits[i] = 1
			}
		}
		fmt.Println(bits)
	case len(result.Registers) > 0:
		fmt.Println(result.Registers)
	default:
		fmt.Println("ok")
	}
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.LogFile != "" && cfg.LogFile != "-" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
