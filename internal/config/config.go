// Copyright (c) 2026 ibenim. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every option the CLI accepts, from flags or a config file.
type Config struct {
	// Transport selection
	Protocol string `mapstructure:"protocol"` // "rtu" or "tcp"

	// Serial/RTU options
	Device   string        `mapstructure:"device"`    // e.g. "/dev/ttyUSB0"
	BaudRate int           `mapstructure:"baud_rate"` // e.g. 9600
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"` // N, E, O
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"` // response wait time

	// TCP options
	Host    string `mapstructure:"host"`
	TCPPort int    `mapstructure:"tcp_port"`

	// Addressing
	UnitID        uint8 `mapstructure:"unit_id"`
	AcceptAnyUnit bool  `mapstructure:"accept_any_unit"` // slave answers any unit id

	// Slave data store
	Coils            int           `mapstructure:"coils"`
	DiscreteInputs   int           `mapstructure:"discrete_inputs"`
	HoldingRegisters int           `mapstructure:"holding_registers"`
	InputRegisters   int           `mapstructure:"input_registers"`
	RandomInit       bool          `mapstructure:"random_init"`
	RandomUpdate     bool          `mapstructure:"random_update"`
	UpdateInterval   time.Duration `mapstructure:"update_interval"`
	MaxRegisterValue uint16        `mapstructure:"max_register_value"`

	// Logging
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error
	LogFile  string `mapstructure:"log_file"`  // empty for stdout
}

// SerialConfig carries the options the serial transports need.
type SerialConfig struct {
	Device   string
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
	Timeout  time.Duration
}

// TransportConfig selects and parameterizes one transport.
type TransportConfig struct {
	Protocol      string
	Serial        SerialConfig
	Address       string // host:port for TCP
	UnitID        byte
	Timeout       time.Duration
	AcceptAnyUnit bool
}

// StoreConfig parameterizes the slave's data store and its updater.
type StoreConfig struct {
	Coils            int
	DiscreteInputs   int
	HoldingRegisters int
	InputRegisters   int
	RandomInit       bool
	RandomUpdate     bool
	UpdateInterval   time.Duration
	MaxRegisterValue uint16
}

// Load merges defaults, an optional config file (--config, else
// ./momodbus.yaml) and the given flag set, then validates the result.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("momodbus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.momodbus")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.fixup(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("protocol", "rtu")
	v.SetDefault("baud_rate", 9600)
	v.SetDefault("data_bits", 8)
	v.SetDefault("parity", "N")
	v.SetDefault("stop_bits", 1)
	v.SetDefault("timeout", time.Second)
	v.SetDefault("host", "localhost")
	v.SetDefault("tcp_port", 502)
	v.SetDefault("unit_id", 1)
	v.SetDefault("coils", 1000)
	v.SetDefault("discrete_inputs", 1000)
	v.SetDefault("holding_registers", 1000)
	v.SetDefault("input_registers", 1000)
	v.SetDefault("update_interval", time.Second)
	v.SetDefault("max_register_value", 65535)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

func (c *Config) fixup() error {
	c.Protocol = strings.ToLower(c.Protocol)
	c.Parity = strings.ToUpper(c.Parity)

	switch c.Protocol {
	case "rtu":
		if c.Device == "" {
			return fmt.Errorf("device is required for protocol rtu")
		}
	case "tcp":
		if c.Host == "" {
			return fmt.Errorf("host is required for protocol tcp")
		}
	default:
		return fmt.Errorf("unknown protocol %q (use rtu or tcp)", c.Protocol)
	}

	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = time.Second
	}
	return nil
}

// Transport assembles the transport parameters from the flat config.
func (c *Config) Transport() TransportConfig {
	return TransportConfig{
		Protocol: c.Protocol,
		Serial: SerialConfig{
			Device:   c.Device,
			BaudRate: c.BaudRate,
			DataBits: c.DataBits,
			Parity:   c.Parity,
			StopBits: c.StopBits,
			Timeout:  c.Timeout,
		},
		Address:       net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort)),
		UnitID:        c.UnitID,
		Timeout:       c.Timeout,
		AcceptAnyUnit: c.AcceptAnyUnit,
	}
}

// Store assembles the data store parameters from the flat config.
func (c *Config) Store() StoreConfig {
	return StoreConfig{
		Coils:            c.Coils,
		DiscreteInputs:   c.DiscreteInputs,
		HoldingRegisters: c.HoldingRegisters,
		InputRegisters:   c.InputRegisters,
		RandomInit:       c.RandomInit,
		RandomUpdate:     c.RandomUpdate,
		UpdateInterval:   c.UpdateInterval,
		MaxRegisterValue: c.MaxRegisterValue,
	}
}
