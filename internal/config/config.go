// Package config loads the server's HCL configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Table  TableSettings  `hcl:"table,block"`
}

// ServerSettings contains server-level configuration. DataDir, when
// set, switches room snapshot persistence from memory to disk.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	DataDir  string `hcl:"data_dir,optional"`
}

// TableSettings defines the table parameters shared by all rooms
type TableSettings struct {
	Capacity      int `hcl:"capacity,optional"`
	SmallBlind    int `hcl:"small_blind"`
	BigBlind      int `hcl:"big_blind"`
	BuyIn         int `hcl:"buy_in,optional"`
	DealDelayMS   int `hcl:"deal_delay_ms,optional"`
	StreetDelayMS int `hcl:"street_delay_ms,optional"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Table: TableSettings{
			Capacity:      2,
			SmallBlind:    5,
			BigBlind:      10,
			BuyIn:         1000,
			DealDelayMS:   2000,
			StreetDelayMS: 1500,
		},
	}
}

// Load loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Address == "" {
		cfg.Server.Address = def.Server.Address
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.Table.Capacity == 0 {
		cfg.Table.Capacity = def.Table.Capacity
	}
	if cfg.Table.BuyIn == 0 {
		cfg.Table.BuyIn = def.Table.BuyIn
	}
	if cfg.Table.DealDelayMS == 0 {
		cfg.Table.DealDelayMS = def.Table.DealDelayMS
	}
	if cfg.Table.StreetDelayMS == 0 {
		cfg.Table.StreetDelayMS = def.Table.StreetDelayMS
	}
}

// Addr returns the host:port the server should bind to
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
