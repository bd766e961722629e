// Package config loads the machine configuration rv64 starts from,
// following the same defaults-then-decode idiom the corpus uses for
// its TOML configuration files.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rcornwell/rv64core/emu/memory"
)

// Machine holds the settings needed to stand up one CPU instance: how much
// memory to give it, what firmware and disk images to load, how it's
// bounded, and how verbosely it runs.
type Machine struct {
	MemorySize       int    `toml:"memory_size"`
	DiskPath         string `toml:"disk_path"`
	BIOSPath         string `toml:"bios_path"`
	InstructionLimit uint64 `toml:"instruction_limit"`
	Trace            bool   `toml:"trace"`
	Interactive      bool   `toml:"interactive"`
	LogPath          string `toml:"log_path"`
}

// DefaultMachine returns a Machine with the emulator's baseline settings:
// the default memory size and instruction budget, tracing and interactive
// breakpoints off, no firmware or disk attached.
func DefaultMachine() *Machine {
	return &Machine{
		MemorySize:       memory.DefaultSize,
		InstructionLimit: 0, // zero selects cpu.DefaultInstructionLimit
		Trace:            false,
		Interactive:      false,
	}
}

// Load reads path as TOML into a Machine seeded with DefaultMachine's
// values, so a config file only needs to mention the fields it overrides.
// A missing path is not an error: the defaults are returned unchanged.
func Load(path string) (*Machine, error) {
	m := DefaultMachine()
	if path == "" {
		return m, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return m, nil
	}
	if _, err := toml.DecodeFile(path, m); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return m, nil
}
