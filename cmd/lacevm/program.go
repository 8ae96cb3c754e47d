package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lacevm/internal/asm"
	"lacevm/internal/bytecode"
	"lacevm/internal/config"
)

// loadProgram reads path and returns an assembled Program, dispatching on
// the extension: ".lbc" is a pre-assembled msgpack image, anything else
// is textual assembly fed through internal/asm.
func loadProgram(path string) (*bytecode.Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".lbc") {
		return bytecode.ReadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return asm.Assemble(filepath.Base(path), f)
}

// resolveConfig layers --quantum/--heap-bytes flag overrides on top of the
// file config loaded from --config (or the defaults, if unset).
func resolveConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if flagQuantum > 0 {
		cfg.Quantum = flagQuantum
	}
	if flagHeap > 0 {
		cfg.HeapBytes = flagHeap
	}
	if flagDebug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
