// Package config loads the VM's run-time configuration surface: time
// quantum, heap size, and the debug flag, from an optional TOML file
// layered under CLI flags.
package config

import (
	"fmt"
	"os"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
)

// defaultQuantum and defaultHeapBytes are used when neither a config file
// nor a flag overrides them.
const (
	defaultQuantum    = 64
	defaultHeapBytes  = 1 << 20 // 1 MiB
	minHeapBytesFloor = 80      // one node's worth of bytes (10 words * 8 bytes)
)

// Config is the fully resolved configuration a run needs.
type Config struct {
	Quantum   int  `toml:"quantum"`
	HeapBytes int  `toml:"heap_bytes"`
	Debug     bool `toml:"debug"`
}

// fileConfig mirrors Config's TOML shape; kept separate so zero-valued
// fields in the file (vs. fields genuinely absent) are distinguishable
// via toml.MetaData.
type fileConfig struct {
	VM vmSection `toml:"vm"`
}

type vmSection struct {
	Quantum   int  `toml:"quantum"`
	HeapBytes int  `toml:"heap_bytes"`
	Debug     bool `toml:"debug"`
}

// Default returns the built-in configuration with no file or flags
// applied.
func Default() Config {
	return Config{Quantum: defaultQuantum, HeapBytes: defaultHeapBytes}
}

// Load reads path (if non-empty and present) and overlays it on Default.
// A missing path is not an error; an unparseable one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("vm", "quantum") {
		cfg.Quantum = fc.VM.Quantum
	}
	if meta.IsDefined("vm", "heap_bytes") {
		cfg.HeapBytes = fc.VM.HeapBytes
	}
	if meta.IsDefined("vm", "debug") {
		cfg.Debug = fc.VM.Debug
	}
	return cfg, nil
}

// Validate enforces the design's floors and ceilings: a positive
// quantum, a heap that fits at least one node, and a heap small enough
// that every word stays addressable (heap addresses are 32-bit word
// indices).
func (c Config) Validate() error {
	if c.Quantum <= 0 {
		return fmt.Errorf("config: quantum must be positive, got %d", c.Quantum)
	}
	if c.HeapBytes < minHeapBytesFloor {
		return fmt.Errorf("config: heap_bytes must be at least %d, got %d", minHeapBytesFloor, c.HeapBytes)
	}
	if _, err := safecast.Conv[int32](int64(c.HeapBytes) / 8); err != nil {
		return fmt.Errorf("config: heap_bytes %d exceeds the word-addressable range: %w", c.HeapBytes, err)
	}
	return nil
}
