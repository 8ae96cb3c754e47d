package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v, want defaults %+v", cfg, Default())
	}
}

func TestLoadOverlaysOnlyDefinedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lacevm.toml")
	src := "[vm]\nquantum = 16\ndebug = true\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quantum != 16 {
		t.Errorf("Quantum = %d, want 16", cfg.Quantum)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	// heap_bytes absent from the file: default must survive.
	if cfg.HeapBytes != Default().HeapBytes {
		t.Errorf("HeapBytes = %d, want default %d", cfg.HeapBytes, Default().HeapBytes)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[vm\nquantum="), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error for malformed TOML")
	}
}

func TestValidateEnforcesFloors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero quantum", Config{Quantum: 0, HeapBytes: defaultHeapBytes}},
		{"negative quantum", Config{Quantum: -1, HeapBytes: defaultHeapBytes}},
		{"heap below one node", Config{Quantum: defaultQuantum, HeapBytes: minHeapBytesFloor - 1}},
		{"heap beyond word addressing", Config{Quantum: defaultQuantum, HeapBytes: 1 << 40}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Fatalf("Validate(%+v) = nil, want error", tc.cfg)
			}
		})
	}
}
