package bytecode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"lacevm/internal/heap"
)

// imageSchemaVersion guards against loading an image written by an
// incompatible encoder; bump on any wire-format change to Instr or Program.
const imageSchemaVersion uint16 = 1

// image is the on-disk wire form of a Program. Instr is encoded as-is;
// msgpack round-trips its Value field (float64/bool/string/nil) without
// help since those are all native msgpack types. The one non-native LDC
// value, heap.Undefined{}, is swapped for a sentinel string on the way
// out and restored on the way in (an empty struct decoded through an
// `any` field would come back as a bare map).
type image struct {
	Schema uint16
	Name   string
	Entry  int
	Code   []Instr
}

// undefinedSentinel stands in for heap.Undefined{} inside an image. The
// NUL bytes keep it out of the space of string literals the assembler can
// produce.
const undefinedSentinel = "\x00undefined\x00"

func toWire(code []Instr) []Instr {
	out := make([]Instr, len(code))
	copy(out, code)
	for i := range out {
		if _, ok := out[i].Value.(heap.Undefined); ok {
			out[i].Value = undefinedSentinel
		}
	}
	return out
}

func fromWire(code []Instr) []Instr {
	for i := range code {
		if s, ok := code[i].Value.(string); ok && s == undefinedSentinel {
			code[i].Value = heap.Undefined{}
		}
	}
	return code
}

// WriteFile serializes p to path as a msgpack-encoded image, replacing any
// existing file atomically via a temp-file-then-rename.
func WriteFile(path string, p *Program) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "lbc-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()

	enc := msgpack.NewEncoder(f)
	img := image{Schema: imageSchemaVersion, Name: p.Name, Entry: p.Entry, Code: toWire(p.Code)}
	if err := enc.Encode(&img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile loads a Program previously written by WriteFile.
func ReadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var img image
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&img); err != nil {
		return nil, err
	}
	if img.Schema != imageSchemaVersion {
		return nil, fmt.Errorf("bytecode: image %s has schema %d, want %d", path, img.Schema, imageSchemaVersion)
	}
	prog := &Program{Name: img.Name, Entry: img.Entry, Code: fromWire(img.Code)}
	if err := prog.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: image %s: %w", path, err)
	}
	return prog, nil
}
