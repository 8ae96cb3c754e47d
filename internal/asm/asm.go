// Package asm implements a small textual assembler for the bytecode
// format: one mnemonic instruction per line, numeric or lexical-address
// operands, and named labels for jump targets. It is the only way to
// produce a Program in this repository that doesn't go through a
// compiler front-end, which is deliberately out of scope here.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lacevm/internal/bytecode"
	"lacevm/internal/heap"
	"lacevm/internal/vm"
)

// Assemble parses textual assembly from r into a Program named name.
func Assemble(name string, r io.Reader) (*bytecode.Program, error) {
	lines, err := splitLines(r)
	if err != nil {
		return nil, err
	}

	labels := map[string]int{}
	type rawLine struct {
		lineNo int
		mnem   string
		args   []string
	}
	var raws []rawLine

	for _, ln := range lines {
		text := stripComment(ln.text)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.HasSuffix(text, ":") && !strings.Contains(text, " ") {
			label := strings.TrimSuffix(text, ":")
			if _, exists := labels[label]; exists {
				return nil, fmt.Errorf("asm:%d: label %q redefined", ln.lineNo, label)
			}
			labels[label] = len(raws)
			continue
		}
		fields := strings.Fields(text)
		raws = append(raws, rawLine{lineNo: ln.lineNo, mnem: strings.ToUpper(fields[0]), args: fields[1:]})
	}

	code := make([]bytecode.Instr, len(raws))
	for i, r := range raws {
		in, err := assembleOne(r.mnem, r.args, labels)
		if err != nil {
			return nil, fmt.Errorf("asm:%d: %w", r.lineNo, err)
		}
		in.Line = r.lineNo
		code[i] = in
	}

	prog := &bytecode.Program{Name: name, Entry: 0, Code: code}
	if err := prog.Validate(); err != nil {
		return nil, fmt.Errorf("asm: %w", err)
	}

	return prog, nil
}

type sourceLine struct {
	lineNo int
	text   string
}

func splitLines(r io.Reader) ([]sourceLine, error) {
	var out []sourceLine
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		out = append(out, sourceLine{lineNo: n, text: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("asm: read error: %w", err)
	}
	return out, nil
}

func stripComment(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return s[:i]
	}
	return s
}

// resolveAddr accepts either a bare integer PC or a label name.
func resolveAddr(arg string, labels map[string]int) (int, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		return n, nil
	}
	if pc, ok := labels[arg]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("unresolved address %q", arg)
}

// parseLexicalAddr accepts (f,s) with s either a numeric slot index or
// the name of a built-in global, resolved against the VM's registry —
// `LD (1,display)` assembles to the same instruction as `LD (1,0)`. A
// name is only meaningful when f reaches frame 0 of the runtime
// environment; the assembler has no scope model and cannot check that.
func parseLexicalAddr(arg string) (int, int, error) {
	parts := strings.Split(strings.Trim(arg, "()"), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected (f,s) lexical address, got %q", arg)
	}
	frame, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad frame in %q: %w", arg, err)
	}
	slotArg := strings.TrimSpace(parts[1])
	if slot, err := strconv.Atoi(slotArg); err == nil {
		return frame, slot, nil
	}
	slot, ok := vm.GlobalSlot(slotArg)
	if !ok {
		return 0, 0, fmt.Errorf("bad slot in %q: %q is neither a number nor a built-in name", arg, slotArg)
	}
	return frame, slot, nil
}

// parseLiteral accepts a float, `true`/`false`, `null`, `undefined`, or a
// double-quoted string, matching the value kinds LDC can push.
func parseLiteral(arg string) (any, error) {
	switch arg {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "undefined":
		return heap.Undefined{}, nil
	}
	if strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) && len(arg) >= 2 {
		unquoted, err := strconv.Unquote(arg)
		if err != nil {
			return nil, fmt.Errorf("bad string literal %q: %w", arg, err)
		}
		return unquoted, nil
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return nil, fmt.Errorf("bad literal %q: %w", arg, err)
	}
	return v, nil
}
