package bytecode

import "fmt"

// Program is a fully assembled instruction stream plus the metadata needed
// to run it: the entry point for the main task and a human-readable name
// for diagnostics (source file, REPL buffer, etc).
type Program struct {
	Name  string
	Entry int
	Code  []Instr
}

// Len reports the instruction count.
func (p *Program) Len() int { return len(p.Code) }

// At returns the instruction at pc, bounds-checked: a PC running off the
// end of the stream is always a VM or assembler bug, never a user error.
func (p *Program) At(pc int) Instr {
	if pc < 0 || pc >= len(p.Code) {
		panic(fmt.Sprintf("bytecode: pc %d out of range [0,%d)", pc, len(p.Code)))
	}
	return p.Code[pc]
}

// Validate checks that every jump-carrying instruction's address operand
// lands inside the program, so a malformed .lasm or a corrupted .lbc
// image is rejected with a plain error at load time rather than surfacing
// as an At panic the first time execution steps to the bad address.
func (p *Program) Validate() error {
	for pc, in := range p.Code {
		switch in.Op {
		case JOF, GOTO, SOF, ROF, LAUNCH_THREAD, LDF:
			if in.Addr < 0 || in.Addr >= len(p.Code) {
				return fmt.Errorf("bytecode: instruction %d (%s) targets address %d, out of range [0,%d)", pc, in.Op, in.Addr, len(p.Code))
			}
		}
	}
	return nil
}

// Disassemble renders the program as one human-readable line per
// instruction: the PC, the mnemonic, and its operands with jump targets as
// numeric PCs. The listing is not in the textual form internal/asm accepts
// as input (the PC prefix and the n=/k=/entry= operand forms do not parse).
func (p *Program) Disassemble() string {
	out := ""
	for pc, in := range p.Code {
		out += fmt.Sprintf("%4d  %s\n", pc, formatInstr(in))
	}
	return out
}

func formatInstr(in Instr) string {
	switch in.Op {
	case LDC:
		return fmt.Sprintf("%-14s %#v", in.Op, in.Value)
	case UNOP, BINOP:
		return fmt.Sprintf("%-14s %q", in.Op, in.Sym)
	case JOF, GOTO, SOF, ROF, LAUNCH_THREAD:
		return fmt.Sprintf("%-14s %d", in.Op, in.Addr)
	case ENTER_SCOPE:
		return fmt.Sprintf("%-14s n=%d", in.Op, in.N)
	case LD, ASSIGN:
		return fmt.Sprintf("%-14s (%d,%d)", in.Op, in.Frame, in.Slot)
	case LDF:
		return fmt.Sprintf("%-14s entry=%d arity=%d", in.Op, in.Addr, in.N)
	case CALL, TCALL:
		return fmt.Sprintf("%-14s k=%d", in.Op, in.N)
	default:
		return fmt.Sprintf("%-14s", in.Op)
	}
}
