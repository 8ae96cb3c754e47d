package asm

import (
	"fmt"
	"strconv"
	"strings"

	"lacevm/internal/bytecode"
)

var mnemonics = map[string]bytecode.Opcode{
	"LDC": bytecode.LDC, "UNOP": bytecode.UNOP, "BINOP": bytecode.BINOP,
	"POP": bytecode.POP, "JOF": bytecode.JOF, "GOTO": bytecode.GOTO,
	"ENTER_SCOPE": bytecode.ENTER_SCOPE, "EXIT_SCOPE": bytecode.EXIT_SCOPE,
	"LD": bytecode.LD, "ASSIGN": bytecode.ASSIGN, "LDF": bytecode.LDF,
	"CALL": bytecode.CALL, "TCALL": bytecode.TCALL, "RESET": bytecode.RESET,
	"LAUNCH_THREAD": bytecode.LAUNCH_THREAD, "SEND": bytecode.SEND,
	"RECEIVE": bytecode.RECEIVE, "SOF": bytecode.SOF, "ROF": bytecode.ROF,
	"BLOCK": bytecode.BLOCK, "CLEAR_WAIT": bytecode.CLEAR_WAIT, "DONE": bytecode.DONE,
	"ACCESS_ADDRESS": bytecode.ACCESS_ADDRESS, "ASSIGN_ADDRESS": bytecode.ASSIGN_ADDRESS,
}

func assembleOne(mnem string, args []string, labels map[string]int) (bytecode.Instr, error) {
	op, ok := mnemonics[mnem]
	if !ok {
		return bytecode.Instr{}, fmt.Errorf("unknown mnemonic %q", mnem)
	}

	in := bytecode.Instr{Op: op}
	switch op {
	case bytecode.LDC:
		if err := need(args, 1, mnem); err != nil {
			return in, err
		}
		v, err := parseLiteral(args[0])
		if err != nil {
			return in, err
		}
		in.Value = v

	case bytecode.UNOP, bytecode.BINOP:
		if err := need(args, 1, mnem); err != nil {
			return in, err
		}
		in.Sym = args[0]

	case bytecode.JOF, bytecode.GOTO, bytecode.SOF, bytecode.ROF, bytecode.LAUNCH_THREAD:
		if err := need(args, 1, mnem); err != nil {
			return in, err
		}
		addr, err := resolveAddr(args[0], labels)
		if err != nil {
			return in, err
		}
		in.Addr = addr

	case bytecode.ENTER_SCOPE:
		if err := need(args, 1, mnem); err != nil {
			return in, err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return in, fmt.Errorf("bad frame size %q: %w", args[0], err)
		}
		in.N = n

	case bytecode.LD, bytecode.ASSIGN:
		if err := need(args, 1, mnem); err != nil {
			return in, err
		}
		f, s, err := parseLexicalAddr(args[0])
		if err != nil {
			return in, err
		}
		in.Frame, in.Slot = f, s

	case bytecode.LDF:
		if err := need(args, 2, mnem); err != nil {
			return in, err
		}
		entry, err := resolveAddr(args[0], labels)
		if err != nil {
			return in, err
		}
		arity, err := strconv.Atoi(args[1])
		if err != nil {
			return in, fmt.Errorf("bad arity %q: %w", args[1], err)
		}
		in.Addr, in.N = entry, arity

	case bytecode.CALL, bytecode.TCALL:
		if err := need(args, 1, mnem); err != nil {
			return in, err
		}
		k, err := strconv.Atoi(args[0])
		if err != nil {
			return in, fmt.Errorf("bad argument count %q: %w", args[0], err)
		}
		in.N = k

	case bytecode.EXIT_SCOPE, bytecode.RESET, bytecode.SEND, bytecode.RECEIVE,
		bytecode.BLOCK, bytecode.CLEAR_WAIT, bytecode.DONE,
		bytecode.ACCESS_ADDRESS, bytecode.ASSIGN_ADDRESS:
		if len(args) != 0 {
			return in, fmt.Errorf("%s takes no operands, got %q", mnem, strings.Join(args, " "))
		}
	}
	return in, nil
}

func need(args []string, n int, mnem string) error {
	if len(args) < n {
		return fmt.Errorf("%s expects %d operand(s), got %d", mnem, n, len(args))
	}
	return nil
}
