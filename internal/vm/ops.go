package vm

import (
	"math"

	"lacevm/internal/heap"
)

// binop applies a binary operator to two already-unboxed operand
// addresses, returning the boxed result. String `+` is the one
// non-numeric case the design calls out explicitly; `==`/`!=` compare
// unboxed Go values so NUMBER, STRING and boolean singletons all compare
// the way a user expects.
func binop(h *heap.Heap, eb *errorBuilder, sym string, lhs, rhs heap.Address) (heap.Address, *VMError) {
	switch sym {
	case "==":
		return h.ValueToAddress(sameValue(h, lhs, rhs)), nil
	case "!=":
		return h.ValueToAddress(!sameValue(h, lhs, rhs)), nil
	case "&&":
		return h.ValueToAddress(h.IsTruthy(lhs) && h.IsTruthy(rhs)), nil
	case "||":
		return h.ValueToAddress(h.IsTruthy(lhs) || h.IsTruthy(rhs)), nil
	}

	if sym == "+" && h.Tag(lhs) == heap.TagString && h.Tag(rhs) == heap.TagString {
		return h.AllocateString(h.StringText(lhs) + h.StringText(rhs)), nil
	}

	if h.Tag(lhs) != heap.TagNumber {
		return 0, eb.typeMismatch("BINOP "+sym, "NUMBER", h.Tag(lhs).String())
	}
	if h.Tag(rhs) != heap.TagNumber {
		return 0, eb.typeMismatch("BINOP "+sym, "NUMBER", h.Tag(rhs).String())
	}
	a, b := h.NumberValue(lhs), h.NumberValue(rhs)

	switch sym {
	case "+":
		return h.AllocateNumber(a + b), nil
	case "-":
		return h.AllocateNumber(a - b), nil
	case "*":
		return h.AllocateNumber(a * b), nil
	case "/":
		return h.AllocateNumber(a / b), nil
	case "%":
		return h.AllocateNumber(math.Mod(a, b)), nil
	case "<":
		return h.ValueToAddress(a < b), nil
	case "<=":
		return h.ValueToAddress(a <= b), nil
	case ">":
		return h.ValueToAddress(a > b), nil
	case ">=":
		return h.ValueToAddress(a >= b), nil
	default:
		return 0, eb.typeMismatch("BINOP", "known operator", sym)
	}
}

// unop applies a unary operator to one unboxed operand address.
func unop(h *heap.Heap, eb *errorBuilder, sym string, operand heap.Address) (heap.Address, *VMError) {
	switch sym {
	case "!":
		return h.ValueToAddress(!h.IsTruthy(operand)), nil
	case "-":
		if h.Tag(operand) != heap.TagNumber {
			return 0, eb.typeMismatch("UNOP -", "NUMBER", h.Tag(operand).String())
		}
		return h.AllocateNumber(-h.NumberValue(operand)), nil
	default:
		return 0, eb.typeMismatch("UNOP", "known operator", sym)
	}
}

// sameValue compares two addresses by unboxed value, per the design's
// "==/!= compare unboxed values": two distinct STRING addresses never
// happen for equal text (interning), so address equality already
// suffices there, but comparing unboxed values keeps this correct even if
// a caller holds a non-interned duplicate.
func sameValue(h *heap.Heap, a, b heap.Address) bool {
	if a == b {
		return true
	}
	ta, tb := h.Tag(a), h.Tag(b)
	if ta != tb {
		return false
	}
	switch ta {
	case heap.TagNumber:
		return h.NumberValue(a) == h.NumberValue(b)
	case heap.TagString:
		return h.StringText(a) == h.StringText(b)
	default:
		return false
	}
}
