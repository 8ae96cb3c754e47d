package vm

import (
	"fmt"
	"math"

	"lacevm/internal/heap"
)

// BuiltinFunc implements a host function. It pops exactly its registered
// arity of addresses off t's operand stack (right-to-left, i.e. the last
// argument first) and returns the single address the dispatcher pushes as
// the call's result.
type BuiltinFunc func(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError)

// globalBinding is one entry in the single declarative table that backs
// both the compile-time global frame (names the assembler resolves
// against) and the run-time global environment (frame 0). Keeping them as
// one slice guarantees the two views never drift out of order.
type globalBinding struct {
	name  string
	arity int // -1 for a constant, not a callable
	fn    BuiltinFunc
	value float64 // used when arity == -1
}

// globalTable is the ordered registry. Index in this slice is the BUILTIN
// node's registered id and the slot index in the global frame.
var globalTable = []globalBinding{
	{name: "display", arity: 1, fn: builtinDisplay},
	{name: "make_channel", arity: 0, fn: builtinMakeChannel},
	{name: "make_array", arity: 1, fn: builtinMakeArray},
	{name: "math_sqrt", arity: 1, fn: builtinMathSqrt},
	{name: "is_number", arity: 1, fn: builtinIsTag(heap.TagNumber)},
	{name: "is_boolean", arity: 1, fn: builtinIsBoolean},
	{name: "is_string", arity: 1, fn: builtinIsTag(heap.TagString)},
	{name: "is_undefined", arity: 1, fn: builtinIsTag(heap.TagUndefined)},
	{name: "is_function", arity: 1, fn: builtinIsFunction},
	{name: "E", arity: -1, value: math.E},
	{name: "LN2", arity: -1, value: math.Ln2},
	{name: "LN10", arity: -1, value: math.Ln10},
	{name: "LOG2E", arity: -1, value: math.Log2E},
	{name: "LOG10E", arity: -1, value: math.Log10E},
	{name: "PI", arity: -1, value: math.Pi},
	{name: "SQRT1_2", arity: -1, value: math.Sqrt(0.5)},
	{name: "SQRT2", arity: -1, value: math.Sqrt2},
}

// GlobalSlot returns the frame-0 slot index for a built-in global name.
// The assembler resolves named slots in (f,name) lexical addresses
// through this, so assembly text and the runtime frame can never
// disagree about the registry's order.
func GlobalSlot(name string) (int, bool) {
	for i, b := range globalTable {
		if b.name == name {
			return i, true
		}
	}
	return 0, false
}

// BuildGlobalFrame allocates frame 0: every builtin is a BUILTIN node
// carrying its table index as id, every constant is a boxed NUMBER.
func BuildGlobalFrame(h *heap.Heap) heap.Address {
	frame := h.AllocateFrame(len(globalTable))
	scope := h.WorkingScope(frame)
	defer scope()
	for i, b := range globalTable {
		var addr heap.Address
		if b.arity < 0 {
			addr = h.AllocateNumber(b.value)
		} else {
			addr = h.AllocateBuiltin(i)
		}
		h.SetFrameSlot(frame, i, addr)
	}
	return frame
}

func builtinDisplay(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError) {
	v, verr := t.popOperand(eb)
	if verr != nil {
		return 0, verr
	}
	fmt.Fprintln(vm.Stdout, formatValue(vm.Heap, v))
	return v, nil
}

func builtinMakeChannel(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError) {
	return vm.Heap.AllocateChannel(), nil
}

func builtinMakeArray(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError) {
	n, verr := t.popOperand(eb)
	if verr != nil {
		return 0, verr
	}
	if vm.Heap.Tag(n) != heap.TagNumber {
		return 0, eb.typeMismatch("make_array", "NUMBER", vm.Heap.Tag(n).String())
	}
	return vm.Heap.AllocateArray(int(vm.Heap.NumberValue(n))), nil
}

func builtinMathSqrt(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError) {
	x, verr := t.popOperand(eb)
	if verr != nil {
		return 0, verr
	}
	if vm.Heap.Tag(x) != heap.TagNumber {
		return 0, eb.typeMismatch("math_sqrt", "NUMBER", vm.Heap.Tag(x).String())
	}
	return vm.Heap.AllocateNumber(math.Sqrt(vm.Heap.NumberValue(x))), nil
}

func builtinIsTag(want heap.Tag) BuiltinFunc {
	return func(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError) {
		v, verr := t.popOperand(eb)
		if verr != nil {
			return 0, verr
		}
		return vm.Heap.ValueToAddress(vm.Heap.Tag(v) == want), nil
	}
}

func builtinIsBoolean(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError) {
	v, verr := t.popOperand(eb)
	if verr != nil {
		return 0, verr
	}
	tag := vm.Heap.Tag(v)
	return vm.Heap.ValueToAddress(tag == heap.TagTrue || tag == heap.TagFalse), nil
}

func builtinIsFunction(vm *VM, t *Task, eb *errorBuilder) (heap.Address, *VMError) {
	v, verr := t.popOperand(eb)
	if verr != nil {
		return 0, verr
	}
	tag := vm.Heap.Tag(v)
	return vm.Heap.ValueToAddress(tag == heap.TagClosure || tag == heap.TagBuiltin), nil
}

// formatValue renders the unboxed value of addr the way `display` prints
// it: numbers without a trailing ".0" when they are integral, strings bare
// (no quotes), and everything else by tag name.
func formatValue(h *heap.Heap, addr heap.Address) string {
	switch h.Tag(addr) {
	case heap.TagNumber:
		v := h.NumberValue(addr)
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case heap.TagTrue:
		return "true"
	case heap.TagFalse:
		return "false"
	case heap.TagString:
		return h.StringText(addr)
	case heap.TagNull:
		return "null"
	case heap.TagUndefined:
		return "undefined"
	default:
		return h.Tag(addr).String()
	}
}
