// Package vm implements the bytecode interpreter: a stack machine over
// heap addresses with lexical addressing, closures, and call/block frames
// kept on a per-task runtime stack.
package vm

import (
	"io"
	"os"

	"lacevm/internal/bytecode"
	"lacevm/internal/heap"
)

// Tracer receives debug-only notifications from the interpreter.
type Tracer interface {
	TraceStep(taskID, pc int, op bytecode.Opcode)
	TraceSpawn(parentID, childID, pc int)
	TraceBuiltin(taskID int, name string)
}

// VM holds everything shared across every task: the heap, the immutable
// instruction stream, the global frame, and optional tracing.
type VM struct {
	Heap      *heap.Heap
	Program   *bytecode.Program
	GlobalEnv heap.Address
	Stdout    io.Writer
	Trace     Tracer
	Spawner   Spawner
}

// New builds a VM over prog with a freshly allocated heap of the given
// byte size. The global environment is a one-frame environment whose
// frame is BuildGlobalFrame's built-in registry; every task's environment
// chain starts by extending this one.
func New(prog *bytecode.Program, heapSizeBytes int) *VM {
	h := heap.New(heapSizeBytes)
	frame := BuildGlobalFrame(h)
	globalEnv := h.ExtendEnvironment(0, frame)
	return &VM{
		Heap:      h,
		Program:   prog,
		GlobalEnv: globalEnv,
		Stdout:    os.Stdout,
	}
}

// StepResult reports what happened after executing one instruction, so
// the scheduler knows whether to keep running this task, rotate because
// it yielded, or retire it.
type StepResult int

const (
	StepContinue StepResult = iota
	StepYielded             // blocked on a channel; scheduler should rotate
	StepDone                // DONE executed
)

// Step executes exactly one instruction of t and reports the outcome. A
// non-nil *VMError is always fatal to the whole VM, per the design's
// error-handling taxonomy: there is no per-task recovery.
func (vm *VM) Step(t *Task) (res StepResult, verr *VMError) {
	eb := &errorBuilder{taskID: t.ID, pc: t.PC}
	// The heap raises allocation exhaustion as a typed panic so its deep
	// call sites don't all thread an error return; it is converted here,
	// at the instruction boundary, into the ordinary fatal-error shape
	// the scheduler already returns for deadlock. Anything else is a bug
	// in this VM and keeps unwinding.
	defer func() {
		if r := recover(); r != nil {
			oom, ok := r.(*heap.OutOfMemoryError)
			if !ok {
				panic(r)
			}
			res, verr = StepContinue, eb.outOfMemory(oom)
		}
	}()
	in := vm.Program.At(t.PC)
	if vm.Trace != nil {
		vm.Trace.TraceStep(t.ID, t.PC, in.Op)
	}
	return vm.dispatch(t, eb, in)
}
