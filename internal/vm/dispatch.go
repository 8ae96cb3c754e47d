package vm

import (
	"lacevm/internal/bytecode"
	"lacevm/internal/heap"
)

// Spawner lets LAUNCH_THREAD register a new task without the dispatcher
// knowing anything about the ring it lives in.
type Spawner interface {
	Spawn(pc int, env heap.Address) int
}

func (vm *VM) dispatch(t *Task, eb *errorBuilder, in bytecode.Instr) (StepResult, *VMError) {
	h := vm.Heap

	switch in.Op {
	case bytecode.LDC:
		t.pushOperand(h.ValueToAddress(in.Value))
		t.PC++

	case bytecode.UNOP:
		x, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		r, err := unop(h, eb, in.Sym, x)
		if err != nil {
			return StepContinue, err
		}
		t.pushOperand(r)
		t.PC++

	case bytecode.BINOP:
		rhs, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		lhs, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		r, err := binop(h, eb, in.Sym, lhs, rhs)
		if err != nil {
			return StepContinue, err
		}
		t.pushOperand(r)
		t.PC++

	case bytecode.POP:
		if _, err := t.popOperand(eb); err != nil {
			return StepContinue, err
		}
		t.PC++

	case bytecode.JOF:
		v, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		if v == h.False() {
			t.PC = in.Addr
		} else {
			t.PC++
		}

	case bytecode.GOTO:
		t.PC = in.Addr

	case bytecode.ENTER_SCOPE:
		t.pushRuntime(h.AllocateBlockFrame(t.Env))
		frame := h.AllocateFrame(in.N)
		t.Env = h.ExtendEnvironment(t.Env, frame)
		t.PC++

	case bytecode.EXIT_SCOPE:
		bf, ok := t.popRuntime()
		if !ok {
			return StepContinue, eb.stackUnderflow("runtime stack")
		}
		t.Env = h.BlockFrameEnv(bf)
		t.PC++

	case bytecode.LD:
		frame := h.EnvironmentFrame(t.Env, in.Frame)
		v := h.FrameSlot(frame, in.Slot)
		if v == h.Unallocated() {
			return StepContinue, eb.useBeforeInit(in.Frame, in.Slot)
		}
		t.pushOperand(v)
		t.PC++

	case bytecode.ASSIGN:
		v, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		frame := h.EnvironmentFrame(t.Env, in.Frame)
		h.SetFrameSlot(frame, in.Slot, v)
		t.PC++

	case bytecode.LDF:
		t.pushOperand(h.AllocateClosure(in.N, in.Addr, t.Env))
		t.PC++

	case bytecode.CALL:
		return vm.call(t, eb, in, false)

	case bytecode.TCALL:
		return vm.call(t, eb, in, true)

	case bytecode.RESET:
		return vm.reset(t, eb)

	case bytecode.LAUNCH_THREAD:
		if vm.Spawner == nil {
			return StepContinue, eb.make(PanicUnknownOpcode, "LAUNCH_THREAD: no scheduler attached")
		}
		childID := vm.Spawner.Spawn(t.PC+1, t.Env)
		if vm.Trace != nil {
			vm.Trace.TraceSpawn(t.ID, childID, t.PC+1)
		}
		t.PC = in.Addr

	case bytecode.SEND:
		return vm.send(t, eb, false, 0)

	case bytecode.RECEIVE:
		return vm.receive(t, eb, false, 0)

	case bytecode.SOF:
		return vm.send(t, eb, true, in.Addr)

	case bytecode.ROF:
		return vm.receive(t, eb, true, in.Addr)

	case bytecode.BLOCK:
		t.Blocked = true
		t.PC++
		return StepYielded, nil

	case bytecode.CLEAR_WAIT:
		t.Waiting = nil
		t.PC++

	case bytecode.DONE:
		t.Done = true
		return StepDone, nil

	case bytecode.ACCESS_ADDRESS:
		idx, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		arr, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		if h.Tag(arr) != heap.TagArray {
			return StepContinue, eb.typeMismatch("ACCESS_ADDRESS", "ARRAY", h.Tag(arr).String())
		}
		if h.Tag(idx) != heap.TagNumber {
			return StepContinue, eb.typeMismatch("ACCESS_ADDRESS", "NUMBER index", h.Tag(idx).String())
		}
		i := int(h.NumberValue(idx))
		if i < 0 || i >= h.ArrayLen(arr) {
			return StepContinue, eb.outOfBounds(i, h.ArrayLen(arr))
		}
		t.pushOperand(h.ArrayGet(arr, i))
		t.PC++

	case bytecode.ASSIGN_ADDRESS:
		val, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		idx, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		arr, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		if h.Tag(arr) != heap.TagArray {
			return StepContinue, eb.typeMismatch("ASSIGN_ADDRESS", "ARRAY", h.Tag(arr).String())
		}
		if h.Tag(idx) != heap.TagNumber {
			return StepContinue, eb.typeMismatch("ASSIGN_ADDRESS", "NUMBER index", h.Tag(idx).String())
		}
		i := int(h.NumberValue(idx))
		if i < 0 || i >= h.ArrayLen(arr) {
			return StepContinue, eb.outOfBounds(i, h.ArrayLen(arr))
		}
		h.ArraySet(arr, i, val)
		t.PC++

	default:
		return StepContinue, eb.unknownOpcode(in.Op)
	}

	return StepContinue, nil
}

// call implements both CALL and TCALL: pop k args, pop the callee, and
// proceed per its tag. tail suppresses pushing a CALLFRAME.
func (vm *VM) call(t *Task, eb *errorBuilder, in bytecode.Instr, tail bool) (StepResult, *VMError) {
	h := vm.Heap
	k := in.N
	args := make([]heap.Address, k)
	for i := k - 1; i >= 0; i-- {
		v, err := t.popOperand(eb)
		if err != nil {
			return StepContinue, err
		}
		args[i] = v
	}
	callee, err := t.popOperand(eb)
	if err != nil {
		return StepContinue, err
	}

	switch h.Tag(callee) {
	case heap.TagClosure:
		arity, entry := h.ClosureArityEntry(callee)
		if arity != k {
			return StepContinue, eb.arityMismatch("closure", arity, k)
		}
		// callee and args no longer live on the operand stack; protect them
		// across the allocations below until they are written into the new
		// frame and environment.
		h.PushWorking(callee)
		for _, a := range args {
			h.PushWorking(a)
		}
		if !tail {
			t.pushRuntime(h.AllocateCallFrame(t.Env, t.PC+1))
		}
		frame := h.AllocateFrame(k)
		scope := h.WorkingScope(frame)
		for i, a := range args {
			h.SetFrameSlot(frame, i, a)
		}
		t.Env = h.ExtendEnvironment(h.ClosureEnv(callee), frame)
		scope()
		for range args {
			h.PopWorking()
		}
		h.PopWorking()
		t.PC = entry

	case heap.TagBuiltin:
		for _, a := range args {
			t.pushOperand(a)
		}
		id := h.BuiltinID(callee)
		if id < 0 || id >= len(globalTable) || globalTable[id].fn == nil {
			return StepContinue, eb.notCallable("BUILTIN(invalid id)")
		}
		entry := globalTable[id]
		if entry.arity != k {
			return StepContinue, eb.arityMismatch(entry.name, entry.arity, k)
		}
		if vm.Trace != nil {
			vm.Trace.TraceBuiltin(t.ID, entry.name)
		}
		result, err := entry.fn(vm, t, eb)
		if err != nil {
			return StepContinue, err
		}
		t.pushOperand(result)
		t.PC++

	default:
		return StepContinue, eb.notCallable(h.Tag(callee).String())
	}
	return StepContinue, nil
}

// reset pops runtime-stack entries until a CALLFRAME is found, silently
// discarding any BLOCKFRAMEs in between (returning through open blocks).
func (vm *VM) reset(t *Task, eb *errorBuilder) (StepResult, *VMError) {
	h := vm.Heap
	for {
		entry, ok := t.popRuntime()
		if !ok {
			return StepContinue, eb.noCallFrame()
		}
		if h.Tag(entry) == heap.TagCallFrame {
			env, pc := h.CallFrameEnvPC(entry)
			t.Env = env
			t.PC = pc
			return StepContinue, nil
		}
		// BLOCKFRAME: discard and keep unwinding.
	}
}

// send deposits into the channel's single slot, blocking first if that
// slot is already occupied. A plain (blocking) SEND additionally parks
// the sender again right after a successful deposit, until the value it
// just placed is actually retrieved: this turns "drop a value in the
// buffer and move on" into a real handshake, so a send with nobody ever
// receiving blocks forever instead of completing unobserved. SOF, which
// promises never to block, skips that second wait and returns the moment
// its deposit lands.
func (vm *VM) send(t *Task, eb *errorBuilder, nonBlocking bool, fallthroughAddr int) (StepResult, *VMError) {
	h := vm.Heap
	val, err := t.popOperand(eb)
	if err != nil {
		return StepContinue, err
	}
	ch, err := t.popOperand(eb)
	if err != nil {
		return StepContinue, err
	}
	if h.Tag(ch) != heap.TagChan {
		return StepContinue, eb.notAChannel("SEND", h.Tag(ch).String())
	}

	if h.ChannelIsFull(ch) {
		t.pushOperand(ch)
		t.pushOperand(val)
		if nonBlocking {
			t.Waiting = append(t.Waiting, h.AllocateWaitSend(ch))
			t.PC = fallthroughAddr
			return StepContinue, nil
		}
		t.Blocked = true
		t.Waiting = append(t.Waiting, h.AllocateWaitSend(ch))
		return StepYielded, nil
	}

	h.ChannelPushItem(ch, val)
	t.PC++
	if nonBlocking {
		return StepContinue, nil
	}
	t.Blocked = true
	t.Waiting = append(t.Waiting, h.AllocateWaitSend(ch))
	return StepYielded, nil
}

func (vm *VM) receive(t *Task, eb *errorBuilder, nonBlocking bool, fallthroughAddr int) (StepResult, *VMError) {
	h := vm.Heap
	ch, err := t.popOperand(eb)
	if err != nil {
		return StepContinue, err
	}
	if h.Tag(ch) != heap.TagChan {
		return StepContinue, eb.notAChannel("RECEIVE", h.Tag(ch).String())
	}

	if h.ChannelIsEmpty(ch) {
		t.pushOperand(ch)
		if nonBlocking {
			t.Waiting = append(t.Waiting, h.AllocateWaitReceive(ch))
			t.PC = fallthroughAddr
			return StepContinue, nil
		}
		t.Blocked = true
		t.Waiting = append(t.Waiting, h.AllocateWaitReceive(ch))
		return StepYielded, nil
	}

	v := h.ChannelPopItem(ch)
	t.pushOperand(v)
	t.PC++
	return StepContinue, nil
}
