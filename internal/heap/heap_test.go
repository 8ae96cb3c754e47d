package heap

import "testing"

// newTestHeap builds a heap big enough that none of the accessor-level
// tests here trip an allocation-triggered collection: with no RootSource
// attached, a surprise collect would sweep the very objects under test.
// GC and growth behavior get their own coverage with explicit roots.
func newTestHeap() *Heap {
	return New(64 * nodeWords * 8)
}

func TestBootstrapSingletonsAreDistinctAndTagged(t *testing.T) {
	h := newTestHeap()
	singletons := map[Address]Tag{
		h.False():       TagFalse,
		h.True():        TagTrue,
		h.Null():        TagNull,
		h.Undefined():   TagUndefined,
		h.Unallocated(): TagUnallocated,
	}
	if len(singletons) != 5 {
		t.Fatalf("expected 5 distinct singleton addresses, got %d", len(singletons))
	}
	for addr, want := range singletons {
		if got := h.Tag(addr); got != want {
			t.Errorf("address %d: Tag = %s, want %s", addr, got, want)
		}
	}
}

func TestAllocateNumberRoundTrip(t *testing.T) {
	h := newTestHeap()
	addr := h.AllocateNumber(3.5)
	if h.Tag(addr) != TagNumber {
		t.Fatalf("Tag = %s, want NUMBER", h.Tag(addr))
	}
	if got := h.NumberValue(addr); got != 3.5 {
		t.Fatalf("NumberValue = %v, want 3.5", got)
	}
}

func TestStringInterning(t *testing.T) {
	h := newTestHeap()
	a := h.AllocateString("hello")
	b := h.AllocateString("hello")
	if a != b {
		t.Fatalf("equal strings interned to different addresses: %d vs %d", a, b)
	}
	c := h.AllocateString("world")
	if a == c {
		t.Fatalf("distinct strings interned to the same address")
	}
	if got := h.StringText(a); got != "hello" {
		t.Fatalf("StringText = %q, want %q", got, "hello")
	}
}

func TestArrayAccessAndBoundsCheck(t *testing.T) {
	h := newTestHeap()
	arr := h.AllocateArray(3)
	if h.ArrayLen(arr) != 3 {
		t.Fatalf("ArrayLen = %d, want 3", h.ArrayLen(arr))
	}
	val := h.AllocateNumber(7)
	h.ArraySet(arr, 1, val)
	if got := h.ArrayGet(arr, 1); got != val {
		t.Fatalf("ArrayGet(1) = %d, want %d", got, val)
	}
	if got := h.ArrayGet(arr, 0); got != h.Unallocated() {
		t.Fatalf("untouched slot = %d, want UNALLOCATED (%d)", got, h.Unallocated())
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range array access")
		}
	}()
	h.ArrayGet(arr, 3)
}

func TestArrayWithExtensionChain(t *testing.T) {
	h := newTestHeap()
	arr := h.AllocateArray(20) // forces two extension nodes (8 + 8 + 4)
	if h.ArrayLen(arr) != 20 {
		t.Fatalf("ArrayLen = %d, want 20", h.ArrayLen(arr))
	}
	vals := make([]Address, 20)
	for i := range vals {
		vals[i] = h.AllocateNumber(float64(i))
		h.ArraySet(arr, i, vals[i])
	}
	for i := range vals {
		if got := h.ArrayGet(arr, i); got != vals[i] {
			t.Errorf("element %d: got %d, want %d", i, got, vals[i])
		}
	}
}

func TestEnvironmentExtendAndLookup(t *testing.T) {
	h := newTestHeap()
	f0 := h.AllocateFrame(1)
	h.SetFrameSlot(f0, 0, h.AllocateNumber(1))
	env0 := h.ExtendEnvironment(0, f0)

	f1 := h.AllocateFrame(1)
	h.SetFrameSlot(f1, 0, h.AllocateNumber(2))
	env1 := h.ExtendEnvironment(env0, f1)

	if h.EnvironmentFrameCount(env1) != 2 {
		t.Fatalf("frame count = %d, want 2", h.EnvironmentFrameCount(env1))
	}
	inner := h.EnvironmentFrame(env1, 0)
	outer := h.EnvironmentFrame(env1, 1)
	if h.NumberValue(h.FrameSlot(inner, 0)) != 2 {
		t.Errorf("innermost frame slot 0 = %v, want 2", h.NumberValue(h.FrameSlot(inner, 0)))
	}
	if h.NumberValue(h.FrameSlot(outer, 0)) != 1 {
		t.Errorf("outer frame slot 0 = %v, want 1", h.NumberValue(h.FrameSlot(outer, 0)))
	}
	// env0 must be untouched by the extension.
	if h.EnvironmentFrameCount(env0) != 1 {
		t.Errorf("original environment mutated: frame count = %d, want 1", h.EnvironmentFrameCount(env0))
	}
}

func TestChannelRendezvousProtocol(t *testing.T) {
	h := newTestHeap()
	ch := h.AllocateChannel()
	if !h.ChannelIsEmpty(ch) {
		t.Fatal("new channel should be empty")
	}
	v := h.AllocateNumber(42)
	h.ChannelPushItem(ch, v)
	if !h.ChannelIsFull(ch) {
		t.Fatal("channel should be full after push")
	}
	if got := h.ChannelItem(ch); got != v {
		t.Fatalf("ChannelItem = %d, want %d", got, v)
	}
	got := h.ChannelPopItem(ch)
	if got != v {
		t.Fatalf("ChannelPopItem = %d, want %d", got, v)
	}
	if !h.ChannelIsEmpty(ch) {
		t.Fatal("channel should be empty after pop")
	}
}

func TestChannelPushOnFullIsFatal(t *testing.T) {
	h := newTestHeap()
	ch := h.AllocateChannel()
	h.ChannelPushItem(ch, h.AllocateNumber(1))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic pushing to a full channel")
		}
	}()
	h.ChannelPushItem(ch, h.AllocateNumber(2))
}

func TestClosureCapture(t *testing.T) {
	h := newTestHeap()
	env := h.ExtendEnvironment(0, h.AllocateFrame(0))
	cl := h.AllocateClosure(2, 17, env)
	arity, entry := h.ClosureArityEntry(cl)
	if arity != 2 || entry != 17 {
		t.Fatalf("ClosureArityEntry = (%d,%d), want (2,17)", arity, entry)
	}
	if h.ClosureEnv(cl) != env {
		t.Fatalf("ClosureEnv = %d, want %d", h.ClosureEnv(cl), env)
	}
}

func TestRequireTagMismatchIsFatal(t *testing.T) {
	h := newTestHeap()
	num := h.AllocateNumber(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading a NUMBER as a STRING")
		}
	}()
	h.StringText(num)
}

func TestValueToAddressAndBack(t *testing.T) {
	h := newTestHeap()
	cases := []any{1.5, true, false, "x", nil, Undefined{}}
	for _, v := range cases {
		addr := h.ValueToAddress(v)
		got := h.AddressToValue(addr)
		if got != v {
			t.Errorf("round trip %v: got %v (%T)", v, got, got)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	h := newTestHeap()
	if h.IsTruthy(h.False()) {
		t.Error("FALSE should not be truthy")
	}
	if !h.IsTruthy(h.True()) {
		t.Error("TRUE should be truthy")
	}
	if !h.IsTruthy(h.Null()) {
		t.Error("NULL should be truthy (only FALSE is falsy)")
	}
}
