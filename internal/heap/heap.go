// Package heap implements the VM's managed memory: a fixed-node,
// word-addressed heap with tagged-pointer objects, a free-list allocator,
// a mark-and-sweep collector, and dynamic growth by doubling.
package heap

import "fmt"

// RootSource lets the scheduler present every task's roots to the
// collector without the heap knowing anything about tasks. It is the
// "narrow mark-roots-of-all-tasks callback" the design calls for.
type RootSource interface {
	MarkRoots(mark func(Address))
}

// Stats reports heap occupancy for diagnostics; purely observational.
type Stats struct {
	LiveNodes  int
	FreeNodes  int
	TotalNodes int
	Sweeps     uint64
}

// Heap owns every runtime value. Tasks and the scheduler hold only
// addresses into it.
type Heap struct {
	words []uint64 // nodeWords words per node
	nodes int      // total node capacity

	freeHead   Address
	freeLen    int
	limitNodes int // growth cap; 0 = unbounded

	strings *stringPool

	literals [5]Address // FALSE, TRUE, NULL, UNDEFINED, UNALLOCATED, in that order
	working  []Address  // protects in-flight multi-step allocation sequences

	Roots RootSource
	Trace Tracer

	sweeps uint64
}

// literal indices into Heap.literals.
const (
	litFalse = iota
	litTrue
	litNull
	litUndefined
	litUnallocated
)

// Tracer receives debug-only notifications from the heap. A nil entry in
// the interface is never called; Heap.Trace may be left nil entirely.
type Tracer interface {
	TraceAlloc(tag Tag, addr Address)
	TraceFree(tag Tag, addr Address)
	TraceGC(stats Stats)
}

// minNodes is the lowest node count New will accept; smaller requests are
// rounded up so the bootstrap singletons always have somewhere to land.
const minNodes = 1

// New creates a heap sized to hold at least sizeBytes worth of nodes
// (rounded up to whole nodes, and up to minNodes). The backing buffer
// grows by doubling whenever allocation exhausts the free list and a
// collection does not recover enough space.
func New(sizeBytes int) *Heap {
	nodeBytes := nodeWords * 8
	n := sizeBytes / nodeBytes
	if n < minNodes {
		n = minNodes
	}
	h := &Heap{
		nodes:   n,
		strings: newStringPool(),
	}
	h.words = make([]uint64, n*nodeWords)
	h.buildFreeList(0, n)
	h.bootstrapLiterals()
	return h
}

func (h *Heap) buildFreeList(from, to int) {
	next := h.freeHead
	if from == 0 {
		next = freeListEnd
	}
	// Link nodes [to-1 .. from] so the lowest new address becomes the head,
	// preserving first-fit-from-head behavior across growths.
	for i := to - 1; i >= from; i-- {
		addr := Address(i * nodeWords)
		h.writeHeader(addr, header{tag: TagFree, metadata: encodeFreeNext(next)})
		next = addr
	}
	h.freeHead = next
	h.freeLen += to - from
}

func (h *Heap) bootstrapLiterals() {
	h.literals[litFalse] = h.allocRaw(TagFalse, 0, 0)
	h.literals[litTrue] = h.allocRaw(TagTrue, 0, 0)
	h.literals[litNull] = h.allocRaw(TagNull, 0, 0)
	h.literals[litUndefined] = h.allocRaw(TagUndefined, 0, 0)
	h.literals[litUnallocated] = h.allocRaw(TagUnallocated, 0, 0)
}

// False, True, Null, Undefined and Unallocated return the addresses of the
// five heap-creation-time singletons. Their addresses never change across
// a GC cycle or a resize.
func (h *Heap) False() Address       { return h.literals[litFalse] }
func (h *Heap) True() Address        { return h.literals[litTrue] }
func (h *Heap) Null() Address        { return h.literals[litNull] }
func (h *Heap) Undefined() Address   { return h.literals[litUndefined] }
func (h *Heap) Unallocated() Address { return h.literals[litUnallocated] }

func (h *Heap) readHeader(addr Address) header {
	return decodeHeader(h.words[int(addr)+headerWord])
}

func (h *Heap) writeHeader(addr Address, hd header) {
	h.words[int(addr)+headerWord] = encodeHeader(hd)
}

func (h *Heap) readWord(addr Address, slot int) uint64 {
	return h.words[int(addr)+1+slot]
}

func (h *Heap) writeWord(addr Address, slot int, v uint64) {
	h.words[int(addr)+1+slot] = v
}

func (h *Heap) readExtension(addr Address) Address {
	return Address(int32(uint32(h.words[int(addr)+extensionWord])))
}

func (h *Heap) writeExtension(addr Address, ext Address) {
	h.words[int(addr)+extensionWord] = uint64(uint32(int32(ext)))
}

// Tag reports the tag of the node at addr.
func (h *Heap) Tag(addr Address) Tag {
	return h.readHeader(addr).tag
}

// fatal reports an unrecoverable VM invariant breach. Every caller in
// this package is a programmer bug (compiler/VM mismatch); genuine
// resource exhaustion has its own typed escape, OutOfMemoryError.
func (h *Heap) fatal(format string, args ...any) {
	panic(fmt.Sprintf("heap: "+format, args...))
}

// OutOfMemoryError reports that an allocation found no free node even
// after a full collection and a growth attempt. It is raised as a panic
// value rather than threaded through every allocator return; the
// interpreter recovers it at the instruction boundary and surfaces it as
// the same fatal error shape every other unrecoverable condition uses.
type OutOfMemoryError struct {
	Nodes int // node capacity at the time of exhaustion
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("heap exhausted: no free node among %d after collect and grow", e.Nodes)
}

// SetLimitBytes caps heap growth at the node capacity sizeBytes holds;
// 0 removes the cap. The current capacity is never shrunk.
func (h *Heap) SetLimitBytes(sizeBytes int) {
	if sizeBytes <= 0 {
		h.limitNodes = 0
		return
	}
	n := sizeBytes / (nodeWords * 8)
	if n < minNodes {
		n = minNodes
	}
	h.limitNodes = n
}

// allocRaw claims one free node (after GC/growth if needed) and initializes
// its header; all child slots and the extension link default to the
// UNALLOCATED singleton. It never builds extension chains; see Allocate.
func (h *Heap) allocRaw(tag Tag, childCount uint16, metadata uint32) Address {
	if h.freeHead == freeListEnd {
		h.collect()
	}
	if h.freeHead == freeListEnd {
		h.grow()
	}
	if h.freeHead == freeListEnd {
		panic(&OutOfMemoryError{Nodes: h.nodes})
	}

	addr := h.freeHead
	free := h.readHeader(addr)
	h.freeHead = decodeFreeNext(free.metadata)
	h.freeLen--

	h.writeHeader(addr, header{tag: tag, childCount: childCount, metadata: metadata})
	fill := uint64(uint32(int32(h.Unallocated())))
	for i := 0; i < childSlotsPerNode; i++ {
		h.words[int(addr)+1+i] = fill
	}
	h.words[int(addr)+extensionWord] = fill

	if h.Trace != nil {
		h.Trace.TraceAlloc(tag, addr)
	}
	return addr
}

// grow doubles the backing buffer's node capacity, capped at the
// configured limit, and appends the new nodes to the free list. At the
// limit it returns without growing; allocRaw then reports exhaustion.
func (h *Heap) grow() {
	oldNodes := h.nodes
	newNodes := oldNodes * 2
	if newNodes <= oldNodes {
		newNodes = oldNodes + 1
	}
	if h.limitNodes > 0 && newNodes > h.limitNodes {
		newNodes = h.limitNodes
	}
	if newNodes <= oldNodes {
		return
	}
	grown := make([]uint64, newNodes*nodeWords)
	copy(grown, h.words)
	h.words = grown
	h.nodes = newNodes
	h.buildFreeList(oldNodes, newNodes)
}

// Allocate is the generic entry point backing every typed allocator: it
// reserves a node (or a chain of nodes, for childCount > 8) tagged `tag`
// and returns the address of the head node.
func (h *Heap) Allocate(tag Tag, childCount int, metadata uint32) Address {
	if childCount < 0 {
		h.fatal("negative child count %d for tag %s", childCount, tag)
	}
	cc := mustNarrow[uint16](uint64(childCount))
	if childCount <= childSlotsPerNode {
		return h.allocRaw(tag, cc, metadata)
	}

	head := h.allocRaw(tag, cc, metadata)
	h.PushWorking(head)
	pushes := 1

	remaining := childCount - childSlotsPerNode
	prev := head
	for remaining > 0 {
		n := remaining
		if n > childSlotsPerNode {
			n = childSlotsPerNode
		}
		ext := h.allocRaw(TagExtension, mustNarrow[uint16](uint64(n)), 0)
		h.writeExtension(prev, ext)
		h.PushWorking(ext)
		pushes++
		prev = ext
		remaining -= n
	}
	for ; pushes > 0; pushes-- {
		h.PopWorking()
	}
	return head
}

// PushWorking registers addr as a temporary root, protecting it across any
// allocation that might trigger GC before it becomes reachable through an
// official root. PopWorking releases the most recently pushed entry.
func (h *Heap) PushWorking(addr Address) { h.working = append(h.working, addr) }

func (h *Heap) PopWorking() {
	if len(h.working) == 0 {
		return
	}
	h.working = h.working[:len(h.working)-1]
}

// WorkingScope pushes addr and returns a function that pops it; intended
// for `defer heap.WorkingScope(addr)()`.
func (h *Heap) WorkingScope(addr Address) func() {
	h.PushWorking(addr)
	return h.PopWorking
}

// Stats reports current heap occupancy.
func (h *Heap) Stats() Stats {
	return Stats{
		LiveNodes:  h.nodes - h.freeLen,
		FreeNodes:  h.freeLen,
		TotalNodes: h.nodes,
		Sweeps:     h.sweeps,
	}
}
