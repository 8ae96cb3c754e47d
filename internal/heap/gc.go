package heap

// collect runs a full mark-and-sweep cycle. Apart from the exported
// Collect, it is invoked only from allocRaw on a free-list miss; the heap
// is not reentrant and no
// allocator call may begin until the previous one returns, so a collection
// always sees a consistent node set.
func (h *Heap) collect() {
	for _, addr := range h.literals {
		h.mark(addr)
	}
	for _, addr := range h.working {
		h.mark(addr)
	}
	if h.Roots != nil {
		h.Roots.MarkRoots(h.mark)
	}
	h.sweep()
	h.sweeps++
	if h.Trace != nil {
		h.Trace.TraceGC(h.Stats())
	}
}

// Collect runs a collection on demand; exported for callers (e.g. tests
// asserting that reachable objects survive) that want to force a cycle
// outside of an allocation miss.
func (h *Heap) Collect() { h.collect() }

// mark recursively marks addr and everything reachable from it. Already
// marked and FREE nodes terminate the recursion. Extension links are
// always followed, mirroring the design's "extension links are followed
// like a child slot": for tags with no collection children this just
// marks the UNALLOCATED singleton again, which is idempotent.
func (h *Heap) mark(addr Address) {
	hd := h.readHeader(addr)
	if hd.mark == 1 || hd.tag == TagFree {
		return
	}
	hd.mark = 1
	h.writeHeader(addr, hd)

	slots := addressSlotCount(hd.tag, hd.childCount)
	for i := 0; i < slots; i++ {
		child := h.addressWord(addr, i)
		h.mark(child)
	}
	h.mark(h.readExtension(addr))
}

// sweep frees every unmarked, non-free node and clears the mark bit on
// every surviving node. A single linear pass over node addresses suffices:
// free nodes are left untouched, unmarked live nodes are freed, and
// marked nodes are unmarked.
func (h *Heap) sweep() {
	for base := 0; base < h.nodes; base++ {
		addr := Address(base * nodeWords)
		hd := h.readHeader(addr)
		switch {
		case hd.tag == TagFree:
			continue
		case hd.mark == 0:
			h.freeNode(addr, hd)
		default:
			hd.mark = 0
			h.writeHeader(addr, hd)
		}
	}
}

func (h *Heap) freeNode(addr Address, hd header) {
	if hd.tag == TagString {
		hashKey := uint32(h.readWord(addr, 0))
		h.strings.remove(hashKey)
	}
	if h.Trace != nil {
		h.Trace.TraceFree(hd.tag, addr)
	}
	h.writeHeader(addr, header{tag: TagFree, metadata: encodeFreeNext(h.freeHead)})
	h.freeHead = addr
	h.freeLen++
}
