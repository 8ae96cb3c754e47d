package heap

import "fortio.org/safecast"

// Address is a word-address into the heap's backing buffer: the word index
// of a node's header. Address(-1) is never a valid node and is used only as
// the free-list traversal terminator.
type Address int32

// freeListEnd terminates the free list; it is distinct from the
// UNALLOCATED singleton's address, which is the "empty child" sentinel
// used everywhere else.
const freeListEnd Address = -1

const (
	// nodeWords is the fixed size of every heap node, in 8-byte words.
	nodeWords = 10
	// childSlotsPerNode is the number of child slots carried by a single
	// node (words 1..8); word 0 is the header and word 9 is the extension
	// link.
	childSlotsPerNode = 8
	// headerWord is the offset of the tag header within a node.
	headerWord = 0
	// extensionWord is the offset of the extension link within a node.
	extensionWord = nodeWords - 1
)

// header is the byte-precise tag header packed into a node's first word:
//
//	offset 0, 1 byte  - tag
//	offset 1, 1 byte  - gc mark (0 unmarked, 1 marked)
//	offset 2, 2 bytes - child count
//	offset 4, 4 bytes - metadata
type header struct {
	tag        Tag
	mark       uint8
	childCount uint16
	metadata   uint32
}

func encodeHeader(h header) uint64 {
	return uint64(h.tag) |
		uint64(h.mark)<<8 |
		uint64(h.childCount)<<16 |
		uint64(h.metadata)<<32
}

// narrowField is the set of header-field widths narrowed via safecast.
type narrowField interface {
	~uint8 | ~uint16 | ~uint32 | ~int16 | ~int32
}

// mustNarrow narrows x to T, panicking if it does not fit. Every call site
// in this file masks to the destination width first, so failure here means
// heap corruption, not a reachable runtime condition.
func mustNarrow[T narrowField](x uint64) T {
	v, err := safecast.Conv[T](x)
	if err != nil {
		panic("heap: header field out of range: " + err.Error())
	}
	return v
}

func decodeHeader(w uint64) header {
	return header{
		tag:        Tag(mustNarrow[uint8](w & 0xff)),
		mark:       mustNarrow[uint8]((w >> 8) & 0xff),
		childCount: mustNarrow[uint16]((w >> 16) & 0xffff),
		metadata:   mustNarrow[uint32]((w >> 32) & 0xffffffff),
	}
}

// encodeFreeNext packs a free-list "next" address (or freeListEnd) into the
// header metadata field, matching the literal -1 terminator from the design.
func encodeFreeNext(next Address) uint32 {
	return uint32(int32(next))
}

func decodeFreeNext(metadata uint32) Address {
	return Address(int32(metadata))
}
