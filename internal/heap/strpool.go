package heap

import "golang.org/x/text/unicode/norm"

// stringEntry is the side-table payload for one interned string.
type stringEntry struct {
	addr Address
	text string
}

// stringPool maps a DJB2 hash to the interned node address and its text,
// so that two equal strings always resolve to the same heap address.
type stringPool struct {
	byHash map[uint32]stringEntry
}

func newStringPool() *stringPool {
	return &stringPool{byHash: make(map[uint32]stringEntry)}
}

// djb2 hashes s per character: hash = ((hash<<5) + hash) + ch, folded to
// unsigned 32 bits. Text is NFC-normalized first so visually identical
// strings built from different combining sequences intern to one address.
func djb2(s string) uint32 {
	normalized := norm.NFC.String(s)
	var hash uint32 = 5381
	for _, ch := range []byte(normalized) {
		hash = ((hash << 5) + hash) + uint32(ch)
	}
	return hash
}

func (p *stringPool) lookup(s string) (Address, bool) {
	entry, ok := p.byHash[djb2(s)]
	if !ok {
		return 0, false
	}
	return entry.addr, true
}

func (p *stringPool) insert(s string, addr Address) uint32 {
	h := djb2(s)
	p.byHash[h] = stringEntry{addr: addr, text: norm.NFC.String(s)}
	return h
}

func (p *stringPool) textFor(hashKey uint32) (string, bool) {
	entry, ok := p.byHash[hashKey]
	if !ok {
		return "", false
	}
	return entry.text, true
}

func (p *stringPool) remove(hashKey uint32) {
	delete(p.byHash, hashKey)
}
