package heap

// ValueToAddress boxes a Go-level primitive (float64, bool, string, nil for
// null, or Undefined{}) into its heap address, interning strings and
// reusing the boolean/null/undefined singletons.
func (h *Heap) ValueToAddress(v any) Address {
	switch x := v.(type) {
	case float64:
		return h.AllocateNumber(x)
	case bool:
		if x {
			return h.True()
		}
		return h.False()
	case string:
		return h.AllocateString(x)
	case Undefined:
		return h.Undefined()
	case nil:
		return h.Null()
	default:
		h.fatal("value_to_address: unsupported Go value %T", v)
		return 0
	}
}

// Undefined is the Go-side marker for the UNDEFINED singleton.
type Undefined struct{}

// AddressToValue unboxes a primitive heap address back to a Go value.
// Non-primitive tags (arrays, closures, environments, ...) are returned as
// their raw Address wrapped in Opaque, since they have no Go-native form.
func (h *Heap) AddressToValue(addr Address) any {
	switch h.Tag(addr) {
	case TagNumber:
		return h.NumberValue(addr)
	case TagTrue:
		return true
	case TagFalse:
		return false
	case TagString:
		return h.StringText(addr)
	case TagNull:
		return nil
	case TagUndefined:
		return Undefined{}
	default:
		return Opaque(addr)
	}
}

// Opaque wraps a non-primitive heap address for display purposes.
type Opaque Address

// IsTruthy implements the design's boolean test for JOF: every address is
// truthy except the FALSE singleton.
func (h *Heap) IsTruthy(addr Address) bool {
	return addr != h.False()
}
