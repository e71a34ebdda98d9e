package snapshot

import "reflect"

// SharesValues reports whether s and other are of the same type and hold
// the very same stored values, slot by slot. A snapshot and its reversal
// partner created by Reversed always share values; a deep copy that was
// later modified does not.
func (s *Snapshot) SharesValues(other *Snapshot) bool {
	if s == nil || other == nil || s.typ != other.typ || !s.typ.composed() {
		return false
	}
	for i := range s.slots {
		if !sameValue(s.slots[i], other.slots[i]) {
			return false
		}
	}
	return true
}

// sameValue compares reference-like values by address and everything else
// by ==. Values that are neither are never considered the same.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return false
	}
	if va.Comparable() {
		return a == b
	}
	return false
}
