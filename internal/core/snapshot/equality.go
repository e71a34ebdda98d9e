package snapshot

import "context"

// Equal reports whether other denotes this very snapshot. Attribute
// values are never compared: two independently built snapshots with the
// same coordinates are different events.
func (s *Snapshot) Equal(ctx context.Context, other Ref) (bool, error) {
	switch o := other.(type) {
	case *Snapshot:
		return o == s, nil
	case *Proxy:
		if o == nil {
			return false, nil
		}
		subject, err := o.Subject(ctx)
		if err != nil {
			return false, err
		}
		return subject == s, nil
	default:
		return false, nil
	}
}
