package bom

// UIDSequencer hands out monotonically increasing node ids for one document
// traversal. The zero value starts counting at 1. A sequencer must never be
// shared across documents or concurrent builds.
type UIDSequencer struct {
	current uint
}

// Next returns the next unique id.
func (s *UIDSequencer) Next() uint {
	s.current++
	return s.current
}

// Count returns how many ids have been issued so far.
func (s *UIDSequencer) Count() uint {
	return s.current
}
