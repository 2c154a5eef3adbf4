package domain

// AuthorizationSet is an ordered sequence of authorization params. Duplicates
// are permitted for repeatable tags (purpose, digest, padding lists). Insertion
// order carries no semantic meaning but is preserved for round-tripping.
type AuthorizationSet []Param

// Contains reports whether the set holds at least one param with the tag.
func (s AuthorizationSet) Contains(tag Tag) bool {
	for _, p := range s {
		if p.Tag == tag {
			return true
		}
	}
	return false
}

// ContainsEnum reports whether the set holds the tag with the given enum value.
func (s AuthorizationSet) ContainsEnum(tag Tag, value uint64) bool {
	for _, p := range s {
		if p.Tag == tag && p.Uint == value {
			return true
		}
	}
	return false
}

// Get returns the first param with the tag.
func (s AuthorizationSet) Get(tag Tag) (Param, bool) {
	for _, p := range s {
		if p.Tag == tag {
			return p, true
		}
	}
	return Param{}, false
}

// GetUint returns the numeric value of the first param with the tag.
func (s AuthorizationSet) GetUint(tag Tag) (uint64, bool) {
	p, ok := s.Get(tag)
	return p.Uint, ok
}

// GetBlob returns the blob value of the first param with the tag.
func (s AuthorizationSet) GetBlob(tag Tag) ([]byte, bool) {
	p, ok := s.Get(tag)
	return p.Blob, ok
}

// GetAllUints returns the numeric values of every param with the tag, in
// insertion order. Used for repeatable tags such as PURPOSE and DIGEST.
func (s AuthorizationSet) GetAllUints(tag Tag) []uint64 {
	var values []uint64
	for _, p := range s {
		if p.Tag == tag {
			values = append(values, p.Uint)
		}
	}
	return values
}

// IsEmpty reports whether the set has no params.
func (s AuthorizationSet) IsEmpty() bool {
	return len(s) == 0
}

// Clone returns a deep copy of the set.
func (s AuthorizationSet) Clone() AuthorizationSet {
	if s == nil {
		return nil
	}
	clone := make(AuthorizationSet, len(s))
	for i, p := range s {
		clone[i] = p.Clone()
	}
	return clone
}

// Equal reports whether two sets hold the same params in the same order.
func (s AuthorizationSet) Equal(other AuthorizationSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}
