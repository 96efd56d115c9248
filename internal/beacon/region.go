package beacon

import (
	"fmt"
	"strings"
)

// Region is a named scope of beacons. A nil identifier matches anything in
// that position, so a region with only a UUID matches every major/minor.
type Region struct {
	ID          string
	Identifiers []*Identifier
}

// NewRegion builds a region. Trailing wildcards are dropped.
func NewRegion(id string, ids ...*Identifier) Region {
	n := len(ids)
	for n > 0 && ids[n-1] == nil {
		n--
	}
	cp := make([]*Identifier, n)
	copy(cp, ids[:n])
	return Region{ID: id, Identifiers: cp}
}

// Identifier returns the i-th identifier constraint, or nil.
func (r Region) Identifier(i int) *Identifier {
	if i < 0 || i >= len(r.Identifiers) {
		return nil
	}
	return r.Identifiers[i]
}

// UUID returns the first identifier constraint, or nil.
func (r Region) UUID() *Identifier { return r.Identifier(0) }

// Major returns the second identifier constraint, or nil.
func (r Region) Major() *Identifier { return r.Identifier(1) }

// Minor returns the third identifier constraint, or nil.
func (r Region) Minor() *Identifier { return r.Identifier(2) }

// SameRegion reports whether both regions share the unique ID. Identifier
// constraints do not take part in region identity.
func (r Region) SameRegion(other Region) bool {
	return r.ID == other.ID
}

// Matches reports whether every non-nil identifier of r equals the beacon's
// identifier in the same position.
func (r Region) Matches(b Beacon) bool {
	for i, want := range r.Identifiers {
		if want == nil {
			continue
		}
		if i >= len(b.Identifiers) || !want.Equal(b.Identifiers[i]) {
			return false
		}
	}
	return true
}

func (r Region) String() string {
	parts := make([]string, 0, len(r.Identifiers))
	for i, id := range r.Identifiers {
		if id == nil {
			parts = append(parts, fmt.Sprintf("id%d: *", i+1))
			continue
		}
		parts = append(parts, fmt.Sprintf("id%d: %s", i+1, id))
	}
	if len(parts) == 0 {
		return r.ID + " [*]"
	}
	return r.ID + " [" + strings.Join(parts, " ") + "]"
}
