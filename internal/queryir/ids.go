package queryir

import (
	"github.com/google/uuid"
)

// IDGenerator produces record ids for insert statements that lack one.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// EnsureID prepends an id assignment to an insert that has none.
// Other query kinds, and inserts that already assign id, are returned unchanged.
func EnsureID(q Query, gen IDGenerator) Query {
	var ins Insert
	switch v := q.(type) {
	case *Insert:
		ins = *v
	case Insert:
		ins = v
	default:
		return q
	}

	for _, a := range ins.Values {
		if a.Attribute == "id" {
			return q
		}
	}
	values := make(Values, 0, len(ins.Values)+1)
	values = append(values, Set("id", gen.Generate()))
	ins.Values = append(values, ins.Values...)
	return &ins
}
