package store

import (
	"fmt"

	"github.com/roach88/ormsql/internal/ir"
)

// fromColumn converts a value scanned from SQLite into an IRValue.
//
// SQLite hands back int64, float64, string or []byte for its storage
// classes, and nil for NULL. TEXT columns come back as strings whatever
// the literal looked like, so '10' stays "10".
func fromColumn(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case int64:
		return ir.IRInt(val), nil
	case float64:
		return ir.IRFloat(val), nil
	case string:
		return ir.IRString(val), nil
	case []byte:
		return ir.IRString(string(val)), nil
	case bool:
		return ir.IRBool(val), nil
	default:
		return nil, fmt.Errorf("unsupported column value %T", v)
	}
}
