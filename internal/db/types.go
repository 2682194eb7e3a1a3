package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a thin wrapper around map[string]any that implements
// sql.Scanner and driver.Valuer so it works transparently with jsonb columns.
// Used for the opaque raw_data payload kept on satellite alerts.
type JSONMap map[string]any

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	if m == nil {
		return fmt.Errorf("dbtypes: Scan on nil *JSONMap")
	}
	if src == nil {
		*m = JSONMap{}
		return nil
	}

	switch v := src.(type) {
	case []byte:
		var out map[string]any
		if err := json.Unmarshal(v, &out); err != nil {
			return err
		}
		*m = out
		return nil
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return err
		}
		*m = out
		return nil
	default:
		return fmt.Errorf("dbtypes: cannot scan type %T into JSONMap", src)
	}
}

// Value implements driver.Valuer
// Marshals the map to JSON (works well with jsonb columns).
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
