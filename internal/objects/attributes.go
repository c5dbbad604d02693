// Package objects provides the object manager registry and the generic data
// object used for reference resolution.
package objects

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"metaschema/internal/core/id"
	"metaschema/internal/metadata"
)

// Attributes holds the field values of a data object as stored in a JSON body.
// Numbers are kept as json.Number so decimals keep their precision.
type Attributes map[string]any

// Scan implements sql.Scanner for jsonb columns.
func (a *Attributes) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	case map[string]any:
		*a = v
		return nil
	default:
		return fmt.Errorf("unsupported type for Attributes: %T", src)
	}
	if len(source) == 0 {
		*a = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}
	*a = values
	return nil
}

// Value implements driver.Valuer.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Get implements resolver.Row.
func (a Attributes) Get(field string) any {
	if a == nil {
		return nil
	}
	return a[field]
}

// Text returns the string value of key or "".
func (a Attributes) Text(key string) string {
	if v, ok := a.Get(key).(string); ok {
		return v
	}
	return ""
}

// Bool returns the boolean value of key.
func (a Attributes) Bool(key string) bool {
	v, _ := a.Get(key).(bool)
	return v
}

// Decimal returns the numeric value of key with full precision.
func (a Attributes) Decimal(key string) decimal.Decimal {
	switch v := a.Get(key).(type) {
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case decimal.Decimal:
		return v
	}
	return decimal.Zero
}

// Ref returns the reference stored under key, blank when absent.
func (a Attributes) Ref(key string) id.ID {
	ref, _ := id.FromValue(a.Get(key))
	return ref
}

// Time returns the date value of key. Strings are parsed as RFC 3339.
func (a Attributes) Time(key string) (time.Time, bool) {
	switch v := a.Get(key).(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil
	}
	return time.Time{}, false
}

// TypeDescriptor decodes a type descriptor stored under key, as properties
// of characteristic kinds keep their value type.
func (a Attributes) TypeDescriptor(key string) *metadata.TypeDescriptor {
	switch v := a.Get(key).(type) {
	case nil:
		return nil
	case *metadata.TypeDescriptor:
		return v
	case metadata.TypeDescriptor:
		return &v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var td metadata.TypeDescriptor
		if err := json.Unmarshal(data, &td); err != nil || len(td.Types) == 0 {
			return nil
		}
		return &td
	}
}

// Has reports whether key is present, including nil values.
func (a Attributes) Has(key string) bool {
	if a == nil {
		return false
	}
	_, ok := a[key]
	return ok
}

// Set stores value under key.
func (a *Attributes) Set(key string, value any) Attributes {
	if *a == nil {
		*a = make(Attributes)
	}
	(*a)[key] = value
	return *a
}

// Clone creates a shallow copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
