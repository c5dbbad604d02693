package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Store-internal identity/version keys stripped from fetched documents.
var storeInternalKeys = []string{"_id", "_rev"}

// ApplyPatch deep-merges patch into base and returns base.
// Maps merge by key, arrays merge by index, scalars from patch win.
// A nested value replaces the base value when their shapes differ.
func ApplyPatch(base, patch map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any, len(patch))
	}
	for key, pv := range patch {
		base[key] = mergeValue(base[key], pv)
	}
	return base
}

func mergeValue(bv, pv any) any {
	switch p := pv.(type) {
	case map[string]any:
		if b, ok := bv.(map[string]any); ok {
			return ApplyPatch(b, p)
		}
		return p
	case []any:
		if b, ok := bv.([]any); ok {
			return mergeSlice(b, p)
		}
		if b, ok := bv.(map[string]any); ok {
			// an object patched by an array merges by index key
			for i, item := range p {
				k := strconv.Itoa(i)
				b[k] = mergeValue(b[k], item)
			}
			return b
		}
		return p
	default:
		return pv
	}
}

func mergeSlice(base, patch []any) []any {
	for i, item := range patch {
		if i < len(base) {
			base[i] = mergeValue(base[i], item)
			continue
		}
		base = append(base, item)
	}
	return base
}

// StripStoreKeys removes store identity/version fields.
func StripStoreKeys(raw map[string]any) {
	for _, k := range storeInternalKeys {
		delete(raw, k)
	}
}

// DecodeDocument converts a generic JSON object into a Document.
func DecodeDocument(raw map[string]any) (*Document, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return doc, nil
}
