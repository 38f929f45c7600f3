// Package casing converts JSON object keys between naming conventions.
package casing

import (
	"sort"

	"github.com/iancoleman/strcase"
)

// NormalizeKeys returns a copy of obj with every top-level key converted from
// snake_case to lowerCamelCase. Nested values are left untouched. Keys are
// visited in sorted order, so when two keys collapse to the same camelCase
// name the one sorting last wins.
func NormalizeKeys(obj map[string]any) map[string]any {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(obj))
	for _, k := range keys {
		out[strcase.ToLowerCamel(k)] = obj[k]
	}
	return out
}
