// Package flatten converts nested records into dotted-path columns.
package flatten

import "sort"

// Record is a single input document: a mapping whose values may be
// scalars, nested mappings, or sequences thereof.
type Record = map[string]any

// Pair is one flattened column: a dot-joined key path and its scalar value.
type Pair struct {
	Path  string
	Value any
}

// reservedKey is skipped at every nesting level. Document databases use it
// for internal object identifiers that never carry semantic content.
const reservedKey = "_id"

// Walk flattens a record into (path, value) pairs.
//
// Mappings recurse with the key appended to the dotted path. For sequence
// values, mapping elements recurse under the sequence's own key; scalar
// elements are dropped. Keys within a level are visited in sorted order so
// that repeated scans over the same data produce identical output.
func Walk(rec Record) []Pair {
	out := make([]Pair, 0, len(rec))
	walk(rec, "", &out)
	return out
}

func walk(rec Record, prefix string, out *[]Pair) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k == reservedKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := rec[k].(type) {
		case Record:
			walk(v, path, out)
		case []any:
			for _, el := range v {
				if m, ok := el.(Record); ok {
					walk(m, path, out)
				}
			}
		default:
			*out = append(*out, Pair{Path: path, Value: v})
		}
	}
}

// ShortName returns the last segment of a dotted column path.
func ShortName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
