// Package objectpath reads and writes dotted paths ("a.b.0.c") on schemaless
// documents. Maps (bson.M, map[string]interface{}), ordered documents (bson.D)
// and arrays (bson.A, []interface{}) are traversed; numeric segments index
// arrays.
package objectpath

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Get returns the value at path and whether it was present.
func Get(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return doc, doc != nil
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Value is Get without the presence flag.
func Value(doc interface{}, path string) interface{} {
	v, _ := Get(doc, path)
	return v
}

func child(cur interface{}, seg string) (interface{}, bool) {
	switch v := cur.(type) {
	case bson.M:
		val, ok := v[seg]
		return val, ok
	case map[string]interface{}:
		val, ok := v[seg]
		return val, ok
	case bson.D:
		for _, e := range v {
			if e.Key == seg {
				return e.Value, true
			}
		}
		return nil, false
	case bson.A:
		return index([]interface{}(v), seg)
	case []interface{}:
		return index(v, seg)
	default:
		return nil, false
	}
}

func index(arr []interface{}, seg string) (interface{}, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= len(arr) {
		return nil, false
	}
	return arr[i], true
}

// Set writes value at path, creating intermediate bson.M documents as needed.
// Existing intermediate values that are not documents are replaced.
func Set(doc bson.M, path string, value interface{}) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asMap(cur[seg])
		if !ok {
			next = bson.M{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// Delete removes path from doc. Missing paths are ignored.
func Delete(doc bson.M, path string) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asMap(cur[seg])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

func asMap(v interface{}) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return bson.M(m), true
	default:
		return nil, false
	}
}

// TopLevel returns the first segment of a dotted path.
func TopLevel(path string) string {
	top, _, _ := strings.Cut(path, ".")
	return top
}

// IsDescendant reports whether path is strictly below parent ("a.b" under "a").
func IsDescendant(path, parent string) bool {
	return strings.HasPrefix(path, parent+".")
}
