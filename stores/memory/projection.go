package memory

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/objectpath"
	"github.com/hadi77ir/go-docpager/query"
)

// Project applies a projection to doc and returns a copy; doc is never
// modified. Inclusion, exclusion and $slice projections are supported. The id
// field is always kept unless it is explicitly excluded. A projection made only
// of $slice entries and exclusions keeps every other field.
func Project(doc bson.M, projection bson.M, idField string) (bson.M, error) {
	if len(projection) == 0 {
		return Copy(doc), nil
	}

	var (
		includes  []string
		excludes  []string
		slices    = map[string]interface{}{}
		keepID    = true
		inclusive bool
	)
	for path, spec := range projection {
		if op, ok := operatorDoc(spec); ok {
			if len(op) != 1 || op[0].Key != "$slice" {
				return nil, query.NewFieldError(path, fmt.Errorf("%w: unsupported projection operator", query.ErrInvalidQuery))
			}
			slices[path] = op[0].Value
			continue
		}
		if truthy(spec) {
			includes = append(includes, path)
			inclusive = true
			continue
		}
		if path == idField {
			keepID = false
			continue
		}
		excludes = append(excludes, path)
	}
	if inclusive && len(excludes) > 0 {
		return nil, query.NewFieldError(excludes[0], fmt.Errorf("%w: cannot mix inclusion and exclusion", query.ErrInvalidQuery))
	}

	var out bson.M
	if inclusive {
		out = bson.M{}
		if keepID {
			if v, ok := doc[idField]; ok {
				out[idField] = copyValue(v)
			}
		}
		for _, path := range includes {
			if v, ok := objectpath.Get(doc, path); ok {
				objectpath.Set(out, path, copyValue(v))
			}
		}
		for path := range slices {
			if v, ok := objectpath.Get(doc, path); ok {
				objectpath.Set(out, path, copyValue(v))
			}
		}
	} else {
		out = Copy(doc)
		if !keepID {
			delete(out, idField)
		}
		for _, path := range excludes {
			objectpath.Delete(out, path)
		}
	}

	for path, spec := range slices {
		v, ok := objectpath.Get(out, path)
		if !ok {
			continue
		}
		arr, ok := asArray(v)
		if !ok {
			continue
		}
		sliced, err := slice(arr, spec)
		if err != nil {
			return nil, query.NewFieldError(path, err)
		}
		objectpath.Set(out, path, sliced)
	}
	return out, nil
}

// slice implements {$slice: n} and {$slice: [skip, limit]}.
func slice(arr []interface{}, spec interface{}) (bson.A, error) {
	var skip, limit int
	if n, ok := number(spec); ok {
		if n >= 0 {
			skip, limit = 0, int(n)
		} else {
			skip, limit = len(arr)+int(n), -int(n)
		}
	} else if pair, ok := asArray(spec); ok && len(pair) == 2 {
		s, ok1 := number(pair[0])
		l, ok2 := number(pair[1])
		if !ok1 || !ok2 || l <= 0 {
			return nil, fmt.Errorf("%w: invalid $slice", query.ErrInvalidQuery)
		}
		skip, limit = int(s), int(l)
		if skip < 0 {
			skip = len(arr) + skip
		}
	} else {
		return nil, fmt.Errorf("%w: invalid $slice", query.ErrInvalidQuery)
	}

	if skip < 0 {
		skip = 0
	}
	if skip > len(arr) {
		skip = len(arr)
	}
	end := skip + limit
	if end > len(arr) {
		end = len(arr)
	}
	return bson.A(append([]interface{}{}, arr[skip:end]...)), nil
}

// Copy deep-copies a document so callers may mutate results freely.
func Copy(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	return copyValue(doc).(bson.M)
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}
