package loader

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/objectpath"
)

// Prepare canonicalizes a projection into a sorted field list. Fields nested
// under another selected field are dropped, so {a: 1} and {a: 1, "a.b": 1}
// canonicalize identically. When any field is selected, idField and
// foreignField are added so results stay addressable and the cache key does
// not depend on whether the caller spelled them out. An empty result means
// "all fields".
func Prepare(idField, foreignField string, projection bson.M) []string {
	fields := make([]string, 0, len(projection)+2)
	for k, v := range projection {
		if isExclusion(v) {
			continue
		}
		fields = append(fields, k)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, idField, foreignField)
	return canonical(fields)
}

// canonical removes duplicates and descendants of other fields, then sorts.
func canonical(fields []string) []string {
	fields = lo.Uniq(fields)
	out := lo.Filter(fields, func(f string, _ int) bool {
		return !lo.SomeBy(fields, func(parent string) bool {
			return objectpath.IsDescendant(f, parent)
		})
	})
	sort.Strings(out)
	return out
}

// isExclusion reports whether a projection value removes its field.
func isExclusion(v interface{}) bool {
	switch n := v.(type) {
	case bool:
		return !n
	case int:
		return n == 0
	case int32:
		return n == 0
	case int64:
		return n == 0
	case float64:
		return n == 0
	}
	return false
}

// projection renders a canonical field list as an inclusion projection. A
// nil projection selects every field.
func projection(fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}
	return lo.SliceToMap(fields, func(f string) (string, interface{}) {
		return f, 1
	})
}

func groupKey(foreignField string, fields []string) string {
	return foreignField + "\x00" + strings.Join(fields, "|")
}
