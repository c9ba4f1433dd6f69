package memory

import (
	"bytes"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hadi77ir/go-docpager/query"
)

// Canonical type ranks, following the document store's cross-type ordering.
const (
	rankMinKey = iota
	rankNull
	rankNumber
	rankString
	rankObject
	rankArray
	rankBinary
	rankObjectID
	rankBool
	rankDate
	rankTimestamp
	rankRegex
	rankMaxKey
)

// Comparer orders values the way the document store does. A nil collator
// compares strings by code point.
type Comparer struct {
	collator *collate.Collator
}

// NewComparer returns a Comparer honoring collation, which may be nil.
func NewComparer(c *query.Collation) *Comparer {
	if c == nil {
		return &Comparer{}
	}
	return &Comparer{collator: newCollator(*c)}
}

func newCollator(c query.Collation) *collate.Collator {
	tag, err := language.Parse(strings.ReplaceAll(c.Locale, "_", "-"))
	if err != nil {
		tag = language.AmericanEnglish
	}
	var opts []collate.Option
	switch c.Strength {
	case 1:
		opts = append(opts, collate.IgnoreCase, collate.IgnoreDiacritics)
	case 2:
		opts = append(opts, collate.IgnoreCase)
	}
	if c.NumericOrdering {
		opts = append(opts, collate.Numeric)
	}
	return collate.New(tag, opts...)
}

func rank(v interface{}) int {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return rankNull
	case primitive.MinKey:
		return rankMinKey
	case primitive.MaxKey:
		return rankMaxKey
	case string, primitive.Symbol:
		return rankString
	case bson.M, map[string]interface{}, bson.D:
		return rankObject
	case bson.A, []interface{}:
		return rankArray
	case primitive.Binary, []byte:
		return rankBinary
	case primitive.ObjectID:
		return rankObjectID
	case bool:
		return rankBool
	case time.Time, primitive.DateTime:
		return rankDate
	case primitive.Timestamp:
		return rankTimestamp
	case primitive.Regex:
		return rankRegex
	}
	if _, ok := number(v); ok {
		return rankNumber
	}
	return rankObject
}

// Comparable reports whether two values fall into the same type bracket, the
// precondition for range comparisons to match.
func Comparable(a, b interface{}) bool {
	return rank(a) == rank(b)
}

// Compare returns -1, 0 or 1.
func (c *Comparer) Compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNumber:
		fa, _ := number(a)
		fb, _ := number(b)
		return cmpFloat(fa, fb)
	case rankString:
		sa, sb := str(a), str(b)
		if c != nil && c.collator != nil {
			return c.collator.CompareString(sa, sb)
		}
		return strings.Compare(sa, sb)
	case rankObject:
		return c.compareDocs(entries(a), entries(b))
	case rankArray:
		return c.compareArrays(array(a), array(b))
	case rankBinary:
		return bytes.Compare(binary(a), binary(b))
	case rankObjectID:
		oa, ob := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(oa[:], ob[:])
	case rankBool:
		return cmpInt(boolInt(a.(bool)), boolInt(b.(bool)))
	case rankDate:
		return cmpInt64(millis(a), millis(b))
	case rankTimestamp:
		ta, tb := a.(primitive.Timestamp), b.(primitive.Timestamp)
		return primitive.CompareTimestamp(ta, tb)
	case rankRegex:
		ra, rb := a.(primitive.Regex), b.(primitive.Regex)
		if d := strings.Compare(ra.Pattern, rb.Pattern); d != 0 {
			return d
		}
		return strings.Compare(ra.Options, rb.Options)
	default:
		return 0
	}
}

// Equal reports whether two values are equal under Compare.
func (c *Comparer) Equal(a, b interface{}) bool {
	return rank(a) == rank(b) && c.Compare(a, b) == 0
}

func (c *Comparer) compareDocs(a, b bson.D) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if d := strings.Compare(a[i].Key, b[i].Key); d != 0 {
			return d
		}
		if d := c.Compare(a[i].Value, b[i].Value); d != 0 {
			return d
		}
	}
	return cmpInt(len(a), len(b))
}

func (c *Comparer) compareArrays(a, b []interface{}) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if d := c.Compare(a[i], b[i]); d != 0 {
			return d
		}
	}
	return cmpInt(len(a), len(b))
}

// number converts any numeric kind (including Decimal128) to float64.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	case bool, string:
		return 0, false
	}
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(val.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(val.Uint()), true
	case reflect.Float32, reflect.Float64:
		return val.Float(), true
	default:
		return 0, false
	}
}

func str(v interface{}) string {
	if s, ok := v.(primitive.Symbol); ok {
		return string(s)
	}
	return v.(string)
}

// entries renders a document as key-ordered entries. Maps are ordered by key
// because they carry no insertion order.
func entries(v interface{}) bson.D {
	switch d := v.(type) {
	case bson.D:
		return d
	case bson.M:
		return mapEntries(d)
	case map[string]interface{}:
		return mapEntries(d)
	default:
		return nil
	}
}

func mapEntries(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}

func array(v interface{}) []interface{} {
	switch a := v.(type) {
	case bson.A:
		return a
	case []interface{}:
		return a
	default:
		return nil
	}
}

func binary(v interface{}) []byte {
	switch b := v.(type) {
	case primitive.Binary:
		return b.Data
	case []byte:
		return b
	default:
		return nil
	}
}

func millis(v interface{}) int64 {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli()
	case primitive.DateTime:
		return int64(t)
	default:
		return 0
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	return cmpInt64(int64(a), int64(b))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return -1
	case math.IsNaN(b):
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
