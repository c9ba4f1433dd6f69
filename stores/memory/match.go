package memory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/query"
)

// Matcher evaluates predicate trees against documents.
type Matcher struct {
	cmp *Comparer

	mu      sync.Mutex
	regexps map[string]*regexp.Regexp
}

// NewMatcher returns a Matcher comparing strings under collation, which may be
// nil.
func NewMatcher(collation *query.Collation) *Matcher {
	return &Matcher{
		cmp:     NewComparer(collation),
		regexps: make(map[string]*regexp.Regexp),
	}
}

// Matches reports whether doc satisfies node. A nil node matches everything.
func (m *Matcher) Matches(node query.Node, doc bson.M) (bool, error) {
	if node == nil {
		return true, nil
	}
	return m.evaluate(node, doc)
}

// evaluate evaluates a filter node against a document
func (m *Matcher) evaluate(node query.Node, doc bson.M) (bool, error) {
	switch n := node.(type) {
	case *query.ComparisonNode:
		return m.evaluateComparison(n, doc)
	case *query.BinaryOpNode:
		left, err := m.evaluate(n.Left, doc)
		if err != nil {
			return false, err
		}
		// short-circuit
		if n.Operator == query.BinaryOpAnd && !left {
			return false, nil
		}
		if n.Operator == query.BinaryOpOr && left {
			return true, nil
		}
		return m.evaluate(n.Right, doc)
	case *query.RawNode:
		parsed, err := ParseFilter(n.Filter)
		if err != nil {
			return false, err
		}
		return m.Matches(parsed, doc)
	default:
		return false, query.ErrInvalidQuery
	}
}

// evaluateComparison evaluates a comparison against a document
func (m *Matcher) evaluateComparison(n *query.ComparisonNode, doc bson.M) (bool, error) {
	if n.Field == "" {
		return false, query.InvalidFieldNameError(n.Field)
	}
	candidates, found := lookup(doc, n.Field)

	switch n.Operator {
	case query.OpEqual:
		return m.anyEqual(candidates, found, n.Value), nil
	case query.OpNotEqual:
		return !m.anyEqual(candidates, found, n.Value), nil
	case query.OpGreaterThan, query.OpGreaterThanOrEqual, query.OpLessThan, query.OpLessThanOrEqual:
		return m.anyInRange(candidates, n.Operator, n.Value), nil
	case query.OpIn:
		return m.evaluateIn(candidates, found, n.Value)
	case query.OpNotIn:
		in, err := m.evaluateIn(candidates, found, n.Value)
		return !in, err
	case query.OpExists:
		want, ok := n.Value.(bool)
		if !ok {
			want = truthy(n.Value)
		}
		return found == want, nil
	case query.OpRegex:
		return m.evaluateRegex(n.Field, candidates, n.Value)
	default:
		return false, query.NewFieldError(n.Field, query.ErrInvalidQuery)
	}
}

// anyEqual follows the store's equality rule: a missing field equals null, and
// an array field matches when the whole array or any of its elements is equal.
func (m *Matcher) anyEqual(candidates []interface{}, found bool, value interface{}) bool {
	if !found {
		return value == nil
	}
	for _, c := range candidates {
		if m.cmp.Equal(c, value) {
			return true
		}
		for _, el := range array(c) {
			if m.cmp.Equal(el, value) {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) anyInRange(candidates []interface{}, op query.ComparisonOperator, value interface{}) bool {
	test := func(v interface{}) bool {
		if !Comparable(v, value) {
			return false
		}
		d := m.cmp.Compare(v, value)
		switch op {
		case query.OpGreaterThan:
			return d > 0
		case query.OpGreaterThanOrEqual:
			return d >= 0
		case query.OpLessThan:
			return d < 0
		default:
			return d <= 0
		}
	}
	for _, c := range candidates {
		if test(c) {
			return true
		}
		for _, el := range array(c) {
			if test(el) {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) evaluateIn(candidates []interface{}, found bool, value interface{}) (bool, error) {
	values, ok := asArray(value)
	if !ok {
		return false, query.ErrInvalidQuery
	}
	for _, v := range values {
		if m.anyEqual(candidates, found, v) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Matcher) evaluateRegex(field string, candidates []interface{}, value interface{}) (bool, error) {
	var pattern, options string
	switch v := value.(type) {
	case query.RegexValue:
		pattern, options = v.Pattern, v.Options
	case string:
		pattern = v
	default:
		return false, query.NewFieldError(field, query.ErrInvalidQuery)
	}
	re, err := m.compile(pattern, options)
	if err != nil {
		return false, query.NewFieldError(field, fmt.Errorf("%w: %v", query.ErrInvalidQuery, err))
	}

	test := func(v interface{}) bool {
		s, ok := v.(string)
		return ok && re.MatchString(s)
	}
	for _, c := range candidates {
		if test(c) {
			return true, nil
		}
		for _, el := range array(c) {
			if test(el) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *Matcher) compile(pattern, options string) (*regexp.Regexp, error) {
	var flags strings.Builder
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags.WriteRune(o)
		}
	}
	expr := pattern
	if flags.Len() > 0 {
		expr = "(?" + flags.String() + ")" + pattern
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if re, ok := m.regexps[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	m.regexps[expr] = re
	return re, nil
}

// lookup resolves a dotted path to every value it reaches. Non-numeric
// segments applied to an array fan out over the array's documents, the way the
// store resolves "tags.label" against an array of tag documents.
func lookup(doc interface{}, path string) ([]interface{}, bool) {
	cur := []interface{}{doc}
	for _, seg := range strings.Split(path, ".") {
		var next []interface{}
		for _, c := range cur {
			next = append(next, step(c, seg)...)
		}
		if len(next) == 0 {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur interface{}, seg string) []interface{} {
	if arr, ok := asArray(cur); ok {
		if i, err := strconv.Atoi(seg); err == nil {
			if i >= 0 && i < len(arr) {
				return []interface{}{arr[i]}
			}
			return nil
		}
		var out []interface{}
		for _, el := range arr {
			if _, ok := asDoc(el); ok {
				out = append(out, step(el, seg)...)
			}
		}
		return out
	}
	if d, ok := cur.(bson.D); ok {
		for _, e := range d {
			if e.Key == seg {
				return []interface{}{e.Value}
			}
		}
		return nil
	}
	if doc, ok := asDoc(cur); ok {
		if v, ok := doc[seg]; ok {
			return []interface{}{v}
		}
	}
	return nil
}
