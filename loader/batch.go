package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/hadi77ir/go-docpager/internal/objectpath"
	"github.com/hadi77ir/go-docpager/internal/telemetry"
	"github.com/hadi77ir/go-docpager/query"
)

// entry is the merged lookup of every key sharing a foreign field and value.
type entry struct {
	foreignField string
	value        interface{}
	all          bool
	fields       []string
	group        int
}

type lookupKey struct {
	foreignField string
	value        string
}

// reduceKeys merges keys addressing the same document. If any key asks for all
// fields the document is fetched whole; otherwise the union of fields is used.
// The returned index maps every key to its entry.
func (l *Loader) reduceKeys(keys []Key) ([]*entry, []int) {
	var (
		entries []*entry
		byKey   = make(map[lookupKey]int)
		index   = make([]int, len(keys))
	)
	for i, k := range keys {
		lk := lookupKey{foreignField: k.ForeignField, value: l.valueKey(k.Value)}
		pos, ok := byKey[lk]
		if !ok {
			pos = len(entries)
			byKey[lk] = pos
			entries = append(entries, &entry{foreignField: k.ForeignField, value: k.Value})
		}
		e := entries[pos]
		if len(k.Fields) == 0 {
			e.all = true
		} else if !e.all {
			e.fields = append(e.fields, k.Fields...)
		}
		index[i] = pos
	}
	for _, e := range entries {
		if e.all {
			e.fields = nil
			continue
		}
		e.fields = canonical(e.fields)
	}
	return entries, index
}

// createGroups groups entries by foreign field and canonical field list.
func (l *Loader) createGroups(entries []*entry) []Group {
	var (
		groups []Group
		byKey  = make(map[string]int)
	)
	for _, e := range entries {
		gk := groupKey(e.foreignField, e.fields)
		pos, ok := byKey[gk]
		if !ok {
			pos = len(groups)
			byKey[gk] = pos
			groups = append(groups, Group{ForeignField: e.foreignField, Fields: e.fields})
		}
		value := e.value
		if l.coerce != nil {
			value = l.coerce(value)
		}
		groups[pos].Values = append(groups[pos].Values, value)
		e.group = pos
	}
	return groups
}

type groupResult struct {
	docs []bson.M
	err  error
}

// execute resolves one batch. A failed group fails only its own keys.
func (l *Loader) execute(ctx context.Context, keys []Key) ([]bson.M, []error) {
	entries, index := l.reduceKeys(keys)
	groups := l.createGroups(entries)

	telemetry.LoaderBatchSize.WithLabelValues(l.name).Observe(float64(len(keys)))
	telemetry.LoaderGroupCount.WithLabelValues(l.name).Observe(float64(len(groups)))

	if l.batchFn != nil {
		return l.customBatch(ctx, keys, groups)
	}

	results := iter.Map(groups, func(g *Group) groupResult {
		return l.query(ctx, *g)
	})

	found := make(map[lookupKey]bson.M)
	for gi, res := range results {
		if res.err != nil {
			continue
		}
		ff := groups[gi].ForeignField
		for _, doc := range res.docs {
			// an array-valued foreign field matches every element
			v, _ := objectpath.Get(doc, ff)
			if arr, ok := v.(bson.A); ok {
				for _, el := range arr {
					found[lookupKey{foreignField: ff, value: valueIdentity(el)}] = doc
				}
				continue
			}
			found[lookupKey{foreignField: ff, value: valueIdentity(v)}] = doc
		}
	}

	docs := make([]bson.M, len(keys))
	errs := make([]error, len(keys))
	for i, k := range keys {
		e := entries[index[i]]
		if err := results[e.group].err; err != nil {
			errs[i] = err
			continue
		}
		doc, ok := found[lookupKey{foreignField: k.ForeignField, value: l.valueKey(k.Value)}]
		if !ok {
			if k.Strict {
				errs[i] = query.NewNotFoundError(l.name, k.ForeignField+":"+displayValue(k.Value))
				continue
			}
			telemetry.LoaderMisses.WithLabelValues(l.name).Inc()
			l.warnMiss(ctx, k)
		}
		docs[i] = doc
	}
	return docs, errs
}

func (l *Loader) query(ctx context.Context, g Group) groupResult {
	filter := query.And(
		query.Compare(g.ForeignField, query.OpIn, query.ArrayValue(g.Values)),
		query.Raw(l.criteria),
	)
	l.logger.DebugWithContext(ctx, "loader query",
		zap.String("loader", l.name),
		zap.String("foreign_field", g.ForeignField),
		zap.Strings("fields", g.Fields),
		zap.Int("values", len(g.Values)),
	)

	start := time.Now()
	docs, err := l.store.Find(ctx, filter, &query.FindOptions{Projection: g.Projection()})
	if err != nil {
		l.logger.ErrorWithContext(ctx, "loader query failed",
			zap.String("loader", l.name),
			zap.Error(err),
			zap.Duration("took", time.Since(start)),
		)
		return groupResult{err: err}
	}
	return groupResult{docs: docs}
}

func (l *Loader) customBatch(ctx context.Context, keys []Key, groups []Group) ([]bson.M, []error) {
	docs, errs := l.batchFn(ctx, keys, groups)
	if len(docs) != len(keys) || (errs != nil && len(errs) != len(keys)) {
		err := query.NewExecutionError("batch function",
			fmt.Errorf("returned %d documents for %d keys", len(docs), len(keys)))
		docs = make([]bson.M, len(keys))
		errs = make([]error, len(keys))
		for i := range errs {
			errs[i] = err
		}
		return docs, errs
	}
	if errs == nil {
		errs = make([]error, len(keys))
	}
	return docs, errs
}
