// Package loader coalesces point lookups issued within a short dispatch window
// into grouped store queries and caches the results for the lifetime of the
// Loader. A Loader is meant to be owned by one request: its cache is never
// invalidated or evicted.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/hadi77ir/go-docpager/internal/cursor"
	"github.com/hadi77ir/go-docpager/internal/logger"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
)

// DefaultWait is the default dispatch window.
const DefaultWait = time.Millisecond

// ErrNoStore is returned by New when neither a store nor a batch function is given.
var ErrNoStore = errors.New("loader: a store or a batch function is required")

// Params describes one lookup.
type Params struct {
	// ForeignField is the field matched against Value. Defaults to the id field.
	ForeignField string
	Value        interface{}
	// Projection restricts the returned fields. Nil selects every field.
	Projection bson.M
	// Strict turns a miss into a NotFoundError instead of a nil document.
	Strict bool
}

// ManyParams describes several lookups sharing a foreign field and projection.
type ManyParams struct {
	ForeignField string
	Values       []interface{}
	Projection   bson.M
	Strict       bool
}

// Key is the canonical batching and cache unit.
type Key struct {
	ForeignField string
	Value        interface{}
	// Fields is the canonical projection; empty means all fields.
	Fields []string
	Strict bool
}

// Group is one grouped store query: every value sharing a foreign field and
// canonical field list.
type Group struct {
	ForeignField string
	Fields       []string
	Values       []interface{}
}

// Projection returns the inclusion projection of the group, nil for all fields.
func (g Group) Projection() bson.M {
	return projection(g.Fields)
}

// BatchFunc replaces the default store-backed batch. It must return one
// document and one error per key, in key order.
type BatchFunc func(ctx context.Context, keys []Key, groups []Group) ([]bson.M, []error)

// Option configures a Loader.
type Option func(*Loader)

// WithCriteria ANDs a global filter into every group query.
func WithCriteria(criteria bson.M) Option {
	return func(l *Loader) {
		l.criteria = criteria
	}
}

// WithCoercion converts lookup values before they are queried and matched,
// e.g. hex strings into ObjectIDs.
func WithCoercion(fn func(interface{}) interface{}) Option {
	return func(l *Loader) {
		l.coerce = fn
	}
}

// WithBatchFunc replaces the store query with a custom batch function.
func WithBatchFunc(fn BatchFunc) Option {
	return func(l *Loader) {
		l.batchFn = fn
	}
}

// WithWait sets the dispatch window.
func WithWait(d time.Duration) Option {
	return func(l *Loader) {
		l.wait = d
	}
}

// WithMaxBatch caps the number of keys in one batch. Zero means unbounded.
func WithMaxBatch(n int) Option {
	return func(l *Loader) {
		l.maxBatch = n
	}
}

// WithLogger sets the logger used for batch and miss reporting.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		l.logger = log
	}
}

// WithIDField sets the primary key used as default foreign field.
func WithIDField(field string) Option {
	return func(l *Loader) {
		l.idField = field
	}
}

// Loader batches and caches lookups against one store.
type Loader struct {
	name     string
	store    store.Store
	idField  string
	criteria bson.M
	coerce   func(interface{}) interface{}
	batchFn  BatchFunc
	wait     time.Duration
	maxBatch int
	logger   logger.Logger
	keyMode  cbor.EncMode

	mu      sync.Mutex
	cache   map[string]*result
	pending *batch
}

type result struct {
	done chan struct{}
	doc  bson.M
	err  error
}

type batch struct {
	ctx     context.Context
	keys    []Key
	results []*result
	timer   *time.Timer
}

// New creates a Loader named name (used in not-found messages and metrics)
// over s. s may be nil when a batch function is supplied.
func New(name string, s store.Store, opts ...Option) (*Loader, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	l := &Loader{
		name:    name,
		store:   s,
		idField: query.DefaultIDFieldName,
		wait:    DefaultWait,
		logger:  logger.NewNoopLogger(),
		keyMode: mode,
		cache:   make(map[string]*result),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil && l.batchFn == nil {
		return nil, ErrNoStore
	}
	if l.name == "" && l.store != nil {
		l.name = l.store.Name()
	}
	return l, nil
}

// Name returns the loader name
func (l *Loader) Name() string {
	return l.name
}

// Load resolves one lookup. A non-strict miss returns a nil document and no
// error.
func (l *Loader) Load(ctx context.Context, p Params) (bson.M, error) {
	key := l.key(p.ForeignField, p.Value, p.Projection, p.Strict)
	res, err := l.enqueue(ctx, []Key{key})
	if err != nil {
		return nil, err
	}
	return l.await(ctx, res[0])
}

// LoadMany resolves several lookups in one dispatch window. Results and errors
// are positional: errs[i] is set when docs[i] could not be loaded. errs is nil
// when every lookup succeeded.
func (l *Loader) LoadMany(ctx context.Context, p ManyParams) ([]bson.M, []error) {
	keys := make([]Key, len(p.Values))
	for i, v := range p.Values {
		keys[i] = l.key(p.ForeignField, v, p.Projection, p.Strict)
	}

	docs := make([]bson.M, len(keys))
	res, err := l.enqueue(ctx, keys)
	if err != nil {
		errs := make([]error, len(keys))
		for i := range errs {
			errs[i] = err
		}
		return docs, errs
	}

	var errs []error
	for i, r := range res {
		doc, err := l.await(ctx, r)
		if err != nil {
			if errs == nil {
				errs = make([]error, len(keys))
			}
			errs[i] = err
			continue
		}
		docs[i] = doc
	}
	return docs, errs
}

func (l *Loader) key(foreignField string, value interface{}, proj bson.M, strict bool) Key {
	if foreignField == "" {
		foreignField = l.idField
	}
	return Key{
		ForeignField: foreignField,
		Value:        value,
		Fields:       Prepare(l.idField, foreignField, proj),
		Strict:       strict,
	}
}

// cacheKey is the deterministic CBOR encoding of a key.
func (l *Loader) cacheKey(k Key) (string, error) {
	b, err := l.keyMode.Marshal(struct {
		ForeignField string   `cbor:"1,keyasint"`
		Value        []byte   `cbor:"2,keyasint"`
		Fields       []string `cbor:"3,keyasint"`
		Strict       bool     `cbor:"4,keyasint"`
	}{k.ForeignField, []byte(l.valueKey(k.Value)), k.Fields, k.Strict})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// valueKey is the identity of a lookup value after coercion.
func (l *Loader) valueKey(v interface{}) string {
	if l.coerce != nil {
		v = l.coerce(v)
	}
	return valueIdentity(v)
}

// valueIdentity is the BSON encoding of {v: value}, so values of different
// BSON types never share an identity: 1 and "1" differ, and so do an ObjectID
// and its hex string. Numbers are folded first because the store matches them
// across widths. Maps are ordered by key.
func valueIdentity(v interface{}) string {
	b, err := bson.Marshal(bson.D{{Key: "v", Value: foldNumber(cursor.Canonical(v))}})
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

// foldNumber maps every integral number to int64 and every other number to
// float64.
func foldNumber(v interface{}) interface{} {
	var f float64
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint:
		if uint64(n) > math.MaxInt64 {
			return float64(n)
		}
		return int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return float64(n)
		}
		return int64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	default:
		return v
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// displayValue renders a lookup value for messages.
func displayValue(v interface{}) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(v)
}

// enqueue returns the pending or cached result of every key, adding the
// uncached ones to the current batch.
func (l *Loader) enqueue(ctx context.Context, keys []Key) ([]*result, error) {
	out := make([]*result, len(keys))

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, k := range keys {
		ck, err := l.cacheKey(k)
		if err != nil {
			return nil, query.NewExecutionError("cache key", err)
		}
		if r, ok := l.cache[ck]; ok {
			out[i] = r
			continue
		}

		r := &result{done: make(chan struct{})}
		l.cache[ck] = r
		out[i] = r

		if l.pending == nil {
			b := &batch{ctx: context.WithoutCancel(ctx)}
			b.timer = time.AfterFunc(l.wait, func() { l.flush(b) })
			l.pending = b
		}
		l.pending.keys = append(l.pending.keys, k)
		l.pending.results = append(l.pending.results, r)

		if l.maxBatch > 0 && len(l.pending.keys) >= l.maxBatch {
			b := l.pending
			l.pending = nil
			if b.timer.Stop() {
				go l.dispatch(b)
			}
		}
	}
	return out, nil
}

// flush dispatches b when its window closes, unless it was already detached.
func (l *Loader) flush(b *batch) {
	l.mu.Lock()
	if l.pending == b {
		l.pending = nil
	}
	l.mu.Unlock()
	l.dispatch(b)
}

func (l *Loader) await(ctx context.Context, r *result) (bson.M, error) {
	select {
	case <-r.done:
		return r.doc, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) dispatch(b *batch) {
	docs, errs := l.execute(b.ctx, b.keys)
	for i, r := range b.results {
		r.doc, r.err = docs[i], errs[i]
		close(r.done)
	}
}

// warnMiss reports a non-strict miss.
func (l *Loader) warnMiss(ctx context.Context, k Key) {
	l.logger.WarnWithContext(ctx, "loader miss",
		zap.String("loader", l.name),
		zap.String("key", k.ForeignField+":"+displayValue(k.Value)),
	)
}
