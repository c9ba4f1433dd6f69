package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/query"
)

// payloadKey is the single key of the BSON document wrapping the identifier
const payloadKey = "v"

var encoding = base64.RawURLEncoding

// ErrEmptyCursor is returned when decoding an empty string
var ErrEmptyCursor = errors.New("empty cursor")

// Encode serializes an identifier to BSON and encodes it as base64url.
// Compound identifiers should be given as bson.D so field order survives;
// maps carry no order and are encoded with their keys sorted.
func Encode(id interface{}) (string, error) {
	data, err := bson.Marshal(bson.D{{Key: payloadKey, Value: Canonical(id)}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor id: %w", err)
	}
	return encoding.EncodeToString(data), nil
}

// MustEncode is like Encode but panics on an unserializable identifier.
func MustEncode(id interface{}) string {
	s, err := Encode(id)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode reverses Encode. Malformed input yields a *query.DecodeError.
func Decode(s string) (interface{}, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, query.NewDecodeError(ErrEmptyCursor)
	}

	data, err := encoding.DecodeString(s)
	if err != nil {
		return nil, query.NewDecodeError(fmt.Errorf("failed to decode cursor: %w", err))
	}

	if err := bson.Raw(data).Validate(); err != nil {
		return nil, query.NewDecodeError(fmt.Errorf("failed to unmarshal cursor data: %w", err))
	}

	var doc bson.D
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, query.NewDecodeError(fmt.Errorf("failed to unmarshal cursor data: %w", err))
	}
	if len(doc) != 1 || doc[0].Key != payloadKey {
		return nil, query.NewDecodeError(errors.New("unexpected cursor payload"))
	}

	return doc[0].Value, nil
}

// Canonical returns id with every map, at any depth, replaced by a bson.D
// ordered by key. Other values are returned as-is.
func Canonical(id interface{}) interface{} {
	switch v := id.(type) {
	case bson.M:
		return sortedDoc(v)
	case map[string]interface{}:
		return sortedDoc(v)
	case bson.D:
		out := make(bson.D, len(v))
		for i, e := range v {
			out[i] = bson.E{Key: e.Key, Value: Canonical(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(v))
		for i, el := range v {
			out[i] = Canonical(el)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(v))
		for i, el := range v {
			out[i] = Canonical(el)
		}
		return out
	default:
		return id
	}
}

func sortedDoc(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: Canonical(m[k])})
	}
	return out
}
