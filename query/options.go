package query

import (
	"slices"
	"strings"
)

const (
	// NoLimit requests an unbounded result set (legacy, non-cursor API only)
	NoLimit = -1
	// MaxPageSize is the largest page a request may ask for
	MaxPageSize = 100
	// DefaultPageSize is used when a request does not specify a limit
	DefaultPageSize = 10
	// DefaultIDFieldName is the primary key of documents in the store
	DefaultIDFieldName = "_id"
	// DefaultLocale is the collation locale used when none is supplied
	DefaultLocale = "en_US"
)

// Options contains configuration shared by the paginators and the loader
type Options struct {
	// MaxPageSize is the maximum allowed page size
	MaxPageSize int

	// DefaultPageSize is the default page size when not specified
	DefaultPageSize int

	// IDFieldName is the name of the primary key field. It is the cursor
	// payload and the tie-break of every sort. Defaults to "_id".
	IDFieldName string

	// IDAliases are sort field names that resolve to IDFieldName
	IDAliases []string

	// CreatedField is a field that signifies the document's creation date.
	// Sorting by it resolves to IDFieldName, whose values grow with creation time.
	CreatedField string

	// DefaultLocale is the collation locale merged under caller-supplied collations
	DefaultLocale string

	// AllowedFields is a whitelist of fields that can be sorted on
	// Empty list means all fields are allowed (no restriction)
	AllowedFields []string
}

// DefaultOptions returns default options
func DefaultOptions() *Options {
	return &Options{
		MaxPageSize:     MaxPageSize,
		DefaultPageSize: DefaultPageSize,
		IDFieldName:     DefaultIDFieldName,
		IDAliases:       []string{"id"},
		DefaultLocale:   DefaultLocale,
	}
}

// ValidatePageSize validates and adjusts the page size based on options.
// NoLimit is passed through unchanged.
func (o *Options) ValidatePageSize(size int) int {
	if size == NoLimit {
		return NoLimit
	}
	if size <= 0 {
		if o.DefaultPageSize <= 0 {
			return DefaultPageSize
		}
		return o.DefaultPageSize
	}
	// Only cap if MaxPageSize is set (> 0)
	if o.MaxPageSize > 0 && size > o.MaxPageSize {
		return o.MaxPageSize
	}
	return size
}

// IsFieldAllowed checks if a field is in the allowed fields list
// Returns true if AllowedFields is empty (no restriction) or field is in the list
func (o *Options) IsFieldAllowed(field string) bool {
	if len(o.AllowedFields) == 0 {
		return true
	}
	return slices.Contains(o.AllowedFields, field)
}

// GetIDFieldName returns the ID field name to use, with fallback defaults
func (o *Options) GetIDFieldName() string {
	if o == nil || o.IDFieldName == "" {
		return DefaultIDFieldName
	}
	return o.IDFieldName
}

// ResolvesToID reports whether a sort on field is a sort on the primary key.
// A literal "_id" only resolves when it is the primary key.
func (o *Options) ResolvesToID(field string) bool {
	field = strings.TrimSpace(field)
	if field == "" || field == o.GetIDFieldName() {
		return true
	}
	if o == nil {
		return field == "id"
	}
	if o.CreatedField != "" && field == o.CreatedField {
		return true
	}
	return slices.Contains(o.IDAliases, field)
}

// Locale returns the default collation locale.
func (o *Options) Locale() string {
	if o == nil || o.DefaultLocale == "" {
		return DefaultLocale
	}
	return o.DefaultLocale
}
