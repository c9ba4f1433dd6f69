package pagination

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/cursor"
	"github.com/hadi77ir/go-docpager/query"
)

// Direction is the side of the cursor a page is read from.
type Direction string

const (
	// DirectionAfter reads the page following the cursor
	DirectionAfter Direction = "AFTER"
	// DirectionBefore reads the page preceding the cursor
	DirectionBefore Direction = "BEFORE"
)

// ParseDirection normalizes a direction name. The empty string is AFTER.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(DirectionAfter):
		return DirectionAfter, nil
	case string(DirectionBefore):
		return DirectionBefore, nil
	default:
		return "", query.NewValidationError("direction", fmt.Sprintf("must be one of [AFTER BEFORE], got '%s'", s))
	}
}

// Sign returns +1 for AFTER and -1 for BEFORE.
func (d Direction) Sign() int {
	if d == DirectionBefore {
		return -1
	}
	return 1
}

// SortParams is a requested sort. Order accepts signed integers, "asc",
// "desc" and numeric-like strings.
type SortParams struct {
	Field string      `json:"field,omitempty" validate:"omitempty,fieldpath"`
	Order interface{} `json:"order,omitempty"`
}

// Request is one live-query page request.
type Request struct {
	// Query is the caller's native filter. It is never rewritten.
	Query bson.M     `json:"query,omitempty"`
	Sort  SortParams `json:"sort"`
	// Limit is the page size: 0 selects the default, values above the maximum
	// are capped and query.NoLimit disables paging.
	Limit     int       `json:"limit,omitempty" validate:"gte=-1"`
	Cursor    string    `json:"cursor,omitempty"`
	Direction Direction `json:"direction,omitempty" validate:"omitempty,oneof=AFTER BEFORE"`
	// Projection restricts the returned fields. The id and the sort field's
	// top-level segment are always added.
	Projection bson.M `json:"projection,omitempty"`
	// ExcludeProjection removes fields from Projection after normalization.
	ExcludeProjection []string `json:"excludeProjection,omitempty" validate:"dive,fieldpath"`
	// Collate applies the sort collation to the query.
	Collate bool `json:"collate,omitempty"`
	// Collation is merged over the default locale. A non-nil collation
	// implies Collate.
	Collation *query.Collation `json:"collation,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("fieldpath", isFieldPath); err != nil {
		panic(err)
	}
	return v
}

// isFieldPath accepts dotted document paths whose segments are non-empty and
// do not start with an operator prefix.
func isFieldPath(fl validator.FieldLevel) bool {
	return validFieldPath(fl.Field().String())
}

func validFieldPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || strings.HasPrefix(seg, "$") || strings.ContainsAny(seg, " \x00") {
			return false
		}
	}
	return true
}

// validateStruct runs the struct rules and converts the first failure into a
// query.ValidationError.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return query.NewValidationError("", err.Error())
	}
	fe := verrs[0]
	return query.NewValidationError(fieldName(fe), reason(fe))
}

func fieldName(fe validator.FieldError) string {
	// drop the struct name
	_, ns, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "fieldpath":
		return "is not a valid field path"
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

// checkCursor rejects a malformed cursor before any I/O.
func checkCursor(c string) error {
	c = strings.TrimSpace(c)
	if c == "" {
		return nil
	}
	_, err := cursor.Decode(c)
	return err
}
