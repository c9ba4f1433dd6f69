package query

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FindOptions are the options of a multi-document read.
type FindOptions struct {
	Sort       Sort
	Limit      int64 // 0 means no limit
	Projection bson.M
	Collation  *Collation
}

// FindOneOptions are the options of a single-document read.
type FindOneOptions struct {
	Sort       Sort
	Projection bson.M
	Collation  *Collation
}

var objectIDPattern = regexp.MustCompile(`^[a-f0-9]{24}$`)

// CoerceObjectID converts a 24 character hex string into an ObjectID.
// ObjectIDs are returned as-is; anything else is an ErrInvalidQuery field error.
func CoerceObjectID(id interface{}) (primitive.ObjectID, error) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v, nil
	case string:
		if objectIDPattern.MatchString(v) {
			return primitive.ObjectIDFromHex(v)
		}
	}
	return primitive.NilObjectID, NewFieldError("id", fmt.Errorf("%w: unable to coerce '%v' into an object ID", ErrInvalidQuery, id))
}
