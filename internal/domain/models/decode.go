package models

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrInvalidRole   = errors.New("role must be \"standard\" or \"superadmin\"")
	ErrMissingSender = errors.New("message has no sender_id")
)

// DecodeError reports a stored document that does not match the expected
// shape for its collection.
type DecodeError struct {
	Collection string
	ID         string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s: %v", e.Collection, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type validator interface {
	validate() error
}

// Decode unmarshals raw into a T and runs any per-type validation. Failures
// are returned as *DecodeError.
func Decode[T any](collection, id string, raw bson.Raw) (T, error) {
	var v T
	if err := bson.Unmarshal(raw, &v); err != nil {
		return v, &DecodeError{Collection: collection, ID: id, Err: err}
	}
	if vv, ok := any(&v).(validator); ok {
		if err := vv.validate(); err != nil {
			return v, &DecodeError{Collection: collection, ID: id, Err: err}
		}
	}
	return v, nil
}

// Decoder returns a decode function bound to one collection, in the shape
// live mirrors expect.
func Decoder[T any](collection string) func(id string, raw bson.Raw) (T, error) {
	return func(id string, raw bson.Raw) (T, error) {
		return Decode[T](collection, id, raw)
	}
}
