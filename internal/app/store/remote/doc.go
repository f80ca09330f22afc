package remote

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ToDoc marshals v into an ordered document with _id set to id. Fields named
// in drop are removed so the store can fill them in.
func ToDoc(v any, id string, drop ...string) (bson.D, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	out := make(bson.D, 0, len(d)+1)
	out = append(out, bson.E{Key: "_id", Value: id})
	for _, e := range d {
		if e.Key == "_id" || contains(drop, e.Key) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Matches reports whether every field in filter equals the same top-level
// field of doc.
func Matches(doc bson.Raw, filter bson.M) bool {
	for k, want := range filter {
		got, err := doc.LookupErr(k)
		if err != nil {
			return false
		}
		t, data, err := bson.MarshalValue(want)
		if err != nil {
			return false
		}
		if got.Type != t || string(got.Value) != string(data) {
			return false
		}
	}
	return true
}

// IDOf returns the string _id of doc, or "" if it has none.
func IDOf(doc bson.Raw) string {
	v, err := doc.LookupErr("_id")
	if err != nil {
		return ""
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return v.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
