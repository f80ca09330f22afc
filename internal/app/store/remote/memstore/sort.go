package memstore

import (
	"bytes"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func setField(d bson.D, key string, v any) bson.D {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = v
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: v})
}

// sortIDs orders ids by the sort keys, falling back to insertion order.
// Only strings, numbers and datetimes compare; other types keep their
// relative order.
func sortIDs(ids []string, docs map[string]bson.Raw, keys bson.D) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := docs[ids[i]], docs[ids[j]]
		for _, e := range keys {
			c := compare(a.Lookup(e.Key), b.Lookup(e.Key))
			if c == 0 {
				continue
			}
			if dir, ok := e.Value.(int); ok && dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b bson.RawValue) int {
	switch {
	case a.Type == bsontype.String && b.Type == bsontype.String:
		return bytes.Compare([]byte(a.StringValue()), []byte(b.StringValue()))
	case a.Type == bsontype.DateTime && b.Type == bsontype.DateTime:
		return cmpInt(a.DateTime(), b.DateTime())
	}
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
	}
	return 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bsontype.Int32:
		return float64(v.Int32()), true
	case bsontype.Int64:
		return float64(v.Int64()), true
	case bsontype.Double:
		return v.Double(), true
	}
	return 0, false
}
