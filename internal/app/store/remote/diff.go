package remote

import (
	"bytes"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Diff computes the changes that turn prev into next. Removals come first,
// sorted by id, followed by additions and modifications in nextOrder.
func Diff(prev, next map[string]bson.Raw, nextOrder []string) []Change {
	var out []Change
	for id := range prev {
		if _, ok := next[id]; !ok {
			out = append(out, Change{Kind: Removed, ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	for _, id := range nextOrder {
		doc := next[id]
		old, ok := prev[id]
		switch {
		case !ok:
			out = append(out, Change{Kind: Added, ID: id, Doc: doc})
		case !bytes.Equal(old, doc):
			out = append(out, Change{Kind: Modified, ID: id, Doc: doc})
		}
	}
	return out
}
