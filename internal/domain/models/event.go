package models

import (
	"time"
)

// EventType classifies a scheduled event.
type EventType string

const (
	EventDeadline    EventType = "Deadline"
	EventWorkshop    EventType = "Workshop"
	EventInfoSession EventType = "Info Session"
)

// EventKind selects which audience an event is published to.
type EventKind string

const (
	// GlobalEvents appear on every signed-in user's dashboard.
	GlobalEvents EventKind = "global"
	// PublicEvents appear on the public events listing.
	PublicEvents EventKind = "public"
)

// Collection returns the collection backing events of this kind.
func (k EventKind) Collection() string {
	switch k {
	case GlobalEvents:
		return "global_events"
	case PublicEvents:
		return "public_events"
	}
	return ""
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k.Collection() != ""
}

// Allows reports whether events of type t may be published to this kind.
// Deadlines are only meaningful on user dashboards.
func (k EventKind) Allows(t EventType) bool {
	switch t {
	case EventWorkshop, EventInfoSession:
		return k.Valid()
	case EventDeadline:
		return k == GlobalEvents
	}
	return false
}

// EventDateLayout is the calendar date format events are stored with.
const EventDateLayout = "2006-01-02"

// Event is a dated entry on either the dashboard or the public listing.
type Event struct {
	ID        string    `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Type      EventType `bson:"type" json:"type"`
	Date      string    `bson:"date" json:"date"`
	CreatedAt time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
}

// Day parses Date. Events with an unparseable date sort last.
func (e Event) Day() (time.Time, bool) {
	t, err := time.Parse(EventDateLayout, e.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// EventBefore orders events by calendar date, then by id for a stable order
// among events on the same day.
func EventBefore(a, b Event) bool {
	da, okA := a.Day()
	db, okB := b.Day()
	switch {
	case okA && !okB:
		return true
	case !okA && okB:
		return false
	case okA && okB && !da.Equal(db):
		return da.Before(db)
	}
	return a.ID < b.ID
}
