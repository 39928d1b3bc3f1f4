// Package unitbroadcaster implements the Event Bus (L1): an in-process
// multicast of UnitEvent values fanned out to the library, the manager, and
// any external subscribers, each through its own bounded queue and
// delivery goroutine.
package unitbroadcaster

import "github.com/sam-bristow/exclave/internal/unit"

// EventKind tags which variant an Event carries.
type EventKind int

const (
	EventStatus EventKind = iota
	EventCategory
	EventRescanRequest
	EventRescanStart
	EventRescanFinish
)

// StatusEvent reports a single unit's lifecycle status, consumed by the
// Rescan Engine and rebroadcast verbatim for external observers.
type StatusEvent struct {
	Name   unit.Name
	Status unit.Status
}

func NewStatusEvent(name unit.Name, status unit.Status) StatusEvent {
	return StatusEvent{Name: name, Status: status}
}

// CategoryEvent is a human-readable summary for one kind, e.g. "Number of
// units on disk: 3".
type CategoryEvent struct {
	Kind    unit.Kind
	Summary string
}

func NewCategoryEvent(kind unit.Kind, summary string) CategoryEvent {
	return CategoryEvent{Kind: kind, Summary: summary}
}

// Event is the multicast envelope. At most one of the payload fields is
// populated, selected by Kind; RescanRequest, RescanStart and RescanFinish
// carry none.
type Event struct {
	Kind     EventKind
	Status   StatusEvent
	Category CategoryEvent
}

func NewStatus(name unit.Name, status unit.Status) Event {
	return Event{Kind: EventStatus, Status: NewStatusEvent(name, status)}
}

func NewCategory(kind unit.Kind, summary string) Event {
	return Event{Kind: EventCategory, Category: NewCategoryEvent(kind, summary)}
}

func RescanRequest() Event { return Event{Kind: EventRescanRequest} }
func RescanStart() Event   { return Event{Kind: EventRescanStart} }
func RescanFinish() Event  { return Event{Kind: EventRescanFinish} }
