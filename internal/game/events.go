package game

import (
	"time"
)

// EventType identifies a session event.
type EventType string

const (
	EventTypeCardChanged    EventType = "card"
	EventTypeRangeExhausted EventType = "range_exhausted"
	EventTypeProgress       EventType = "progress"
	EventTypeFinalized      EventType = "finalized"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is anything a Session reports to its observers.
type Event interface {
	EventType() EventType
	SessionID() string
	Timestamp() time.Time
}

type eventMeta struct {
	sessionID string
	timestamp time.Time
}

func (m eventMeta) SessionID() string    { return m.sessionID }
func (m eventMeta) Timestamp() time.Time { return m.timestamp }

// CardChangedEvent is published whenever a card changes state or a spinning
// card re-samples.
type CardChangedEvent struct {
	eventMeta
	Card CardView
}

func (e CardChangedEvent) EventType() EventType { return EventTypeCardChanged }

// RangeExhaustedEvent is published when a position has no legal digit left.
type RangeExhaustedEvent struct {
	eventMeta
	Position int
}

func (e RangeExhaustedEvent) EventType() EventType { return EventTypeRangeExhausted }

// ProgressEvent is published after every successful flip.
type ProgressEvent struct {
	eventMeta
	Locked int
	Count  int
}

func (e ProgressEvent) EventType() EventType { return EventTypeProgress }

// FinalizedEvent is published once, when the last card locks.
type FinalizedEvent struct {
	eventMeta
	Result Result
}

func (e FinalizedEvent) EventType() EventType { return EventTypeFinalized }

// Observer receives session events. Observers are called while the session is
// serialized and must not call back into it.
type Observer interface {
	OnEvent(event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(event Event) { f(event) }

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	Publish(event Event)
}

// SimpleEventBus is a basic in-memory event bus implementation
type SimpleEventBus struct {
	observers []Observer
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{}
}

// Subscribe adds an observer to receive events
func (bus *SimpleEventBus) Subscribe(observer Observer) {
	bus.observers = append(bus.observers, observer)
}

// Unsubscribe removes an observer. ObserverFunc values cannot be compared and
// are never removed.
func (bus *SimpleEventBus) Unsubscribe(observer Observer) {
	if _, ok := observer.(ObserverFunc); ok {
		return
	}
	for i, o := range bus.observers {
		if _, ok := o.(ObserverFunc); ok {
			continue
		}
		if o == observer {
			bus.observers = append(bus.observers[:i], bus.observers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all observers
func (bus *SimpleEventBus) Publish(event Event) {
	for _, o := range bus.observers {
		o.OnEvent(event)
	}
}
