package engine

import (
	"time"

	"Viral-Card/server/internal/models"
)

// EventType identifies what changed in a session
type EventType string

const (
	EventCardUpdated        EventType = "card.updated"
	EventFlowStatus         EventType = "flow.status"
	EventTranscriptAppended EventType = "transcript.appended"
)

// Event is pushed to renderers after every state change
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Data      any       `json:"data"`
	At        time.Time `json:"at"`
}

// CardUpdated is the payload of EventCardUpdated
type CardUpdated struct {
	Card   models.Card `json:"card"`
	Fields []string    `json:"fields"`
}

// FlowStatusChanged is the payload of EventFlowStatus
type FlowStatusChanged struct {
	Flow   FlowKind `json:"flow"`
	Status string   `json:"status"`
}

// Notifier receives engine events. Publish must not block.
type Notifier interface {
	Publish(Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Event)

func (f NotifierFunc) Publish(ev Event) { f(ev) }

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}

func (e *CardEngine) publish(t EventType, data any) {
	e.notifier.Publish(Event{Type: t, SessionID: e.sessionID, Data: data, At: e.now()})
}

// Dispatcher schedules follow-up work
type Dispatcher interface {
	Dispatch(fn func())
}

// GoDispatcher runs each job on its own goroutine
type GoDispatcher struct{}

func (GoDispatcher) Dispatch(fn func()) { go fn() }

// SyncDispatcher runs jobs inline, so the follow-up completes before the
// triggering call returns
type SyncDispatcher struct{}

func (SyncDispatcher) Dispatch(fn func()) { fn() }
