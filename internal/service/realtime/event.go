// Package realtime fans out table change events to websocket subscribers.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tables with a change feed.
const (
	TablePotholes      = "potholes"
	TableVehicles      = "vehicles"
	TableNotifications = "notifications"
	// TopicLive carries annotated live frames instead of table rows.
	TopicLive = "live"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventSnapshot carries the full current table as a JSON array in New.
	EventSnapshot EventType = "SNAPSHOT"
	EventFrame    EventType = "FRAME"
)

// ChangeEvent is the wire format of one feed message.
type ChangeEvent struct {
	Table      string          `json:"table"`
	Type       EventType       `json:"eventType"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_timestamp"`
}

// NewEvent marshals the records into a ChangeEvent. Nil records are omitted.
func NewEvent(table string, typ EventType, newRecord, oldRecord interface{}) (ChangeEvent, error) {
	ev := ChangeEvent{Table: table, Type: typ, CommitTime: time.Now().UTC()}
	var err error
	if newRecord != nil {
		if ev.New, err = json.Marshal(newRecord); err != nil {
			return ev, fmt.Errorf("encode new record: %w", err)
		}
	}
	if oldRecord != nil {
		if ev.Old, err = json.Marshal(oldRecord); err != nil {
			return ev, fmt.Errorf("encode old record: %w", err)
		}
	}
	return ev, nil
}

// EncodeEvent builds a change event and returns its wire form.
func EncodeEvent(table string, typ EventType, newRecord, oldRecord interface{}) ([]byte, error) {
	ev, err := NewEvent(table, typ, newRecord, oldRecord)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}
