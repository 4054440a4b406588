package queue

import (
	"encoding/json"
	"time"
)

// TimeFormat is the layout used for Item.IssuedAt.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Payload is the optional plain-object body of an event.
//
// Numbers decoded from the store are json.Number so they survive a round
// trip unchanged; use Decode to bind a payload to a typed struct.
type Payload map[string]any

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Item is one stored event.
type Item struct {
	EventName string  `json:"eventName"`
	IssuedAt  string  `json:"issuedAt"`
	Data      Payload `json:"data,omitzero"`
}

// NewItem stamps an item with t in UTC.
func NewItem(eventName string, data Payload, t time.Time) Item {
	return Item{
		EventName: eventName,
		IssuedAt:  t.UTC().Format(TimeFormat),
		Data:      data,
	}
}

// Time parses IssuedAt.
func (it Item) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, it.IssuedAt)
}

// State is the whole persisted queue, oldest first.
type State struct {
	Queue []Item `json:"queue"`
}

// EmptyState returns the state used when the slot has never been written.
func EmptyState() State {
	return State{Queue: []Item{}}
}

// Len returns the number of stored items.
func (s State) Len() int {
	return len(s.Queue)
}

// IndexOf returns the position of the first item named eventName, or -1.
func (s State) IndexOf(eventName string) int {
	for i, it := range s.Queue {
		if it.EventName == eventName {
			return i
		}
	}
	return -1
}

// Count returns how many items are named eventName.
func (s State) Count(eventName string) int {
	n := 0
	for _, it := range s.Queue {
		if it.EventName == eventName {
			n++
		}
	}
	return n
}

// without returns a copy of the queue with position i removed.
func (s State) without(i int) State {
	out := make([]Item, 0, len(s.Queue)-1)
	out = append(out, s.Queue[:i]...)
	out = append(out, s.Queue[i+1:]...)
	return State{Queue: out}
}
