package ha

import (
	"encoding/json"
	"time"
)

// Message is the envelope of every WebSocket frame to and from Home Assistant
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
}

// Error is an error payload in a result frame
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage is sent in reply to auth_required
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// Event is the payload of an event frame
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	TimeFired time.Time       `json:"time_fired"`
}

// StateChangedEvent is the data of a state_changed event
type StateChangedEvent struct {
	EntityID string `json:"entity_id"`
	NewState *State `json:"new_state"`
	OldState *State `json:"old_state"`
}

// State is an entity state
type State struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// CallServiceRequest is a call_service command
type CallServiceRequest struct {
	ID          int                    `json:"id"`
	Type        string                 `json:"type"`
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData map[string]interface{} `json:"service_data,omitempty"`
}

// GetStatesRequest is a get_states command
type GetStatesRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// SubscribeEventsRequest is a subscribe_events command
type SubscribeEventsRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
}

// StateChangeHandler is called when a state change event is received
type StateChangeHandler func(entityID string, oldState, newState *State)

// Subscription represents an active state subscription
type Subscription interface {
	Unsubscribe() error
}

// subscriberEntry holds a handler with its unique subscription ID
type subscriberEntry struct {
	subID   int
	handler StateChangeHandler
}

// subscriptions is the handler table shared by Client and MockClient
type subscriptions struct {
	entries map[string][]subscriberEntry
	nextID  int
}

func newSubscriptions() subscriptions {
	return subscriptions{entries: make(map[string][]subscriberEntry)}
}

func (s *subscriptions) add(entityID string, handler StateChangeHandler) int {
	id := s.nextID
	s.nextID++
	s.entries[entityID] = append(s.entries[entityID], subscriberEntry{subID: id, handler: handler})
	return id
}

func (s *subscriptions) remove(entityID string, subID int) {
	entries := s.entries[entityID]
	for i, entry := range entries {
		if entry.subID == subID {
			s.entries[entityID] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(s.entries[entityID]) == 0 {
		delete(s.entries, entityID)
	}
}

func (s *subscriptions) handlers(entityID string) []StateChangeHandler {
	entries := s.entries[entityID]
	handlers := make([]StateChangeHandler, len(entries))
	for i, entry := range entries {
		handlers[i] = entry.handler
	}
	return handlers
}

// subscription implements Subscription
type subscription struct {
	entityID string
	subID    int
	remove   func(entityID string, subID int)
}

func (s *subscription) Unsubscribe() error {
	s.remove(s.entityID, s.subID)
	return nil
}
