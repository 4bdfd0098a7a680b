package ha

import (
	"fmt"
	"sync"
	"time"
)

// ServiceCall records a service call for testing
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

// MockClient implements HAClient for testing. Service calls on
// input_boolean entities update the mock state and notify subscribers the
// way Home Assistant would.
type MockClient struct {
	statesMu sync.RWMutex
	states   map[string]*State

	subsMu sync.RWMutex
	subs   subscriptions

	connMu    sync.RWMutex
	connected bool

	callsMu      sync.Mutex
	serviceCalls []ServiceCall
	callErr      error
}

// NewMockClient creates a new mock HA client
func NewMockClient() *MockClient {
	return &MockClient{
		states: make(map[string]*State),
		subs:   newSubscriptions(),
	}
}

// Connect simulates connecting to Home Assistant
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	m.subsMu.Lock()
	m.subs = newSubscriptions()
	m.subsMu.Unlock()
	return nil
}

// IsConnected returns connection status
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// GetState retrieves a mock state
func (m *MockClient) GetState(entityID string) (*State, error) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	state, ok := m.states[entityID]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", entityID)
	}
	return state, nil
}

// CallService records a service call and applies input_boolean on/off
func (m *MockClient) CallService(domain, service string, data map[string]interface{}) error {
	m.callsMu.Lock()
	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})
	err := m.callErr
	m.callsMu.Unlock()

	if err != nil {
		return err
	}

	entityID, _ := data["entity_id"].(string)
	if domain == "input_boolean" && entityID != "" {
		switch service {
		case "turn_on":
			m.SimulateStateChange(entityID, "on")
		case "turn_off":
			m.SimulateStateChange(entityID, "off")
		}
	}
	return nil
}

// SubscribeStateChanges subscribes to state changes
func (m *MockClient) SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error) {
	m.subsMu.Lock()
	subID := m.subs.add(entityID, handler)
	m.subsMu.Unlock()

	return &subscription{
		entityID: entityID,
		subID:    subID,
		remove: func(entityID string, subID int) {
			m.subsMu.Lock()
			m.subs.remove(entityID, subID)
			m.subsMu.Unlock()
		},
	}, nil
}

// SetInputBoolean sets a mock input_boolean
func (m *MockClient) SetInputBoolean(name string, value bool) error {
	service := "turn_off"
	if value {
		service = "turn_on"
	}

	return m.CallService("input_boolean", service, map[string]interface{}{
		"entity_id": "input_boolean." + name,
	})
}

// SetServiceError makes every following CallService fail with err
func (m *MockClient) SetServiceError(err error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.callErr = err
}

// SimulateStateChange sets an entity state and notifies subscribers, as a
// change made in the Home Assistant UI would.
func (m *MockClient) SimulateStateChange(entityID string, newStateValue string) {
	now := time.Now()

	m.statesMu.Lock()
	oldState := m.states[entityID]
	newState := &State{
		EntityID:    entityID,
		State:       newStateValue,
		Attributes:  make(map[string]interface{}),
		LastChanged: now,
		LastUpdated: now,
	}
	if oldState != nil {
		newState.Attributes = oldState.Attributes
	}
	m.states[entityID] = newState
	m.statesMu.Unlock()

	m.subsMu.RLock()
	handlers := m.subs.handlers(entityID)
	m.subsMu.RUnlock()

	for _, handler := range handlers {
		handler(entityID, oldState, newState)
	}
}

// GetServiceCalls returns all recorded service calls
func (m *MockClient) GetServiceCalls() []ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// ClearServiceCalls clears the service call history
func (m *MockClient) ClearServiceCalls() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = nil
}
