package ezviz

import (
	"context"
	"sync"
)

// SwitchCall records a SwitchStatus call for testing
type SwitchCall struct {
	Serial     string
	SwitchType int
	Enable     int
}

// MockClient implements SessionClient for testing
type MockClient struct {
	mu          sync.Mutex
	token       string
	loginErr    error
	devices     map[string]DeviceRecord
	listErr     error
	switchErr   error
	loginCalls  int
	listCalls   int
	switchCalls []SwitchCall
}

// NewMockClient creates a mock that logs in with token and serves no devices
func NewMockClient(token string) *MockClient {
	return &MockClient{
		token:   token,
		devices: make(map[string]DeviceRecord),
	}
}

// Login returns the configured token and error
func (m *MockClient) Login(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCalls++
	return m.token, m.loginErr
}

// GetDeviceInfos returns a copy of the configured device map
func (m *MockClient) GetDeviceInfos(ctx context.Context) (map[string]DeviceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.listErr != nil {
		return nil, m.listErr
	}

	devices := make(map[string]DeviceRecord, len(m.devices))
	for serial, record := range m.devices {
		devices[serial] = record
	}
	return devices, nil
}

// SwitchStatus records the call. Like the HTTP client it fails on a
// cancelled context.
func (m *MockClient) SwitchStatus(ctx context.Context, serial string, switchType, enable int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.switchCalls = append(m.switchCalls, SwitchCall{
		Serial:     serial,
		SwitchType: switchType,
		Enable:     enable,
	})
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.switchErr
}

// SetDevice adds or replaces a device record (for testing)
func (m *MockClient) SetDevice(serial string, record DeviceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[serial] = record
}

// RemoveDevice deletes a device record (for testing)
func (m *MockClient) RemoveDevice(serial string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, serial)
}

// SetLoginError makes Login fail with err
func (m *MockClient) SetLoginError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginErr = err
}

// SetListError makes GetDeviceInfos fail with err
func (m *MockClient) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// SetSwitchError makes SwitchStatus fail with err after recording the call
func (m *MockClient) SetSwitchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switchErr = err
}

// LoginCalls returns how many times Login was called
func (m *MockClient) LoginCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginCalls
}

// ListCalls returns how many times GetDeviceInfos was called
func (m *MockClient) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// GetSwitchCalls returns all recorded switch calls
func (m *MockClient) GetSwitchCalls() []SwitchCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]SwitchCall, len(m.switchCalls))
	copy(calls, m.switchCalls)
	return calls
}
