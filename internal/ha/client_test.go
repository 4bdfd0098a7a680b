package ha

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const testToken = "test_token"

// mockHAServer creates a mock Home Assistant WebSocket server
func mockHAServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		handler(conn)
	}))
}

// standardAuthFlow handles authentication and the initial subscribe_events
func standardAuthFlow(t *testing.T, conn *websocket.Conn) {
	require.NoError(t, conn.WriteJSON(Message{Type: "auth_required"}))

	var authMsg AuthMessage
	require.NoError(t, conn.ReadJSON(&authMsg))
	assert.Equal(t, "auth", authMsg.Type)
	assert.Equal(t, testToken, authMsg.AccessToken)

	require.NoError(t, conn.WriteJSON(Message{Type: "auth_ok"}))

	var subMsg SubscribeEventsRequest
	require.NoError(t, conn.ReadJSON(&subMsg))
	assert.Equal(t, "subscribe_events", subMsg.Type)
	assert.Equal(t, "state_changed", subMsg.EventType)
	replyOK(t, conn, subMsg.ID, nil)
}

func replyOK(t *testing.T, conn *websocket.Conn, id int, result json.RawMessage) {
	success := true
	require.NoError(t, conn.WriteJSON(Message{
		ID:      id,
		Type:    "result",
		Success: &success,
		Result:  result,
	}))
}

func connectClient(t *testing.T, server *httptest.Server) *Client {
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, testToken, zap.NewNop())
	require.NoError(t, client.Connect())
	t.Cleanup(func() { client.Disconnect() })
	return client
}

func TestClient_Connect(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn)
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		client := connectClient(t, server)
		assert.True(t, client.IsConnected())

		require.NoError(t, client.Disconnect())
		assert.False(t, client.IsConnected())
	})

	t.Run("invalid token", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			conn.WriteJSON(Message{Type: "auth_required"})

			var authMsg AuthMessage
			conn.ReadJSON(&authMsg)

			conn.WriteJSON(Message{Type: "auth_invalid"})
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, "wrong_token", zap.NewNop())

		err := client.Connect()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authentication failed")
		assert.False(t, client.IsConnected())
	})

	t.Run("already connected", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn)
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		client := connectClient(t, server)

		err := client.Connect()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already connected")
	})

	t.Run("unreachable server", func(t *testing.T) {
		client := NewClient("ws://127.0.0.1:1/api/websocket", testToken, zap.NewNop())
		assert.Error(t, client.Connect())
	})
}

func TestClient_GetState(t *testing.T) {
	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn)

		for i := 0; i < 2; i++ {
			var statesReq GetStatesRequest
			if err := conn.ReadJSON(&statesReq); err != nil {
				return
			}
			assert.Equal(t, "get_states", statesReq.Type)

			statesJSON, _ := json.Marshal([]*State{
				{EntityID: "input_boolean.ezviz_q1", State: "on"},
			})
			replyOK(t, conn, statesReq.ID, statesJSON)
		}

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := connectClient(t, server)

	state, err := client.GetState("input_boolean.ezviz_q1")
	require.NoError(t, err)
	assert.Equal(t, "on", state.State)

	_, err = client.GetState("nonexistent")
	assert.Error(t, err)
}

func TestClient_SetInputBoolean(t *testing.T) {
	testCases := []struct {
		name    string
		value   bool
		service string
	}{
		{"turn on", true, "turn_on"},
		{"turn off", false, "turn_off"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := mockHAServer(t, func(conn *websocket.Conn) {
				standardAuthFlow(t, conn)

				var serviceReq CallServiceRequest
				require.NoError(t, conn.ReadJSON(&serviceReq))

				assert.Equal(t, "call_service", serviceReq.Type)
				assert.Equal(t, "input_boolean", serviceReq.Domain)
				assert.Equal(t, tc.service, serviceReq.Service)
				assert.Equal(t, "input_boolean.ezviz_q1", serviceReq.ServiceData["entity_id"])

				replyOK(t, conn, serviceReq.ID, nil)
				time.Sleep(50 * time.Millisecond)
			})
			defer server.Close()

			client := connectClient(t, server)
			assert.NoError(t, client.SetInputBoolean("ezviz_q1", tc.value))
		})
	}
}

func TestClient_CallServiceError(t *testing.T) {
	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn)

		var serviceReq CallServiceRequest
		require.NoError(t, conn.ReadJSON(&serviceReq))

		success := false
		conn.WriteJSON(Message{
			ID:      serviceReq.ID,
			Type:    "result",
			Success: &success,
			Error:   &Error{Code: "not_found", Message: "Entity not found"},
		})
		time.Sleep(50 * time.Millisecond)
	})
	defer server.Close()

	client := connectClient(t, server)
	err := client.CallService("input_boolean", "turn_on", map[string]interface{}{
		"entity_id": "input_boolean.missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
}

func TestClient_SubscribeStateChanges(t *testing.T) {
	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn)

		for _, newState := range []string{"off", "on"} {
			data, _ := json.Marshal(StateChangedEvent{
				EntityID: "input_boolean.ezviz_q1",
				OldState: &State{EntityID: "input_boolean.ezviz_q1", State: "unknown"},
				NewState: &State{EntityID: "input_boolean.ezviz_q1", State: newState},
			})
			conn.WriteJSON(Message{
				Type:  "event",
				Event: &Event{EventType: "state_changed", Data: data},
			})
			time.Sleep(50 * time.Millisecond)
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, testToken, zap.NewNop())

	received := make(chan string, 4)
	sub, err := client.SubscribeStateChanges("input_boolean.ezviz_q1", func(entityID string, oldState, newState *State) {
		received <- newState.State
	})
	require.NoError(t, err)

	require.NoError(t, client.Connect())
	defer client.Disconnect()

	select {
	case state := <-received:
		assert.Equal(t, "off", state)
	case <-time.After(time.Second):
		t.Fatal("no state change delivered")
	}

	require.NoError(t, sub.Unsubscribe())

	select {
	case state := <-received:
		t.Fatalf("unexpected delivery after unsubscribe: %s", state)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient()

	t.Run("connection", func(t *testing.T) {
		assert.False(t, mock.IsConnected())

		assert.NoError(t, mock.Connect())
		assert.True(t, mock.IsConnected())
		assert.Error(t, mock.Connect())

		assert.NoError(t, mock.Disconnect())
		assert.False(t, mock.IsConnected())
	})

	t.Run("service calls update state", func(t *testing.T) {
		mock.ClearServiceCalls()

		require.NoError(t, mock.SetInputBoolean("test", true))

		calls := mock.GetServiceCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "input_boolean", calls[0].Domain)
		assert.Equal(t, "turn_on", calls[0].Service)

		state, err := mock.GetState("input_boolean.test")
		require.NoError(t, err)
		assert.Equal(t, "on", state.State)

		_, err = mock.GetState("nonexistent")
		assert.Error(t, err)
	})

	t.Run("subscriptions", func(t *testing.T) {
		callCount := 0
		sub, err := mock.SubscribeStateChanges("input_boolean.test", func(entityID string, oldState, newState *State) {
			callCount++
			assert.Equal(t, "input_boolean.test", entityID)
			assert.Equal(t, "off", newState.State)
		})
		require.NoError(t, err)

		mock.SimulateStateChange("input_boolean.test", "off")
		assert.Equal(t, 1, callCount)

		require.NoError(t, sub.Unsubscribe())
		mock.SimulateStateChange("input_boolean.test", "off")
		assert.Equal(t, 1, callCount)
	})
}
