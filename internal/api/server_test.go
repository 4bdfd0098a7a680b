package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ezvizswitch/internal/ezviz"
	"ezvizswitch/internal/plug"
	"ezvizswitch/pkg/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func plugRecord(name, serial string, on bool) ezviz.DeviceRecord {
	return ezviz.DeviceRecord{
		ezviz.GroupResourceInfos: map[string]interface{}{
			"resourceName": name,
			"deviceSerial": serial,
		},
		ezviz.GroupSwitch: []interface{}{
			map[string]interface{}{"type": float64(ezviz.SwitchTypePlug), "enable": on},
		},
		ezviz.GroupStatus: map[string]interface{}{
			"optionals": map[string]interface{}{"OnlineStatus": "1"},
		},
	}
}

func newTestServer(t *testing.T, readOnly bool) (*Server, *ezviz.MockClient) {
	client := ezviz.NewMockClient("token")
	client.SetDevice("A1", plugRecord("Desk", "A1", false))
	client.SetDevice("B2", plugRecord("Heater", "B2", true))

	registry := entity.NewRegistry()
	_, err := plug.Setup(context.Background(),
		plug.Credentials{Username: "u", Password: "p"},
		func(plug.Credentials) ezviz.SessionClient { return client },
		registry.Add, zap.NewNop(), plug.Options{ReadOnly: readOnly})
	require.NoError(t, err)

	return NewServer(registry, zap.NewNop(), 8080), client
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleListPlugs(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(s, http.MethodGet, "/api/plugs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response []PlugResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, []PlugResponse{
		{Serial: "A1", Name: "Desk", On: false, Online: true},
		{Serial: "B2", Name: "Heater", On: true, Online: true},
	}, response)
}

func TestHandleGetPlug(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(s, http.MethodGet, "/api/plugs/B2")
	require.Equal(t, http.StatusOK, w.Code)

	var response PlugResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Heater", response.Name)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/plugs/ZZ").Code)
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		name       string
		readOnly   bool
		path       string
		wantStatus int
		wantCalls  []ezviz.SwitchCall
	}{
		{
			name:       "turn on",
			path:       "/api/plugs/A1/on",
			wantStatus: http.StatusOK,
			wantCalls:  []ezviz.SwitchCall{{Serial: "A1", SwitchType: ezviz.SwitchTypePlug, Enable: 1}},
		},
		{
			name:       "turn off",
			path:       "/api/plugs/B2/off",
			wantStatus: http.StatusOK,
			wantCalls:  []ezviz.SwitchCall{{Serial: "B2", SwitchType: ezviz.SwitchTypePlug, Enable: 0}},
		},
		{
			name:       "already on",
			path:       "/api/plugs/B2/on",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown plug",
			path:       "/api/plugs/ZZ/on",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "read-only",
			readOnly:   true,
			path:       "/api/plugs/A1/on",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, client := newTestServer(t, tt.readOnly)

			w := do(s, http.MethodPost, tt.path)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCalls == nil {
				assert.Empty(t, client.GetSwitchCalls())
			} else {
				assert.Equal(t, tt.wantCalls, client.GetSwitchCalls())
			}
		})
	}
}

func TestHandleCommandUpstreamError(t *testing.T) {
	s, client := newTestServer(t, false)
	client.SetSwitchError(errors.New("device offline"))

	w := do(s, http.MethodPost, "/api/plugs/A1/on")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response["error"], "device offline")
}

func TestHandleRefresh(t *testing.T) {
	s, client := newTestServer(t, false)
	client.SetDevice("A1", plugRecord("Desk Lamp", "A1", true))

	w := do(s, http.MethodPost, "/api/plugs/A1/refresh")
	require.Equal(t, http.StatusOK, w.Code)

	var response PlugResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, PlugResponse{Serial: "A1", Name: "Desk Lamp", On: true, Online: true}, response)

	client.RemoveDevice("A1")
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/api/plugs/A1/refresh").Code)
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, float64(2), response["plugs"])
}

type fixedPolls time.Time

func (f fixedPolls) LastPoll() time.Time { return time.Time(f) }

func TestHandleHealthLastPoll(t *testing.T) {
	s, _ := newTestServer(t, false)

	s.SetPollStatus(fixedPolls(time.Time{}))
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(do(s, http.MethodGet, "/health").Body).Decode(&response))
	assert.NotContains(t, response, "last_poll", "no poll has finished yet")

	s.SetPollStatus(fixedPolls(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))
	response = nil
	require.NoError(t, json.NewDecoder(do(s, http.MethodGet, "/health").Body).Decode(&response))
	assert.Equal(t, "2024-06-01T08:00:00Z", response["last_poll"])
}

func TestHandleCommandSessionExpired(t *testing.T) {
	s, client := newTestServer(t, false)
	client.SetSwitchError(&ezviz.APIError{Endpoint: "switchStatus", Code: 2003, Message: "session expired"})

	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodPost, "/api/plugs/A1/on").Code)
}

func TestHandleCommandOutlivesClient(t *testing.T) {
	s, client := newTestServer(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/plugs/A1/on", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []ezviz.SwitchCall{{Serial: "A1", SwitchType: ezviz.SwitchTypePlug, Enable: 1}}, client.GetSwitchCalls())
}

func TestHandleSitemap(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(s, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/plugs/{serial}/on")

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/nope").Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var eps []Endpoint
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&eps))
	assert.Len(t, eps, len(endpoints))
}
