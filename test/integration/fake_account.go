// Package integration runs the platform, poller, sinks and API together
// against a fake EZVIZ account served over HTTP.
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FakePlug is one plug of the fake account
type FakePlug struct {
	Serial string
	Name   string
	On     bool
	Online bool
}

// SwitchCommand is a switchStatus request received by the fake account
type SwitchCommand struct {
	Serial     string
	Enable     int
	SwitchType int
}

// FakeAccount serves login, pagelist and switchStatus
type FakeAccount struct {
	*httptest.Server

	mu       sync.Mutex
	session  string
	plugs    map[string]*FakePlug
	commands []SwitchCommand
}

// NewFakeAccount starts a fake account holding plugs
func NewFakeAccount(plugs ...FakePlug) *FakeAccount {
	a := &FakeAccount{
		session: "integration-session",
		plugs:   make(map[string]*FakePlug),
	}
	for _, p := range plugs {
		p := p
		a.plugs[p.Serial] = &p
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/users/login/v5", a.handleLogin)
	mux.HandleFunc("/v3/userdevices/v1/resources/pagelist", a.handlePageList)
	mux.HandleFunc("/v3/devices/", a.handleSwitch)
	a.Server = httptest.NewServer(mux)
	return a
}

// Host returns host:port of the fake account API
func (a *FakeAccount) Host() string {
	return strings.TrimPrefix(a.URL, "http://")
}

// Plug returns a copy of the plug with serial
func (a *FakeAccount) Plug(serial string) FakePlug {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.plugs[serial]
}

// SetOn changes a plug's relay as if switched by hand
func (a *FakeAccount) SetOn(serial string, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plugs[serial].On = on
}

// Commands returns every switch command received
func (a *FakeAccount) Commands() []SwitchCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]SwitchCommand(nil), a.commands...)
}

func (a *FakeAccount) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("account") == "" {
		w.Write([]byte(`{"meta":{"code":1013,"message":"account error"}}`))
		return
	}
	fmt.Fprintf(w, `{"meta":{"code":200},"loginSession":{"sessionId":%q}}`, a.session)
}

func (a *FakeAccount) handlePageList(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("sessionId") != a.session {
		w.Write([]byte(`{"meta":{"code":2003,"message":"session expired"}}`))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	serials := make([]string, 0, len(a.plugs))
	for serial := range a.plugs {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	deviceInfos := []map[string]interface{}{}
	resourceInfos := []map[string]interface{}{}
	switches := map[string]interface{}{}
	status := map[string]interface{}{}
	for _, serial := range serials {
		p := a.plugs[serial]
		online := "0"
		if p.Online {
			online = "1"
		}
		deviceInfos = append(deviceInfos, map[string]interface{}{"deviceSerial": serial, "name": p.Name})
		resourceInfos = append(resourceInfos, map[string]interface{}{"deviceSerial": serial, "resourceName": p.Name})
		switches[serial] = []map[string]interface{}{{"type": 14, "enable": p.On}}
		status[serial] = map[string]interface{}{"optionals": map[string]interface{}{"OnlineStatus": online}}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"meta":          map[string]int{"code": 200},
		"page":          map[string]interface{}{"offset": 0, "limit": 30, "hasNext": false},
		"deviceInfos":   deviceInfos,
		"resourceInfos": resourceInfos,
		"SWITCH":        switches,
		"STATUS":        status,
	})
}

// handleSwitch serves PUT /v3/devices/{serial}/1/{enable}/{type}/switchStatus
func (a *FakeAccount) handleSwitch(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v3/devices/"), "/")
	if r.Method != http.MethodPut || len(parts) != 5 || parts[4] != "switchStatus" {
		http.NotFound(w, r)
		return
	}
	enable, _ := strconv.Atoi(parts[2])
	switchType, _ := strconv.Atoi(parts[3])

	a.mu.Lock()
	defer a.mu.Unlock()

	a.commands = append(a.commands, SwitchCommand{Serial: parts[0], Enable: enable, SwitchType: switchType})
	p, ok := a.plugs[parts[0]]
	if !ok {
		w.Write([]byte(`{"meta":{"code":2000,"message":"device not exist"}}`))
		return
	}
	p.On = enable == 1
	w.Write([]byte(`{"meta":{"code":200}}`))
}
