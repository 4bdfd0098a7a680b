package plug

import (
	"fmt"

	"ezvizswitch/internal/ezviz"
)

// SwitchState is the cached relay state of a plug
type SwitchState int

const (
	// StateUnknown means the record carried no plug switch entry.
	StateUnknown SwitchState = -1
	StateOff     SwitchState = 0
	StateOn      SwitchState = 1
)

func (s SwitchState) String() string {
	switch s {
	case StateOn:
		return "on"
	case StateOff:
		return "off"
	default:
		return "unknown"
	}
}

// DeviceState is the normalized view of one device record. Empty strings
// mean the field was absent.
type DeviceState struct {
	Name         string
	Serial       string
	State        SwitchState
	OnlineStatus string
}

// Online reports whether the device declared itself online. Absent status
// counts as online.
func (d DeviceState) Online() bool {
	return d.OnlineStatus == "" || d.OnlineStatus == "1" || d.OnlineStatus == "true"
}

// ParseDeviceData normalizes a raw record. It never fails: any missing or
// oddly shaped group leaves the corresponding field absent.
func ParseDeviceData(record ezviz.DeviceRecord) DeviceState {
	state := DeviceState{State: StateUnknown}

	if info, ok := resourceInfo(record); ok {
		state.Name, _ = info["resourceName"].(string)
		state.Serial, _ = info["deviceSerial"].(string)
	}

	switch entries := record[ezviz.GroupSwitch].(type) {
	case []interface{}:
		state.State = plugSwitchState(entries)
	case []map[string]interface{}:
		generic := make([]interface{}, len(entries))
		for i, entry := range entries {
			generic[i] = entry
		}
		state.State = plugSwitchState(generic)
	}

	if status, ok := record[ezviz.GroupStatus].(map[string]interface{}); ok {
		if optionals, ok := status["optionals"].(map[string]interface{}); ok {
			if online, ok := optionals["OnlineStatus"]; ok && online != nil {
				state.OnlineStatus = fmt.Sprint(online)
			}
		}
	}

	return state
}

// resourceInfo returns the resource-info group, which the API delivers
// either as a single object or as a list for multi-channel devices.
func resourceInfo(record ezviz.DeviceRecord) (map[string]interface{}, bool) {
	switch info := record[ezviz.GroupResourceInfos].(type) {
	case map[string]interface{}:
		return info, true
	case []interface{}:
		if len(info) == 0 {
			return nil, false
		}
		first, ok := info[0].(map[string]interface{})
		return first, ok
	default:
		return nil, false
	}
}

// recordSerial returns the serial a record is located by: the resource-info
// serial, falling back to the device-info serial.
func recordSerial(record ezviz.DeviceRecord) string {
	if info, ok := resourceInfo(record); ok {
		if serial, ok := info["deviceSerial"].(string); ok && serial != "" {
			return serial
		}
	}
	if device, ok := record[ezviz.GroupDeviceInfos].(map[string]interface{}); ok {
		serial, _ := device["deviceSerial"].(string)
		return serial
	}
	return ""
}

// plugSwitchState picks the first entry of the plug switch type.
func plugSwitchState(entries []interface{}) SwitchState {
	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if switchType, ok := asInt(entry["type"]); !ok || switchType != ezviz.SwitchTypePlug {
			continue
		}
		switch enable := entry["enable"].(type) {
		case bool:
			if enable {
				return StateOn
			}
			return StateOff
		default:
			if n, ok := asInt(enable); ok && (n == 0 || n == 1) {
				return SwitchState(n)
			}
			return StateUnknown
		}
	}
	return StateUnknown
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	default:
		return 0, false
	}
}
