package ezviz

import (
	"encoding/json"
)

// Capability group keys inside a DeviceRecord.
const (
	GroupDeviceInfos   = "deviceInfos"
	GroupResourceInfos = "resourceInfos"
	GroupSwitch        = "SWITCH"
	GroupStatus        = "STATUS"
)

// SwitchTypePlug is the switch capability type of a smart plug's relay.
const SwitchTypePlug = 14

// DeviceRecord is the vendor-shaped record of one device, keyed by
// capability group. Values are whatever the pagelist API returned for the
// device's serial and are passed through untouched.
type DeviceRecord map[string]interface{}

// Meta is the status block carried by every EZVIZ API response
type Meta struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LoginResponse is the body returned by the login endpoint
type LoginResponse struct {
	Meta         Meta         `json:"meta"`
	LoginSession LoginSession `json:"loginSession"`
	LoginArea    LoginArea    `json:"loginArea"`
}

// LoginSession holds the session tokens issued on login
type LoginSession struct {
	SessionID   string `json:"sessionId"`
	RFSessionID string `json:"rfSessionId"`
}

// LoginArea tells the client which regional API domain owns the account
type LoginArea struct {
	APIDomain string `json:"apiDomain"`
	AreaName  string `json:"areaName"`
}

// PageListResponse is one page of the device resource list.
// Groups other than deviceInfos/resourceInfos are maps keyed by serial.
type PageListResponse struct {
	Meta          Meta                       `json:"meta"`
	Page          Page                       `json:"page"`
	DeviceInfos   []map[string]interface{}   `json:"deviceInfos"`
	ResourceInfos []map[string]interface{}   `json:"resourceInfos"`
	Groups        map[string]json.RawMessage `json:"-"`
}

// Page describes pagelist pagination
type Page struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasNext bool `json:"hasNext"`
}

// UnmarshalJSON keeps every top-level group so per-serial groups like
// SWITCH and STATUS can be attached to their device records.
func (p *PageListResponse) UnmarshalJSON(data []byte) error {
	type plain PageListResponse
	var base plain
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	var groups map[string]json.RawMessage
	if err := json.Unmarshal(data, &groups); err != nil {
		return err
	}
	delete(groups, "meta")
	delete(groups, "page")
	delete(groups, GroupDeviceInfos)
	delete(groups, GroupResourceInfos)

	*p = PageListResponse(base)
	p.Groups = groups
	return nil
}

// statusResponse is the body of command endpoints that only return meta
type statusResponse struct {
	Meta Meta `json:"meta"`
}
