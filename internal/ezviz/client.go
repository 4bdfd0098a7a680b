// Package ezviz is a minimal client for the EZVIZ cloud account API: login,
// device enumeration and switch commands. It performs no retries; transport
// and API errors are returned to the caller.
package ezviz

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultAPIDomain is the European API domain, which redirects other regions on login.
	DefaultAPIDomain = "apiieu.ezvizlife.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 25 * time.Second

	endpointLogin    = "/v3/users/login/v5"
	endpointPageList = "/v3/userdevices/v1/resources/pagelist"
	endpointDevices  = "/v3/devices/"

	pageLimit = 30

	// pageListFilter selects the capability groups returned with each device.
	pageListFilter = "CLOUD,TIME_PLAN,CONNECTION,SWITCH,STATUS,WIFI,NODISTURB,P2P,KMS,CHANNEL,VTM,DETECTOR,FEATURE,UPGRADE,VIDEO_QUALITY,QOS,PRODUCTS_INFO"
)

// SessionClient is the account API surface the plug platform depends on.
type SessionClient interface {
	Login(ctx context.Context) (string, error)
	GetDeviceInfos(ctx context.Context) (map[string]DeviceRecord, error)
	SwitchStatus(ctx context.Context, serial string, switchType, enable int) error
}

// Client implements SessionClient over HTTPS
type Client struct {
	username    string
	password    string
	scheme      string
	apiDomain   string
	featureCode string
	httpClient  *http.Client
	logger      *zap.Logger

	mu        sync.RWMutex
	sessionID string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIDomain sets the initial API domain (region).
func WithAPIDomain(domain string) Option {
	return func(c *Client) {
		if domain != "" {
			c.apiDomain = domain
		}
	}
}

// WithScheme overrides the URL scheme; tests use plain http.
func WithScheme(scheme string) Option {
	return func(c *Client) {
		c.scheme = scheme
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client for one account. No network calls are made
// until Login.
func NewClient(username, password string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		username:    username,
		password:    password,
		scheme:      "https",
		apiDomain:   DefaultAPIDomain,
		featureCode: strings.ReplaceAll(uuid.NewString(), "-", ""),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		logger:      logger.Named("ezviz"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Login authenticates the account and stores the session token. An empty
// token with a nil error never happens; failures are always returned as errors.
func (c *Client) Login(ctx context.Context) (string, error) {
	sum := md5.Sum([]byte(c.password))
	form := url.Values{
		"account":     {c.username},
		"password":    {hex.EncodeToString(sum[:])},
		"featureCode": {c.featureCode},
		"msgType":     {"0"},
		"bizType":     {""},
		"cuName":      {"SGFzc2lv"},
		"smsCode":     {""},
	}

	// One redirect to the account's home region is allowed.
	for attempt := 0; attempt < 2; attempt++ {
		var resp LoginResponse
		if err := c.do(ctx, http.MethodPost, endpointLogin, nil, form, false, &resp); err != nil {
			return "", fmt.Errorf("login request failed: %w", err)
		}

		if resp.Meta.Code == codeWrongRegion && resp.LoginArea.APIDomain != "" && attempt == 0 {
			c.logger.Info("Account belongs to another region, retrying login",
				zap.String("api_domain", resp.LoginArea.APIDomain))
			c.mu.Lock()
			c.apiDomain = resp.LoginArea.APIDomain
			c.mu.Unlock()
			continue
		}

		if err := metaError("login", resp.Meta); err != nil {
			return "", err
		}

		if resp.LoginSession.SessionID == "" {
			return "", &APIError{Endpoint: "login", Code: resp.Meta.Code, Message: "empty session id"}
		}

		c.mu.Lock()
		c.sessionID = resp.LoginSession.SessionID
		if resp.LoginArea.APIDomain != "" {
			c.apiDomain = resp.LoginArea.APIDomain
		}
		c.mu.Unlock()

		c.logger.Info("Logged in to EZVIZ", zap.String("api_domain", c.domain()))
		return resp.LoginSession.SessionID, nil
	}

	return "", &APIError{Endpoint: "login", Code: codeWrongRegion, Message: "region redirect loop"}
}

// GetDeviceInfos returns every device on the account keyed by serial.
func (c *Client) GetDeviceInfos(ctx context.Context) (map[string]DeviceRecord, error) {
	records := make(map[string]DeviceRecord)

	for offset := 0; ; offset += pageLimit {
		query := url.Values{
			"groupId": {"-1"},
			"limit":   {fmt.Sprint(pageLimit)},
			"offset":  {fmt.Sprint(offset)},
			"filter":  {pageListFilter},
		}

		var page PageListResponse
		if err := c.do(ctx, http.MethodGet, endpointPageList, query, nil, true, &page); err != nil {
			return nil, fmt.Errorf("device list request failed: %w", err)
		}
		if err := metaError("pagelist", page.Meta); err != nil {
			return nil, err
		}

		groupPage(&page, records)

		if !page.Page.HasNext {
			break
		}
	}

	c.logger.Debug("Fetched device list", zap.Int("devices", len(records)))
	return records, nil
}

// SwitchStatus sets switch capability switchType of a device to enable (0 or 1).
func (c *Client) SwitchStatus(ctx context.Context, serial string, switchType, enable int) error {
	path := fmt.Sprintf("%s%s/1/%d/%d/switchStatus", endpointDevices, url.PathEscape(serial), enable, switchType)

	var resp statusResponse
	if err := c.do(ctx, http.MethodPut, path, nil, url.Values{}, true, &resp); err != nil {
		return fmt.Errorf("switch status request failed: %w", err)
	}
	if err := metaError("switchStatus", resp.Meta); err != nil {
		return err
	}

	c.logger.Debug("Switch status set",
		zap.String("serial", serial),
		zap.Int("type", switchType),
		zap.Int("enable", enable))
	return nil
}

// SessionID returns the current session token, empty before login
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) domain() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiDomain
}

// do performs a request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, authed bool, out interface{}) error {
	sessionID := c.SessionID()
	if authed && sessionID == "" {
		return ErrNotLoggedIn
	}

	u := url.URL{Scheme: c.scheme, Host: c.domain(), Path: path}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("featureCode", c.featureCode)
	req.Header.Set("clientType", "3")
	req.Header.Set("customno", "1000001")
	req.Header.Set("clientNo", "web_site")
	req.Header.Set("appId", "ys7")
	req.Header.Set("lang", "en")
	req.Header.Set("User-Agent", "okhttp/3.12.1")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if authed {
		req.Header.Set("sessionId", sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{Endpoint: path, Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// groupPage attaches every per-serial group of a page to its device record.
func groupPage(page *PageListResponse, into map[string]DeviceRecord) {
	perSerial := make(map[string]map[string]interface{}, len(page.Groups))
	names := make([]string, 0, len(page.Groups))
	for name, raw := range page.Groups {
		var bySerial map[string]interface{}
		if err := json.Unmarshal(raw, &bySerial); err != nil {
			// Not keyed by serial (lists, scalars); nothing to attach.
			continue
		}
		perSerial[name] = bySerial
		names = append(names, name)
	}
	sort.Strings(names)

	for _, device := range page.DeviceInfos {
		serial, _ := device["deviceSerial"].(string)
		if serial == "" {
			continue
		}

		record := DeviceRecord{GroupDeviceInfos: device}

		for _, resource := range page.ResourceInfos {
			if resource["deviceSerial"] == serial {
				record[GroupResourceInfos] = resource
				break
			}
		}

		for _, name := range names {
			if value, ok := perSerial[name][serial]; ok {
				record[name] = value
			}
		}

		into[serial] = record
	}
}
