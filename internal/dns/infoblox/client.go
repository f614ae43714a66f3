package infoblox

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Settings describes how to reach a single appliance.
type Settings struct {
	Host          string
	Username      string
	Password      string
	WAPIVersion   string
	SkipTLSVerify bool
	Timeout       time.Duration
}

// Client issues authenticated WAPI calls against one appliance.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	log      logr.Logger
}

// APIError is returned for any non-2xx WAPI response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Text       string
}

func (e *APIError) Error() string {
	msg := e.Text
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("infoblox: %s %s returned status %d (%s): %s", e.Method, e.Path, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("infoblox: %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Retryable reports whether the appliance rejected the call for a transient reason.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewClient creates a WAPI client. Host and Username are required.
func NewClient(log logr.Logger, s Settings) (*Client, error) {
	if s.Host == "" {
		return nil, fmt.Errorf("infoblox: missing required setting 'host'")
	}
	if s.Username == "" {
		return nil, fmt.Errorf("infoblox: missing required setting 'username'")
	}
	version := strings.TrimPrefix(s.WAPIVersion, "v")
	if version == "" {
		version = "1.0"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	base := s.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	return &Client{
		baseURL:  fmt.Sprintf("%s/wapi/v%s/", strings.TrimRight(base, "/"), version),
		username: s.Username,
		password: s.Password,
		client:   &http.Client{Transport: transport, Timeout: s.Timeout},
		log:      log,
	}, nil
}

// BaseURL returns the WAPI root, e.g. "https://ib.example.com/wapi/v1.0/".
func (c *Client) BaseURL() string { return c.baseURL }

// doRequest builds and executes a WAPI request, decoding a 2xx body into out
// when out is non-nil.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("infoblox: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := c.baseURL + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("infoblox: build request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.V(1).Info("wapi request", "method", method, "path", path, "query", query.Encode())
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("infoblox: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("infoblox: read %s %s response: %w", method, path, err)
	}
	c.log.V(1).Info("wapi response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, path, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("infoblox: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, StatusCode: status}
	var wapiErr struct {
		Error string `json:"Error"`
		Code  string `json:"code"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(body, &wapiErr); err == nil {
		e.Code = wapiErr.Code
		e.Text = wapiErr.Text
		if e.Text == "" {
			e.Text = wapiErr.Error
		}
	}
	if e.Text == "" {
		e.Text = strings.TrimSpace(string(body))
	}
	return e
}

// Get searches object with the given filters and decodes the result list into out.
func (c *Client) Get(ctx context.Context, object string, query url.Values, out interface{}) error {
	return c.doRequest(ctx, http.MethodGet, object, query, nil, out)
}

// Post creates an object and returns the reference the appliance issued.
func (c *Client) Post(ctx context.Context, object string, body interface{}) (string, error) {
	var ref string
	if err := c.doRequest(ctx, http.MethodPost, object, nil, body, &ref); err != nil {
		return "", err
	}
	return ref, nil
}

// Put updates the object behind ref and returns its (possibly new) reference.
func (c *Client) Put(ctx context.Context, ref string, body interface{}) (string, error) {
	var out string
	if err := c.doRequest(ctx, http.MethodPut, ref, nil, body, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Delete removes the object behind ref.
func (c *Client) Delete(ctx context.Context, ref string) error {
	var out string
	return c.doRequest(ctx, http.MethodDelete, ref, nil, nil, &out)
}
