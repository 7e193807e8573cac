// Package anchorclient is a Go client for the anchord REST API.
package anchorclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with anchord.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Attribute mirrors an execute/instantiate response attribute.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is returned by execute and instantiate.
type Response struct {
	Attributes []Attribute `json:"attributes"`
}

// Attr returns the value of the named attribute.
func (r Response) Attr(key string) (string, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Entry is a registered anchor.
type Entry struct {
	HashHex      string `json:"hash_hex"`
	AnchorType   string `json:"anchor_type"`
	RegisteredAt uint64 `json:"registered_at"`
	Registrant   string `json:"registrant"`
}

// VerifyResponse is returned by verify and get_anchor queries.
type VerifyResponse struct {
	Exists  bool   `json:"exists"`
	HashHex string `json:"hash_hex"`
	Entry   *Entry `json:"entry"`
}

// ConfigResponse is returned by get_config.
type ConfigResponse struct {
	Admin        string `json:"admin"`
	TotalAnchors uint64 `json:"total_anchors"`
}

// SealedPayload is the result of building a canonical payload.
type SealedPayload struct {
	Kind        string          `json:"kind"`
	AnchorType  string          `json:"anchor_type"`
	Canonical   string          `json:"canonical"`
	PayloadHash string          `json:"payload_hash"`
	Fields      json.RawMessage `json:"fields"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("anchord api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("anchord api error (%d): %s", e.StatusCode, e.Message)
}

// ErrorCode extracts the server error code from err, if any.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// NewClient instantiates a client. When httpClient is nil a default client
// with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken overrides the stored bearer token.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Register submits a register_<anchorType> execute message.
func (c *Client) Register(ctx context.Context, anchorType string, hash []byte) (Response, error) {
	msg := map[string]any{"register_" + anchorType: map[string]any{"hash": hash}}
	return c.Execute(ctx, msg)
}

// Execute posts an arbitrary execute message.
func (c *Client) Execute(ctx context.Context, msg any) (Response, error) {
	var resp Response
	if err := c.post(ctx, "/api/v1/execute", msg, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Instantiate initialises the remote registry.
func (c *Client) Instantiate(ctx context.Context, admin string) (Response, error) {
	body := map[string]any{}
	if admin != "" {
		body["admin"] = admin
	}
	var resp Response
	if err := c.post(ctx, "/api/v1/instantiate", body, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Verify looks a hash up in the namespace of anchorType.
func (c *Client) Verify(ctx context.Context, anchorType string, hash []byte) (VerifyResponse, error) {
	var resp VerifyResponse
	endpoint := path.Join("/api/v1/anchors", url.PathEscape(anchorType), hex.EncodeToString(hash))
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return VerifyResponse{}, err
	}
	return resp, nil
}

// Config returns the remote registry configuration.
func (c *Client) Config(ctx context.Context) (ConfigResponse, error) {
	var resp ConfigResponse
	if err := c.get(ctx, "/api/v1/config", &resp); err != nil {
		return ConfigResponse{}, err
	}
	return resp, nil
}

// BuildPayload asks the server to seal a payload of kind from fields.
func (c *Client) BuildPayload(ctx context.Context, kind string, fields any) (SealedPayload, error) {
	var resp SealedPayload
	if err := c.post(ctx, "/api/v1/payloads", map[string]any{"kind": kind, "fields": fields}, &resp); err != nil {
		return SealedPayload{}, err
	}
	return resp, nil
}

// Health reports whether the daemon answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: &apiErr}); err != nil {
				_ = json.Unmarshal(data, &apiErr)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
