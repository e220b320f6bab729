package netbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrNotFound is returned by First when the filter matches nothing.
var ErrNotFound = errors.New("object not found")

// APIError is returned for any non-2xx answer of NetBox.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type listResponse struct {
	Count   int      `json:"count"`
	Results []Object `json:"results"`
}

// Client is a minimal NetBox REST client: filtered lookup, create and partial update.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *zap.SugaredLogger
}

func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid NetBox URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    u,
		token:      token,
		httpClient: httpClient,
		validate:   validator.New(),
		logger:     zap.S().Named("netbox"),
	}, nil
}

// First returns the first object of endpoint matching filter, or ErrNotFound.
func (c *Client) First(ctx context.Context, endpoint string, filter url.Values) (*Object, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, c.endpointURL(endpoint, filter), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Results[0], nil
}

// Create validates payload and POSTs it to endpoint.
func (c *Client) Create(ctx context.Context, endpoint string, payload any) (*Object, error) {
	if err := c.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", endpoint, err)
	}
	var obj Object
	if err := c.do(ctx, http.MethodPost, c.endpointURL(endpoint, nil), payload, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// Update PATCHes the object id of endpoint with payload.
func (c *Client) Update(ctx context.Context, endpoint string, id int, payload any) (*Object, error) {
	if err := c.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", endpoint, err)
	}
	var obj Object
	if err := c.do(ctx, http.MethodPatch, c.endpointURL(fmt.Sprintf("%s/%d", endpoint, id), nil), payload, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

func (c *Client) endpointURL(endpoint string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/" + strings.Trim(endpoint, "/") + "/"
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, payload, dst any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call NetBox: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debugw("NetBox API error", "method", method, "url", target, "status", resp.StatusCode, "body", string(respBody))
		return &APIError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if dst == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", target, err)
	}
	return nil
}
