package awx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const apiPrefix = "/api/v2"

// APIError is returned for any non-2xx answer of the controller.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Host is a host object of an AWX inventory.
type Host struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Inventory   int    `json:"inventory"`
	// Variables is the raw YAML/JSON text stored on the host.
	Variables string `json:"variables"`
}

// Group is an inventory group a host belongs to.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// Client talks to the AWX v2 REST API with a bearer token.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid AWX URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    u,
		token:      token,
		httpClient: httpClient,
		logger:     zap.S().Named("awx"),
	}, nil
}

// InventoryHosts returns every host of the inventory, following pagination.
// A failure on any page fails the whole listing.
func (c *Client) InventoryHosts(ctx context.Context, inventoryID int) ([]Host, error) {
	c.logger.Infof("fetching hosts from AWX inventory %d", inventoryID)

	hosts, err := list[Host](ctx, c, fmt.Sprintf("%s/inventories/%d/hosts/", apiPrefix, inventoryID), nil)
	if err != nil {
		return nil, err
	}

	c.logger.Infof("retrieved %d hosts from AWX", len(hosts))
	return hosts, nil
}

// FindHost looks a host up by exact name. It returns nil when absent.
func (c *Client) FindHost(ctx context.Context, inventoryID int, name string) (*Host, error) {
	var p page[Host]
	path := fmt.Sprintf("%s/inventories/%d/hosts/", apiPrefix, inventoryID)
	if err := c.get(ctx, c.resolve(path, url.Values{"name": {name}}), &p); err != nil {
		return nil, err
	}
	for _, h := range p.Results {
		if h.Name == name {
			return &h, nil
		}
	}
	return nil, nil
}

// HostVariables returns the parsed variables of a host.
func (c *Client) HostVariables(ctx context.Context, hostID int) (map[string]any, error) {
	vars := map[string]any{}
	if err := c.get(ctx, c.resolve(fmt.Sprintf("%s/hosts/%d/variable_data/", apiPrefix, hostID), nil), &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// HostFacts returns the facts gathered by the last job that ran against the host.
func (c *Client) HostFacts(ctx context.Context, hostID int) (map[string]any, error) {
	facts := map[string]any{}
	if err := c.get(ctx, c.resolve(fmt.Sprintf("%s/hosts/%d/ansible_facts/", apiPrefix, hostID), nil), &facts); err != nil {
		return nil, err
	}
	return facts, nil
}

// HostGroups returns the groups the host is a direct member of.
func (c *Client) HostGroups(ctx context.Context, hostID int) ([]Group, error) {
	return list[Group](ctx, c, fmt.Sprintf("%s/hosts/%d/groups/", apiPrefix, hostID), nil)
}

func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var out []T
	next := c.resolve(path, query)
	seen := map[string]bool{}

	for next != "" {
		if seen[next] {
			return nil, fmt.Errorf("pagination loop detected at %s", next)
		}
		seen[next] = true

		var p page[T]
		if err := c.get(ctx, next, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Results...)

		next = ""
		if p.Next != nil && *p.Next != "" {
			next = c.resolveLink(*p.Next)
		}
	}
	return out, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// resolveLink turns the "next" link, usually host-relative, into an absolute URL.
func (c *Client) resolveLink(link string) string {
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return c.baseURL.ResolveReference(ref).String()
}

func (c *Client) get(ctx context.Context, target string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call AWX: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: http.MethodGet, URL: target, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", target, err)
	}
	return nil
}
