// Package client talks to a running mock MES over HTTP.
//
// [Client] implements command.Backend, so the CLI and the chat loop drive a
// remote store exactly as they would drive an in-process mes.Service. Error
// responses are turned back into errors carrying the server's fault kind, so
// errors.Is(err, fault.ErrNotFound) works on both sides of the wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"mockmes/internal/fault"
	"mockmes/internal/routing"
	"mockmes/internal/sfc"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 5 * time.Second

// Client is an HTTP client for the mock MES API.
//
// Create instances with [New].
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// CreateRouting calls POST /routing.
func (c *Client) CreateRouting(ctx context.Context, operations *int) (routing.Routing, error) {
	var body any
	if operations != nil {
		body = map[string]int{"operations": *operations}
	}
	var r routing.Routing
	err := c.do(ctx, http.MethodPost, "/routing", body, &r)
	return r, err
}

// GetRouting calls GET /routing/{id}.
func (c *Client) GetRouting(ctx context.Context, routingID string) (routing.Routing, error) {
	var r routing.Routing
	err := c.do(ctx, http.MethodGet, "/routing/"+url.PathEscape(routingID), nil, &r)
	return r, err
}

// ListRoutings calls GET /routings. The server returns a map, so routings
// come back ordered by id ordinal.
func (c *Client) ListRoutings(ctx context.Context) ([]routing.Routing, error) {
	var m map[string]routing.Operations
	if err := c.do(ctx, http.MethodGet, "/routings", nil, &m); err != nil {
		return nil, err
	}
	out := make([]routing.Routing, 0, len(m))
	for id, ops := range m {
		out = append(out, routing.Routing{ID: id, Operations: ops})
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

// CreateSFC calls POST /sfc.
func (c *Client) CreateSFC(ctx context.Context) (sfc.Record, error) {
	var rec sfc.Record
	err := c.do(ctx, http.MethodPost, "/sfc", nil, &rec)
	return rec, err
}

// AssignRouting calls POST /sfc/{id}/assign_routing.
func (c *Client) AssignRouting(ctx context.Context, sfcID, routingID string) (sfc.Record, error) {
	var rec sfc.Record
	err := c.do(ctx, http.MethodPost, sfcPath(sfcID, "assign_routing"), map[string]string{"routing_id": routingID}, &rec)
	return rec, err
}

// Advance calls POST /sfc/{id}/advance.
func (c *Client) Advance(ctx context.Context, sfcID string) (sfc.Transition, error) {
	return c.transition(ctx, sfcID, "advance", nil)
}

// Complete calls POST /sfc/{id}/complete.
func (c *Client) Complete(ctx context.Context, sfcID string) (sfc.Transition, error) {
	return c.transition(ctx, sfcID, "complete", nil)
}

// Rollback calls POST /sfc/{id}/rollback.
func (c *Client) Rollback(ctx context.Context, sfcID string, step int) (sfc.Transition, error) {
	return c.transition(ctx, sfcID, "rollback", map[string]int{"step": step})
}

// RollbackSingle calls POST /sfc/{id}/rollback_single.
func (c *Client) RollbackSingle(ctx context.Context, sfcID string) (sfc.Transition, error) {
	return c.transition(ctx, sfcID, "rollback_single", nil)
}

// ForceAdvance calls POST /sfc/{id}/force_advance.
func (c *Client) ForceAdvance(ctx context.Context, sfcID string, step int) (sfc.Transition, error) {
	return c.transition(ctx, sfcID, "force_advance", map[string]int{"step": step})
}

// GetSFC calls GET /sfc/{id}.
func (c *Client) GetSFC(ctx context.Context, sfcID string) (sfc.Record, error) {
	var rec sfc.Record
	err := c.do(ctx, http.MethodGet, sfcPath(sfcID, ""), nil, &rec)
	return rec, err
}

// GetRoutingState calls GET /sfc/{id}/routing_state.
func (c *Client) GetRoutingState(ctx context.Context, sfcID string) (sfc.RoutingState, error) {
	var rs sfc.RoutingState
	err := c.do(ctx, http.MethodGet, sfcPath(sfcID, "routing_state"), nil, &rs)
	return rs, err
}

// ListSFCs calls GET /sfcs, ordered by id ordinal.
func (c *Client) ListSFCs(ctx context.Context) ([]sfc.Record, error) {
	var m map[string]sfc.Record
	if err := c.do(ctx, http.MethodGet, "/sfcs", nil, &m); err != nil {
		return nil, err
	}
	out := make([]sfc.Record, 0, len(m))
	for id, rec := range m {
		rec.ID = id
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

// History calls GET /sfc/{id}/history.
func (c *Client) History(ctx context.Context, sfcID string) ([]sfc.Entry, error) {
	var body struct {
		Entries []sfc.Entry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, sfcPath(sfcID, "history"), nil, &body); err != nil {
		return nil, err
	}
	return body.Entries, nil
}

func (c *Client) transition(ctx context.Context, sfcID, action string, body any) (sfc.Transition, error) {
	var t sfc.Transition
	err := c.do(ctx, http.MethodPost, sfcPath(sfcID, action), body, &t)
	return t, err
}

func sfcPath(sfcID, action string) string {
	p := "/sfc/" + url.PathEscape(sfcID)
	if action != "" {
		p += "/" + action
	}
	return p
}

// errorBody mirrors the server's error response.
type errorBody struct {
	Error string     `json:"error"`
	Kind  fault.Kind `json:"kind"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		var eb errorBody
		if json.Unmarshal(data, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(data))
			if eb.Error == "" {
				eb.Error = resp.Status
			}
		}
		if eb.Kind == "" {
			eb.Kind = kindForStatus(resp.StatusCode)
		}
		return fault.FromKind(eb.Kind, eb.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func kindForStatus(code int) fault.Kind {
	switch code {
	case http.StatusNotFound:
		return fault.KindNotFound
	case http.StatusBadRequest:
		return fault.KindInvalidArgument
	case http.StatusConflict:
		return fault.KindFailedPrecondition
	default:
		return fault.KindInternal
	}
}

// idLess orders "PREFIX12" ids by prefix and then by numeric suffix, so
// SFCMOCK2 sorts before SFCMOCK10.
func idLess(a, b string) bool {
	pa, na := splitID(a)
	pb, nb := splitID(b)
	if pa != pb {
		return pa < pb
	}
	if len(na) != len(nb) {
		return len(na) < len(nb)
	}
	return na < nb
}

func splitID(id string) (prefix, digits string) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	return id[:i], id[i:]
}
