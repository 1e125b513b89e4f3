package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// HTTPTransport implements EventsTransport over the HTTP API.
type HTTPTransport struct {
	base   string
	client *http.Client
}

// NewHTTPTransport returns a transport rooted at base (e.g. http://127.0.0.1:8080).
func NewHTTPTransport(base string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: base, client: client}
}

// Publish posts an event to /v1/events/publish.
func (t *HTTPTransport) Publish(ctx context.Context, schema, route string, payload json.RawMessage) (Report, error) {
	body, err := json.Marshal(map[string]any{"schema": schema, "route": route, "payload": payload})
	if err != nil {
		return Report{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/v1/events/publish", bytes.NewReader(body))
	if err != nil {
		return Report{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var rep Report
	err = t.do(req, &rep)
	return rep, err
}

// Recent reads journaled events from /v1/events.
func (t *HTTPTransport) Recent(ctx context.Context, schema, route string, limit int) ([]Event, error) {
	q := url.Values{}
	if schema != "" {
		q.Set("schema", schema)
	}
	q.Set("route", route)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+"/v1/events?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Events []Event `json:"events"`
	}
	err = t.do(req, &out)
	return out.Events, err
}

func (t *HTTPTransport) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
