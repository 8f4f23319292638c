package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"syncpair/internal/domain"
)

// HTTPClient is an ObjectStore backed by a remote server.
type HTTPClient struct {
	Base  string
	Token string
	HTTP  *http.Client
}

func NewHTTP(base, token string) *HTTPClient {
	return &HTTPClient{Base: base, Token: token, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

var _ domain.ObjectStore = (*HTTPClient)(nil)

type putRequest struct {
	Payload []byte `json:"payload"`
}

type putResponse struct {
	Modified time.Time `json:"modified"`
}

func (c *HTTPClient) Get(ctx context.Context, collection, id string) (domain.Object, error) {
	var out domain.Object
	if err := c.do(ctx, http.MethodGet, objectPath(collection, id), nil, &out); err != nil {
		return domain.Object{}, err
	}
	return out, nil
}

func (c *HTTPClient) Put(ctx context.Context, collection, id string, payload []byte) (time.Time, error) {
	var out putResponse
	if err := c.do(ctx, http.MethodPut, objectPath(collection, id), putRequest{Payload: payload}, &out); err != nil {
		return time.Time{}, err
	}
	return out.Modified, nil
}

func (c *HTTPClient) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, objectPath(collection, id), nil, nil)
}

func (c *HTTPClient) List(ctx context.Context, collection string, newer time.Time) (domain.Listing, error) {
	path := "/storage/" + url.PathEscape(collection)
	if !newer.IsZero() {
		path += "?newer=" + url.QueryEscape(newer.UTC().Format(time.RFC3339Nano))
	}
	var out domain.Listing
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.Listing{}, err
	}
	return out, nil
}

func objectPath(collection, id string) string {
	return "/storage/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("storage %s %s: %w", method, path, domain.ErrNotFound)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("storage %s %s: %s", method, path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
