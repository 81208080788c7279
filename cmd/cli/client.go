package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// apiError is a non-2xx response from the server
type apiError struct {
	Status  int
	Message string
	Kind    string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// apiClient talks to the server's JSON API
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		// inspections run yt-dlp and can take a while
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

// do sends body as JSON and decodes the response into out. It returns the
// HTTP status so callers can tell apart 200 and 201.
func (c *apiClient) do(method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Message: e.Error, Kind: e.Kind}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *apiClient) get(path string, out interface{}) error {
	_, err := c.do(http.MethodGet, path, nil, out)
	return err
}

func (c *apiClient) post(path string, body, out interface{}) (int, error) {
	return c.do(http.MethodPost, path, body, out)
}

func (c *apiClient) put(path string, body, out interface{}) error {
	_, err := c.do(http.MethodPut, path, body, out)
	return err
}

func (c *apiClient) delete(path string) error {
	_, err := c.do(http.MethodDelete, path, nil, nil)
	return err
}

// raw fetches path and returns the body untouched
func (c *apiClient) raw(path string) ([]byte, error) {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// dial opens a websocket to path on the same host
func (c *apiClient) dial(path string) (*websocket.Conn, error) {
	u, err := url.Parse(c.base + path)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u, err)
	}
	return conn, nil
}
