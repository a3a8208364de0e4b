// Package client talks to a running Aviator host over its REST and
// websocket endpoints.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harrylevesque/aviator/internal/models"
	"github.com/harrylevesque/aviator/internal/utils"
)

// DefaultServer is used when neither --server nor AVIATOR_SERVER is set.
const DefaultServer = "http://localhost:8000"

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServer
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type LaunchResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	PID     int    `json:"pid"`
}

type Info struct {
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Version  string `json:"version"`
	Clients  int    `json:"clients"`
}

// StatusError is a non-2xx reply. 404s map to utils.ErrNotFound.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return e.Code == http.StatusNotFound && target == utils.ErrNotFound
}

func (c *Client) ListApps(ctx context.Context) ([]models.App, error) {
	var apps []models.App
	err := c.do(ctx, http.MethodGet, "/api/apps", &apps)
	return apps, err
}

func (c *Client) Launch(ctx context.Context, id string) (LaunchResult, error) {
	var res LaunchResult
	err := c.do(ctx, http.MethodPost, "/api/launch/"+url.PathEscape(id), &res)
	return res, err
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.do(ctx, http.MethodGet, "/api/info", &info)
	return info, err
}

// Watch calls fn with every message the host pushes until ctx is done or
// the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(msg string)) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(string(data))
	}
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
