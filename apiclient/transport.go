package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/services"
)

// Transport carries one request to the API and returns the raw answer. A
// non-nil error means no answer was received.
type Transport interface {
	Do(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error)
}

// BackendTransport calls the upstream directly with the caller's token. The
// web app uses it when rendering pages.
type BackendTransport struct {
	Backend *services.BackendService
	Token   string
}

func (bt BackendTransport) Do(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	resp, err := bt.Backend.Do(ctx, services.BackendRequest{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
		Token:  bt.Token,
	})
	if err != nil {
		return 0, nil, err
	}
	return resp.Status, resp.Body, nil
}

// ProxyTransport goes through the web app's /api routes, the same way the
// browser does. The access_token cookie lives in the client's jar.
type ProxyTransport struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewProxyTransport returns a transport with its own cookie jar.
func NewProxyTransport(baseURL string) *ProxyTransport {
	jar, _ := cookiejar.New(nil)
	return &ProxyTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}
}

func proxyRoute(method string) (string, error) {
	switch method {
	case http.MethodGet:
		return "/api/get", nil
	case http.MethodPost, http.MethodPut:
		return "/api/save", nil
	case http.MethodDelete:
		return "/api/delete", nil
	}
	return "", fmt.Errorf("method %s is not proxied", method)
}

func (pt *ProxyTransport) Do(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	route, err := proxyRoute(method)
	if err != nil {
		return 0, nil, err
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("url", path)

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, pt.BaseURL+route+"?"+q.Encode(), rdr)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return pt.send(req)
}

// Login calls /api/login; on success the cookie is stored in the jar.
func (pt *ProxyTransport) Login(ctx context.Context, username, password string) (*models.Session, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pt.BaseURL+"/api/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := pt.send(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, newError(status, body)
	}
	var s models.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &s, nil
}

// Logout clears the session on the web app.
func (pt *ProxyTransport) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pt.BaseURL+"/api/logout", nil)
	if err != nil {
		return err
	}
	status, body, err := pt.send(req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return newError(status, body)
	}
	return nil
}

func (pt *ProxyTransport) send(req *http.Request) (int, []byte, error) {
	resp, err := pt.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, b, nil
}
