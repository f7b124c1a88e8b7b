package services

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
	"time"

	"github.com/yeremiapane/restaurant-pos/models"
)

// MsgInvalidToken is shown to users whenever the upstream rejects a token.
const MsgInvalidToken = "Token Invalido"

var (
	ErrUnauthorized = errors.New(MsgInvalidToken)
	ErrBadPath      = errors.New("url must be an absolute upstream path")
)

// UpstreamError is a non-2xx answer from the upstream API.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("upstream %d", e.Status)
}

// Decoded returns the body as decoded JSON, or as a plain string when it is
// not JSON.
func (e *UpstreamError) Decoded() interface{} {
	return DecodeBody(e.Body)
}

// Message extracts a human readable message: the "detail", "error" or
// "message" field of a JSON object, or the raw text.
func (e *UpstreamError) Message() string {
	return MessageOf(e.Decoded())
}

// BackendRequest describes one call to the upstream API.
type BackendRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	// ContentType defaults to application/json when Body is set.
	ContentType string
	Token       string
}

type BackendResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *BackendResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// BackendService talks to the external REST API.
type BackendService struct {
	baseURL    string
	httpClient *http.Client
}

func NewBackendService(baseURL string, timeout time.Duration) *BackendService {
	return &BackendService{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewBackendServiceWithClient is used by tests to point at an httptest server.
func NewBackendServiceWithClient(baseURL string, client *http.Client) *BackendService {
	return &BackendService{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (bs *BackendService) BaseURL() string { return bs.baseURL }

// CleanPath validates a caller supplied upstream path. Only absolute paths
// below the API root are accepted, so a proxied request can never leave the
// configured host.
func CleanPath(p string) (string, error) {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "", ErrBadPath
	}
	if strings.Contains(p, "://") || strings.Contains(p, "\\") {
		return "", ErrBadPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrBadPath
		}
	}
	return p, nil
}

// Do performs the request. A non-nil error means the upstream could not be
// reached; HTTP error statuses are returned in the response.
func (bs *BackendService) Do(ctx context.Context, r BackendRequest) (*BackendResponse, error) {
	path, err := CleanPath(r.Path)
	if err != nil {
		return nil, err
	}

	target := bs.baseURL + path
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		ct := r.ContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	return &BackendResponse{Status: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// IssueToken exchanges credentials for an access token (POST /token).
func (bs *BackendService) IssueToken(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := bs.Do(ctx, BackendRequest{
		Method:      http.MethodPost,
		Path:        "/token",
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &UpstreamError{Status: resp.Status, Body: resp.Body}
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("error unmarshaling token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("token response without access_token")
	}
	return out.AccessToken, nil
}

// ValidateToken resolves an access token into the user profile and WS token
// (GET /validate_token). An upstream 401 yields ErrUnauthorized.
func (bs *BackendService) ValidateToken(ctx context.Context, token string) (*models.Session, error) {
	resp, err := bs.Do(ctx, BackendRequest{
		Method: http.MethodGet,
		Path:   "/validate_token",
		Token:  token,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if !resp.OK() {
		return nil, &UpstreamError{Status: resp.Status, Body: resp.Body}
	}

	var session models.Session
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("error unmarshaling session: %w", err)
	}
	return &session, nil
}

// DecodeBody decodes JSON, falling back to the trimmed text.
func DecodeBody(b []byte) interface{} {
	if len(bytes.TrimSpace(b)) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return strings.TrimSpace(string(b))
	}
	return v
}

// MessageOf turns a decoded error body into a display string.
func MessageOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		for _, k := range []string{"detail", "error", "message"} {
			if s, ok := t[k]; ok {
				if msg := MessageOf(s); msg != "" {
					return msg
				}
			}
		}
	}
	if v == nil {
		return ""
	}
	b, _ := json.Marshal(v)
	return string(b)
}
