package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/idocore/internal/api"
)

// DefaultServer is the API base URL used when --server is not given.
const DefaultServer = "http://localhost:8080"

// Reply is an executed operation as reported by the server.
type Reply struct {
	RequestID string          `json:"request_id"`
	Seq       int64           `json:"seq"`
	EntryID   string          `json:"entry_id"`
	Result    json.RawMessage `json:"result"`
}

// RemoteError is a rejected operation. Body carries the domain error code.
type RemoteError struct {
	Status    int
	RequestID string
	Body      api.ErrorBody
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Body.Code, e.Body.Message)
}

// Client talks to a running idocore server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServer
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				IdleConnTimeout:       10 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Invoke runs the operation kind with raw JSON args. An empty requestID
// lets the server choose one.
func (c *Client) Invoke(ctx context.Context, kind string, args json.RawMessage, requestID string) (*Reply, error) {
	return c.post(ctx, "/api/v1/operations/"+kind, args, requestID)
}

// CreateProject submits a project definition.
func (c *Client) CreateProject(ctx context.Context, def any, requestID string) (*Reply, error) {
	body, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("error marshaling definition: %w", err)
	}
	return c.post(ctx, "/api/v1/projects", body, requestID)
}

func (c *Client) post(ctx context.Context, path string, body []byte, requestID string) (*Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set(api.RequestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		remote := &RemoteError{Status: resp.StatusCode, RequestID: resp.Header.Get(api.RequestIDHeader)}
		if err := json.Unmarshal(data, &remote.Body); err != nil || remote.Body.Code == "" {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(data))
		}
		return nil, remote
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	return &reply, nil
}
