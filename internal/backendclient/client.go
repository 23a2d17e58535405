// Package backendclient talks to the prayer API over HTTP on behalf of the terminal client.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/prayer/internal/api"
	"example.com/prayer/internal/auth"
	"example.com/prayer/internal/domain"
)

// ErrSessionExpired is returned when an admin call is made with an expired session.
var ErrSessionExpired = errors.New("admin session expired")

// APIError is a non-success response carrying the JSON error envelope.
type APIError struct {
	Status int
	Type   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("prayer api: status %d", e.Status)
	}
	return fmt.Sprintf("prayer api: %s (%d): %s", e.Type, e.Status, e.Detail)
}

// Client implements the synchronizer backend contract plus the admin calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	streamHTTP *http.Client
	now        func() time.Time
}

// New constructs a Client. timeout bounds every request except the change stream.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		streamHTTP: &http.Client{},
		now:        time.Now,
	}
}

// SelectAggregates returns the totals known to the backend.
func (c *Client) SelectAggregates(ctx context.Context) ([]domain.Aggregate, error) {
	var resp api.AggregatesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/aggregates", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SelectRecentEntries returns the newest entry times for deviceHash.
func (c *Client) SelectRecentEntries(ctx context.Context, deviceHash string, limit int) ([]domain.RecentEntry, error) {
	q := url.Values{}
	q.Set("device_hash", deviceHash)
	q.Set("limit", strconv.Itoa(limit))

	var resp api.RecentEntriesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/entries/recent?"+q.Encode(), nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// InsertEntry submits one entry. A cooldown rejection is returned as *domain.CooldownError.
func (c *Client) InsertEntry(ctx context.Context, entry domain.NewEntry) error {
	return c.do(ctx, http.MethodPost, "/v1/entries", entry, "", nil)
}

// Login exchanges the admin password for a session.
func (c *Client) Login(ctx context.Context, password string) (*auth.AdminSession, error) {
	var session auth.AdminSession
	if err := c.do(ctx, http.MethodPost, api.SessionPath, api.SessionRequest{Password: password}, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Adjust records admin adjustments keyed by activity type id and returns how many were written.
func (c *Client) Adjust(ctx context.Context, session *auth.AdminSession, adjustments map[int]int64) (int, error) {
	if !session.Valid(c.now()) {
		return 0, ErrSessionExpired
	}
	var resp api.AdjustmentsResponse
	err := c.do(ctx, http.MethodPost, api.AdminPrefix+"adjustments", api.AdjustmentsRequest{Adjustments: adjustments}, session.Token, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Applied, nil
}

// Entries pages through the admin feed, newest first.
func (c *Client) Entries(ctx context.Context, session *auth.AdminSession, cursor string, limit int) (*api.AdminEntriesResponse, error) {
	if !session.Valid(c.now()) {
		return nil, ErrSessionExpired
	}
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := api.AdminPrefix + "entries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.AdminEntriesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, session.Token, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var envelope api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &envelope)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		remaining := envelope.RetryAfterSeconds
		if remaining == 0 {
			remaining, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
		}
		return &domain.CooldownError{Remaining: remaining}
	case http.StatusUnauthorized:
		if envelope.Type == "invalid_credentials" {
			return auth.ErrInvalidCredentials
		}
	}

	apiErr := &APIError{Status: resp.StatusCode, Type: envelope.Type, Detail: envelope.Detail}
	if apiErr.Type == "" {
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	return apiErr
}
