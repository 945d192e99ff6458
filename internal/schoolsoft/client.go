// Package schoolsoft implements the HTTP client for the SchoolSoft REST
// endpoints this engine consumes. It maps transport and status failures to
// the sentinel errors the session and sync layers switch on.
package schoolsoft

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// LoginType 4 is the app login flow; other values select web flows we never use.
const loginType = "4"

// ClientConfig carries the header metadata the service expects on
// authenticated requests, plus the directory base URL.
type ClientConfig struct {
	BaseURL    string
	AppVersion string
	AppOS      string
	DeviceID   string
}

// Client talks to a SchoolSoft installation. Outbound calls are rate limited
// so a misbehaving refresh schedule cannot hammer the service.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	config     ClientConfig
}

// NewClient constructs a Client. A nil httpClient gets a 15 second timeout
// default; a nil logger falls back to slog.Default.
func NewClient(config ClientConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		// One request per second with a small burst covers a full
		// login+token+lessons cycle without delay.
		limiter: rate.NewLimiter(rate.Every(time.Second), 4),
		logger:  logger,
		config:  config,
	}
}

// Schools fetches the public school directory.
func (c *Client) Schools(ctx context.Context) ([]School, error) {
	req, err := c.newRequest(ctx, http.MethodGet, joinURL(c.config.BaseURL, "/rest/app/schoollist/prod"), nil)
	if err != nil {
		return nil, err
	}

	var schools []School
	if err := c.do(req, &schools); err != nil {
		return nil, err
	}
	return schools, nil
}

// Login exchanges credentials for an app key.
func (c *Client) Login(ctx context.Context, schoolURL, identification, verification string, userType int) (LoginResponse, error) {
	form := url.Values{}
	form.Set("identification", identification)
	form.Set("verification", verification)
	form.Set("logintype", loginType)
	form.Set("usertype", fmt.Sprintf("%d", userType))

	req, err := c.newRequest(ctx, http.MethodPost, joinURL(schoolURL, "/rest/app/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return LoginResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp LoginResponse
	if err := c.do(req, &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// RequestToken exchanges an app key for a fresh session token.
func (c *Client) RequestToken(ctx context.Context, schoolURL, appKey string) (TokenResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, joinURL(schoolURL, "/rest/app/token"), nil)
	if err != nil {
		return TokenResponse{}, err
	}
	c.setDeviceHeaders(req)
	req.Header.Set("appkey", appKey)

	var resp TokenResponse
	if err := c.do(req, &resp); err != nil {
		return TokenResponse{}, err
	}
	return resp, nil
}

// StudentLessons fetches the raw timetable for one organization.
func (c *Client) StudentLessons(ctx context.Context, schoolURL, token string, orgID int) ([]LessonRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, joinURL(schoolURL, fmt.Sprintf("/api/lessons/student/%d", orgID)), nil)
	if err != nil {
		return nil, err
	}
	c.setDeviceHeaders(req)
	req.Header.Set("token", token)

	var records []LessonRecord
	if err := c.do(req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, method, endpoint, body)
}

func (c *Client) setDeviceHeaders(req *http.Request) {
	req.Header.Set("appversion", c.config.AppVersion)
	req.Header.Set("appos", c.config.AppOS)
	req.Header.Set("deviceid", c.config.DeviceID)
}

// do executes the request and decodes a JSON payload into out. All failure
// shapes collapse to the package sentinels so callers never inspect status
// codes themselves.
func (c *Client) do(req *http.Request, out any) error {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("schoolsoft request failed", "method", req.Method, "url", req.URL.Path, "error", err)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("schoolsoft request completed",
		"method", req.Method,
		"url", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(started),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidAuth
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("schoolsoft: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return ErrEmptyBody
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("schoolsoft: decoding response: %w", err)
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
