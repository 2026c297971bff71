package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/storacha/devchain/pkg/admin/httpapi"
)

type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
}

type Option func(*Client) error

// WithHTTPClient replaces the underlying HTTP client (for custom timeouts, tracing, etc.).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// New constructs a management API client.
func New(endpoint *url.URL, opts ...Option) (*Client, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("endpoint is required")
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// NewFromAddr builds a client for the management API listening on a host:port address.
func NewFromAddr(addr string, opts ...Option) (*Client, error) {
	endpoint, err := url.Parse("http://" + addr)
	if err != nil {
		return nil, fmt.Errorf("parsing management API address: %w", err)
	}
	return New(endpoint, opts...)
}

// ListLogLevels fetches the loggers whose name starts with prefix, all of them when
// prefix is empty, and their levels.
func (c *Client) ListLogLevels(ctx context.Context, prefix string) (map[string]string, error) {
	route := c.route(httpapi.LogRoutePath, "/list")
	if prefix != "" {
		route += "?" + url.Values{httpapi.LogPrefixParam: {prefix}}.Encode()
	}

	var resp httpapi.ListLogLevelsResponse
	if err := c.getJSON(ctx, route, &resp); err != nil {
		return nil, err
	}

	return resp.Loggers, nil
}

// SetLogLevel sets the log level for a specific subsystem.
func (c *Client) SetLogLevel(ctx context.Context, system, level string) error {
	if system == "" {
		return fmt.Errorf("system is required")
	}
	if level == "" {
		return fmt.Errorf("level is required")
	}

	route := c.route(httpapi.LogRoutePath, "/set")
	return c.verifySuccess(c.postJSON(ctx, route, httpapi.SetLogLevelRequest{
		System: system,
		Level:  level,
	}))
}

// SetLogLevelRegex sets the log level of every subsystem matching expression and
// returns the subsystems it changed.
func (c *Client) SetLogLevelRegex(ctx context.Context, expression, level string) (map[string]string, error) {
	route := c.route(httpapi.LogRoutePath, "/set-regex")
	res, err := c.postJSON(ctx, route, httpapi.SetLogLevelRegexRequest{
		Expression: expression,
		Level:      level,
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, errFromResponse(res)
	}

	var resp httpapi.SetLogLevelResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response JSON: %w", err)
	}
	return resp.Loggers, nil
}

// Status reports the state of the chain.
func (c *Client) Status(ctx context.Context) (*httpapi.StatusResponse, error) {
	var resp httpapi.StatusResponse
	if err := c.getJSON(ctx, c.route(httpapi.ChainRoutePath, "/status"), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop stops the chain. Stopping a chain that is already stopped succeeds with
// Stopped set to false.
func (c *Client) Stop(ctx context.Context) (*httpapi.StopResponse, error) {
	res, err := c.postJSON(ctx, c.route(httpapi.ChainRoutePath, "/stop"), nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, errFromResponse(res)
	}
	var resp httpapi.StopResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response JSON: %w", err)
	}
	return &resp, nil
}

func (c *Client) route(group, path string) string {
	return c.endpoint.JoinPath(httpapi.AdminRoutePath, group, path).String()
}

func (c *Client) sendRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("generating http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return res, nil
}

func (c *Client) postJSON(ctx context.Context, url string, params interface{}) (*http.Response, error) {
	var body io.Reader
	if params != nil {
		asBytes, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding request parameters: %w", err)
		}
		body = bytes.NewReader(asBytes)
	}

	return c.sendRequest(ctx, http.MethodPost, url, body)
}

func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	res, err := c.sendRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return errFromResponse(res)
	}
	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response JSON: %w", err)
	}
	return nil
}

func (c *Client) verifySuccess(res *http.Response, err error) error {
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return errFromResponse(res)
	}
	return nil
}

type ErrFailedResponse struct {
	StatusCode int
	Body       string
}

func errFromResponse(res *http.Response) ErrFailedResponse {
	err := ErrFailedResponse{StatusCode: res.StatusCode}

	message, merr := io.ReadAll(res.Body)
	if merr != nil {
		err.Body = merr.Error()
	} else {
		err.Body = string(message)
	}
	return err
}

func (e ErrFailedResponse) Error() string {
	return fmt.Sprintf("http request received unexpected status: %d %s, message: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}
