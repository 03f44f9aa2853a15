// Package appliance talks to the pfSense REST API v2. Every call is a live request;
// the client keeps no state besides its HTTP connection pool.
package appliance

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/common/metrics"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// Error message constants for consistent error handling
const (
	errURLRequired      = "appliance url is required"
	errURLInvalid       = "invalid appliance url %q: %w"
	errEncodeFailed     = "encode %s request: %w"
	errBuildFailed      = "build %s request: %w"
	errRequestFailed    = "%s %s failed"
	errStatus           = "%s %s returned %d: %s"
	errDecodeFailed     = "decode %s response: %w"
	errUnknownSubsystem = "unknown subsystem %q"
)

const (
	apiPrefix      = "/api/v2"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 16 << 20
)

// Options configures a Client.
type Options struct {
	// required parameters
	URL      string
	Username string
	Password string
	// optional parameters
	InsecureTLS bool
	Timeout     time.Duration
	Logger      log.Logger
	Metrics     *metrics.Registry
	// inject for testing purposes
	HTTPClient *http.Client
}

// Client implements the appliance ports of every service.
type Client struct {
	base     *url.URL
	username string
	password string
	http     *http.Client
	timeout  time.Duration
	logger   log.Logger
	metrics  *metrics.Registry
}

// NewClient validates opts and builds a client. The TLS check is skipped only when
// InsecureTLS is set, which self-signed appliance certificates usually require.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf(errURLRequired)
	}
	base, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf(errURLInvalid, opts.URL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf(errURLInvalid, opts.URL, fmt.Errorf("scheme must be http or https"))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.HTTPClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed appliances
		}
		opts.HTTPClient = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}
	return &Client{
		base:     base,
		username: opts.Username,
		password: opts.Password,
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// envelope is the wrapper every API v2 response uses.
type envelope struct {
	Code    int             `json:"code"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do performs one request bounded by the client timeout. endpoint is the path below
// /api/v2 and doubles as the metrics label, so it must not contain ids or query values.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out any) (err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveAppliance(endpoint, started, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf(errEncodeFailed, endpoint, mErr)
		}
		reader = bytes.NewReader(payload)
	}

	u := *c.base
	u.Path = c.base.Path + apiPrefix + endpoint
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf(errBuildFailed, endpoint, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(map[string]any{"method": method, "endpoint": endpoint, "error": err}, "Appliance request failed")
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, err, errRequestFailed, method, endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, err, errRequestFailed, method, endpoint)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn(map[string]any{
			"method":   method,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"message":  msg,
		}, "Appliance rejected request")
		return domain.NewError(domain.ErrKindUpstreamUnavailable, errStatus, method, endpoint, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, decodeErr, "decode %s response", endpoint)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, fmt.Errorf(errDecodeFailed, endpoint, err), "unexpected appliance response")
	}
	return nil
}

func idQuery(id int) url.Values {
	return url.Values{"id": []string{strconv.Itoa(id)}}
}
