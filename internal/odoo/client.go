// Package odoo is a small JSON-RPC client for the Odoo HR models used by the
// sync: res.users, res.company, hr.job, hr.applicant and ir.attachment.
package odoo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTimeout bounds every HTTP round trip to the remote instance.
const DefaultTimeout = 30 * time.Second

// ErrAuthenticationFailed is returned when the remote login is rejected.
var ErrAuthenticationFailed = errors.New("odoo authentication failed")

// RemoteError wraps every failure reported by, or on the way to, the remote
// service. Name carries the remote exception class when Odoo sends one
// (for example "odoo.exceptions.AccessError").
type RemoteError struct {
	Service string
	Model   string
	Method  string
	Code    int
	Name    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	op := e.Service + "." + e.Method
	if e.Model != "" {
		op = e.Model + "." + e.Method
	}
	return fmt.Sprintf("odoo %s: %s", op, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Config identifies a remote database and the account used to reach it.
type Config struct {
	URL    string
	DB     string
	Login  string
	Secret string
}

// Client talks to one Odoo database. It is not safe for concurrent use.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	uid      int64
	seq      atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests, typically one shared
// by many clients to reuse connections. The client itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout. It applies whatever the order of
// options.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for cfg. No request is made until Authenticate or Call.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		endpoint: endpointFor(cfg.URL),
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.http.Timeout != c.timeout {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

func endpointFor(raw string) string {
	base, err := url.Parse(raw)
	if err != nil {
		return raw + "/jsonrpc"
	}
	return base.ResolveReference(&url.URL{Path: "/jsonrpc"}).String()
}

// UID returns the remote user id cached by the last successful login.
func (c *Client) UID() int64 {
	return c.uid
}

// Authenticate logs in and caches the remote user id. A rejected login is
// reported as (false, nil); transport and server failures as an error.
func (c *Client) Authenticate(ctx context.Context) (bool, error) {
	raw, err := c.rpc(ctx, "common", "login", []any{c.cfg.DB, c.cfg.Login, c.cfg.Secret})
	if err != nil {
		return false, err
	}
	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid == 0 {
		c.logger.Warn("odoo login rejected", "url", c.cfg.URL, "db", c.cfg.DB, "login", c.cfg.Login)
		c.uid = 0
		return false, nil
	}
	c.uid = uid
	c.logger.Debug("odoo login", "url", c.cfg.URL, "db", c.cfg.DB, "uid", uid)
	return true, nil
}

// Call runs execute_kw for model.method, logging in first when no session
// exists.
func (c *Client) Call(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	if c.uid == 0 {
		ok, err := c.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAuthenticationFailed
		}
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	raw, err := c.rpc(ctx, "object", "execute_kw", []any{
		c.cfg.DB,
		c.uid,
		c.cfg.Secret,
		model,
		method,
		args,
		kwargs,
	})
	if err != nil {
		var rerr *RemoteError
		if errors.As(err, &rerr) {
			rerr.Model = model
			rerr.Method = method
		}
		return nil, err
	}
	return raw, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (c *Client) rpc(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.seq.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s.%s request: %w", service, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &RemoteError{Service: service, Method: method, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{Service: service, Method: method, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Service: service, Method: method, Message: err.Error(), Err: err}
	}
	c.logger.Debug("odoo rpc", "service", service, "method", method, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{
			Service: service,
			Method:  method,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("unexpected HTTP status %s", resp.Status),
		}
	}

	var out rpcResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &RemoteError{Service: service, Method: method, Message: "invalid JSON-RPC response", Err: err}
	}
	if out.Error != nil {
		msg := out.Error.Data.Message
		if msg == "" {
			msg = out.Error.Message
		}
		return nil, &RemoteError{
			Service: service,
			Method:  method,
			Code:    out.Error.Code,
			Name:    out.Error.Data.Name,
			Message: msg,
		}
	}
	return out.Result, nil
}
