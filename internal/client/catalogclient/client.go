package catalogclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// Options configures a Client
type Options struct {
	BaseURL string
	Kind    types.Kind
	Timeout time.Duration
	// Retries applies to idempotent reads only
	Retries int
	Logger  *zap.Logger
}

// Client talks to one kind's catalog over HTTP.
type Client struct {
	http *resty.Client
	kind types.Kind
	log  *zap.Logger
}

// Error is a failure reported by the server
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps status codes back onto the shared error taxonomy
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusConflict:
		return types.ErrAlreadyExists
	case http.StatusRequestEntityTooLarge:
		return types.ErrFileTooLarge
	}
	return nil
}

type envelope struct {
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
	Extensions  []types.CatalogEntry `json:"extensions,omitempty"`
	Nodes       []types.CatalogEntry `json:"nodes,omitempty"`
	Extension   *types.CatalogEntry  `json:"extension,omitempty"`
	Node        *types.CatalogEntry  `json:"node,omitempty"`
	Count       int                  `json:"count"`
	Path        string               `json:"path,omitempty"`
	Exists      bool                 `json:"exists"`
	ExtensionID string               `json:"extensionId,omitempty"`
}

// PathInfo describes the server's install root
type PathInfo struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// New creates a client
func New(opts Options) *Client {
	if opts.Kind == "" {
		opts.Kind = types.KindExtension
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	retryClient.CheckRetry = readsOnly
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "nodegraph-extctl/1.0")

	return &Client{
		http: client,
		kind: opts.Kind,
		log:  logging.OrNop(opts.Logger),
	}
}

type writeKey struct{}

// writing marks ctx so the request it carries is sent exactly once
func writing(ctx context.Context) context.Context {
	return context.WithValue(ctx, writeKey{}, true)
}

// readsOnly retries reads on connection errors and 5xx; writes are never replayed.
func readsOnly(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if w, _ := ctx.Value(writeKey{}).(bool); w {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Kind returns the kind this client addresses
func (c *Client) Kind() types.Kind {
	return c.kind
}

func (c *Client) route(parts ...string) string {
	p := "/" + c.kind.Prefix()
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) do(req *resty.Request, method, path string) (*envelope, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", method, path, err)
	}

	var env envelope
	if len(resp.Body()) > 0 {
		if err := sonic.Unmarshal(resp.Body(), &env); err != nil && !resp.IsError() {
			return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	if resp.IsError() || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, &Error{StatusCode: resp.StatusCode(), Message: msg}
	}
	return &env, nil
}

// List returns every catalog entry
func (c *Client) List(ctx context.Context) ([]types.CatalogEntry, error) {
	env, err := c.do(c.http.R().SetContext(ctx), http.MethodGet, c.route())
	if err != nil {
		return nil, err
	}
	if c.kind == types.KindNode {
		return env.Nodes, nil
	}
	return env.Extensions, nil
}

// Path returns the server's install root
func (c *Client) Path(ctx context.Context) (PathInfo, error) {
	env, err := c.do(c.http.R().SetContext(ctx), http.MethodGet, c.route("path"))
	if err != nil {
		return PathInfo{}, err
	}
	return PathInfo{Path: env.Path, Exists: env.Exists}, nil
}

// Metadata returns the entry for id; it satisfies loader.MetadataSource
func (c *Client) Metadata(ctx context.Context, id string) (*types.CatalogEntry, error) {
	env, err := c.do(c.http.R().SetContext(ctx), http.MethodGet, c.route(id, "metadata"))
	if err != nil {
		return nil, err
	}
	if env.Node != nil {
		return env.Node, nil
	}
	if env.Extension != nil {
		return env.Extension, nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrNotFound, id)
}

// Upload installs an archive and returns the installed identifier
func (c *Client) Upload(ctx context.Context, fileName string, archive []byte) (string, error) {
	req := c.http.R().
		SetContext(writing(ctx)).
		SetFileReader(string(c.kind), fileName, bytes.NewReader(archive))
	env, err := c.do(req, http.MethodPost, c.route("upload"))
	if err != nil {
		return "", err
	}
	if env.ExtensionID == "" {
		return "", errors.New("server did not return an identifier")
	}
	c.log.Info("Uploaded archive", zap.String("file", fileName), zap.String("id", env.ExtensionID))
	return env.ExtensionID, nil
}

// SetStatus enables or disables id
func (c *Client) SetStatus(ctx context.Context, id string, status types.Status) error {
	req := c.http.R().
		SetContext(writing(ctx)).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"status": string(status)})
	_, err := c.do(req, http.MethodPut, c.route(id, "status"))
	return err
}

// Delete removes id from the server
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(c.http.R().SetContext(writing(ctx)), http.MethodDelete, c.route(id))
	return err
}

// Rescan asks the server to rebuild its catalog and returns the entry count
func (c *Client) Rescan(ctx context.Context) (int, error) {
	env, err := c.do(c.http.R().SetContext(writing(ctx)), http.MethodPost, c.route("rescan"))
	if err != nil {
		return 0, err
	}
	return env.Count, nil
}

// ReadModule returns the main module source for id
func (c *Client) ReadModule(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/javascript").
		Get(c.route(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch module %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	}
	return resp.Body(), nil
}
