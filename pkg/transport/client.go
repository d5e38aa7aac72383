// Package transport issues HTTP requests against the Angles REST API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

const (
	headerAccept      = "Accept"
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
)

// File is one file part of a multipart request.
type File struct {
	Param  string
	Name   string
	Reader io.Reader
}

// Options describes a single request. The zero value sends a bare request
// with the default headers and timeout.
type Options struct {
	// Query parameters appended to the URL.
	Query url.Values
	// JSON is encoded as the request body.
	JSON any
	// Body is sent as is when JSON is nil.
	Body any
	// Form fields. Together with Files this makes a multipart request.
	Form  map[string]string
	Files []File
	// Headers override the defaults for this call only.
	Headers map[string]string
	// Timeout overrides the default timeout when positive.
	Timeout time.Duration
	// Stream leaves the response body unread. The caller must close
	// resp.RawBody().
	Stream bool
}

// Client is the HTTP transport to an Angles server.
type Client interface {
	// Execute sends one request. pathOrURL is resolved against the base URL
	// unless it is an absolute http(s) URL.
	Execute(ctx context.Context, method, pathOrURL string, opts *Options) (*resty.Response, error)
	// BaseURL returns the normalised base URL.
	BaseURL() string
	// SetBaseURL replaces the base URL used for subsequent calls.
	SetBaseURL(baseURL string) error
	// ResolveURL returns the absolute URL a request for pathOrURL goes to.
	ResolveURL(pathOrURL string) (string, error)
}

type client struct {
	log     logrus.FieldLogger
	http    *resty.Client
	headers map[string]string
	timeout time.Duration
	limiter *rate.Limiter

	mu   sync.RWMutex
	base *url.URL
}

// Compile-time interface check.
var _ Client = (*client)(nil)

// New creates a Client from cfg. A nil cfg uses the defaults.
func New(log logrus.FieldLogger, cfg *config.ClientConfig) (Client, error) {
	if cfg == nil {
		cfg = &config.Default().Client
	}

	log = log.WithField("component", "transport")

	headers := map[string]string{
		headerAccept:      mimeJSON,
		headerContentType: mimeJSON,
	}

	for k, v := range cfg.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	c := &client{
		log:     log,
		http:    resty.New().SetLogger(log).SetDebug(cfg.Debug),
		headers: headers,
		timeout: timeout,
	}

	if cfg.RateLimit.Enabled {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	if err := c.SetBaseURL(baseURL); err != nil {
		return nil, err
	}

	return c, nil
}

// BaseURL returns the base URL with a trailing slash.
func (c *client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.base.String()
}

// SetBaseURL parses and normalises baseURL.
func (c *client) SetBaseURL(baseURL string) error {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url %q must be an absolute http(s) URL", baseURL)
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c.mu.Lock()
	c.base = u
	c.mu.Unlock()

	c.log.WithField("base_url", u.String()).Debug("Base URL set")

	return nil
}

// ResolveURL joins pathOrURL onto the base URL. Leading slashes are
// stripped so relative paths never escape the base path.
func (c *client) ResolveURL(pathOrURL string) (string, error) {
	if isAbsolute(pathOrURL) {
		return pathOrURL, nil
	}

	ref, err := url.Parse(strings.TrimLeft(pathOrURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing path %q: %w", pathOrURL, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.base.ResolveReference(ref).String(), nil
}

func isAbsolute(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Execute sends one request and maps failures onto TransportError and
// APIError.
func (c *client) Execute(
	ctx context.Context,
	method, pathOrURL string,
	opts *Options,
) (*resty.Response, error) {
	if opts == nil {
		opts = &Options{}
	}

	target, err := c.ResolveURL(pathOrURL)
	if err != nil {
		return nil, err
	}

	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			cancel()

			return nil, &TransportError{Method: method, URL: target, Err: err}
		}
	}

	req, err := c.newRequest(ctx, opts)
	if err != nil {
		cancel()

		return nil, err
	}

	log := c.log.WithFields(logrus.Fields{
		"method": method,
		"url":    target,
	})

	log.Debug("Sending request")

	resp, err := req.Execute(method, target)
	if err != nil {
		cancel()

		if resp != nil && resp.RawBody() != nil {
			_ = resp.RawBody().Close()
		}

		// The status line arrived but the body could not be read.
		if resp != nil && resp.RawResponse != nil {
			if status := resp.StatusCode(); status < http.StatusOK || status >= http.StatusMultipleChoices {
				log.WithError(err).WithField("status", status).Debug("Request failed, body unreadable")

				return nil, &APIError{Method: method, StatusCode: status, URL: target}
			}
		}

		return nil, &TransportError{Method: method, URL: target, Err: err}
	}

	status := resp.StatusCode()

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		body := errorBody(resp, opts.Stream)
		cancel()

		log.WithField("status", status).Debug("Request failed")

		return nil, &APIError{
			Method:     method,
			StatusCode: status,
			URL:        target,
			Body:       body,
		}
	}

	if opts.Stream {
		resp.RawResponse.Body = &cancelOnClose{ReadCloser: resp.RawResponse.Body, cancel: cancel}
	} else {
		cancel()
	}

	log.WithField("status", status).Debug("Request completed")

	return resp, nil
}

func (c *client) newRequest(ctx context.Context, opts *Options) (*resty.Request, error) {
	multipart := len(opts.Files) > 0

	headers := make(map[string]string, len(c.headers)+len(opts.Headers))
	for k, v := range c.headers {
		headers[k] = v
	}

	for k, v := range opts.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	if multipart {
		delete(headers, headerContentType)
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetDoNotParseResponse(opts.Stream)

	if len(opts.Query) > 0 {
		req.SetQueryParamsFromValues(opts.Query)
	}

	switch {
	case multipart:
		req.SetMultipartFormData(opts.Form)

		for _, f := range opts.Files {
			req.SetFileReader(f.Param, f.Name, f.Reader)
		}
	case len(opts.Form) > 0:
		req.SetFormData(opts.Form)
	case opts.JSON != nil:
		body, err := encodeJSON(opts.JSON)
		if err != nil {
			return nil, err
		}

		req.SetBody(body)
	case opts.Body != nil:
		req.SetBody(opts.Body)
	}

	return req, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// errorBody reads the body of a failed response. A read failure yields an
// empty string.
func errorBody(resp *resty.Response, stream bool) string {
	if !stream {
		return string(resp.Body())
	}

	raw := resp.RawBody()
	if raw == nil {
		return ""
	}

	defer func() { _ = raw.Close() }()

	data, err := io.ReadAll(io.LimitReader(raw, 64*1024))
	if err != nil {
		return ""
	}

	return string(data)
}

// cancelOnClose releases the per-call context once a streamed body is
// closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cancel)

	return err
}
