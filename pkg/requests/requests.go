// Package requests maps each Angles REST resource onto a typed group of
// calls. Bodies are canonicalized before they are sent; responses are
// returned undecoded as json.RawMessage.
package requests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/angles-client-go/pkg/canonical"
	"github.com/ethpandaops/angles-client-go/pkg/transport"
)

// Requests bundles every resource group over one transport.
type Requests struct {
	Teams        *TeamRequests
	Environments *EnvironmentRequests
	Builds       *BuildRequests
	Executions   *ExecutionRequests
	Screenshots  *ScreenshotRequests
	Baselines    *BaselineRequests
	Metrics      *MetricRequests
	Angles       *AnglesRequests
}

// New creates all resource groups on top of client.
func New(log logrus.FieldLogger, client transport.Client) *Requests {
	b := base{
		log:   log.WithField("component", "requests"),
		http:  client,
		canon: canonical.New(log),
	}

	return &Requests{
		Teams:        &TeamRequests{base: b},
		Environments: &EnvironmentRequests{base: b},
		Builds:       &BuildRequests{base: b},
		Executions:   &ExecutionRequests{base: b},
		Screenshots:  &ScreenshotRequests{base: b},
		Baselines:    &BaselineRequests{base: b},
		Metrics:      &MetricRequests{base: b},
		Angles:       &AnglesRequests{base: b},
	}
}

// base holds what every group shares. Groups are stateless beyond it.
type base struct {
	log   logrus.FieldLogger
	http  transport.Client
	canon *canonical.Canonicalizer
}

func (b *base) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return b.send(ctx, http.MethodPost, path, &transport.Options{JSON: b.canon.Canonicalize(body)})
}

func (b *base) get(ctx context.Context, path string, q query) (json.RawMessage, error) {
	return b.send(ctx, http.MethodGet, path, &transport.Options{Query: url.Values(q)})
}

func (b *base) put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	opts := &transport.Options{}
	if body != nil {
		opts.JSON = b.canon.Canonicalize(body)
	}

	return b.send(ctx, http.MethodPut, path, opts)
}

func (b *base) delete(ctx context.Context, path string, q query) (json.RawMessage, error) {
	return b.send(ctx, http.MethodDelete, path, &transport.Options{Query: url.Values(q)})
}

// getBytes fetches a binary body through the streamed path.
func (b *base) getBytes(ctx context.Context, path string, q query) ([]byte, error) {
	resp, err := b.http.Execute(ctx, http.MethodGet, path, &transport.Options{
		Query:  url.Values(q),
		Stream: true,
	})
	if err != nil {
		return nil, err
	}

	raw := resp.RawBody()
	defer func() { _ = raw.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(raw); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return buf.Bytes(), nil
}

func (b *base) send(ctx context.Context, method, path string, opts *transport.Options) (json.RawMessage, error) {
	resp, err := b.http.Execute(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}

	return decodeBody(method, path, resp.Body())
}

// decodeBody returns nil for an empty body and rejects invalid JSON.
func decodeBody(method, path string, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("decoding response of %s %s: invalid JSON", method, path)
	}

	out := make(json.RawMessage, len(body))
	copy(out, body)

	return out, nil
}

// segment escapes an id for use as one path segment.
func segment(id string) string {
	return url.PathEscape(id)
}
