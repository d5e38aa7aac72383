// Package archive copies a build's screenshots out of Angles into a local
// directory or S3-compatible storage.
package archive

import (
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

// Sink stores archived objects.
type Sink interface {
	// Preflight verifies that the sink is reachable and writable.
	Preflight(ctx context.Context) error
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Location returns a human-readable address for key.
	Location(key string) string
}

// NewSink creates the sink enabled in cfg.
func NewSink(log logrus.FieldLogger, cfg *config.ArchiveConfig) (Sink, error) {
	switch {
	case cfg.S3 != nil && cfg.S3.Enabled:
		return NewS3Sink(log, cfg.S3), nil
	case cfg.Local != nil && cfg.Local.Enabled:
		return NewLocalSink(log, cfg.Local), nil
	default:
		return nil, fmt.Errorf("no archive sink enabled")
	}
}

// detectContentType returns a MIME type based on the key's extension.
func detectContentType(key string) string {
	ext := path.Ext(key)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
