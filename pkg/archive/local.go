package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

// Compile-time interface check.
var _ Sink = (*localSink)(nil)

type localSink struct {
	log logrus.FieldLogger
	dir string
}

// NewLocalSink creates a Sink writing below cfg.Dir.
func NewLocalSink(log logrus.FieldLogger, cfg *config.LocalArchiveConfig) Sink {
	return &localSink{
		log: log.WithField("component", "local-sink"),
		dir: cfg.Dir,
	}
}

// Preflight creates the target directory and checks it is writable.
func (s *localSink) Preflight(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	marker := filepath.Join(s.dir, writeTestKey)

	if err := os.WriteFile(marker, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("writing to archive directory %s: %w", s.dir, err)
	}

	return os.Remove(marker)
}

// Put writes data atomically through a temporary file.
func (s *localSink) Put(_ context.Context, key string, data []byte, _ string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating directory for %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %q: %w", key, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("writing %q: %w", key, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("renaming %q: %w", key, err)
	}

	s.log.WithField("path", target).Debug("Wrote object")

	return nil
}

func (s *localSink) Location(key string) string {
	target, err := s.path(key)
	if err != nil {
		return key
	}

	return target
}

// path maps key below the sink directory, rejecting keys that escape it.
func (s *localSink) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive key %q", key)
	}

	return filepath.Join(s.dir, clean), nil
}
