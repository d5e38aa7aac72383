package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/model"
	"github.com/ethpandaops/angles-client-go/pkg/requests"
)

// Source reads the build data being archived.
type Source interface {
	GetBuild(ctx context.Context, buildID string) (json.RawMessage, error)
	GetScreenshotsForBuild(ctx context.Context, buildID string, limit int) (json.RawMessage, error)
	GetScreenshotImage(ctx context.Context, screenshotID string) ([]byte, error)
}

type requestsSource struct {
	reqs *requests.Requests
}

// FromRequests adapts the request groups to a Source.
func FromRequests(reqs *requests.Requests) Source {
	return &requestsSource{reqs: reqs}
}

func (s *requestsSource) GetBuild(ctx context.Context, buildID string) (json.RawMessage, error) {
	return s.reqs.Builds.GetBuild(ctx, buildID)
}

func (s *requestsSource) GetScreenshotsForBuild(
	ctx context.Context,
	buildID string,
	limit int,
) (json.RawMessage, error) {
	return s.reqs.Screenshots.GetScreenshotsForBuild(ctx, buildID, limit)
}

func (s *requestsSource) GetScreenshotImage(ctx context.Context, screenshotID string) ([]byte, error) {
	return s.reqs.Screenshots.GetScreenshotImage(ctx, screenshotID)
}

// ManifestEntry describes one archived screenshot.
type ManifestEntry struct {
	ScreenshotID string   `json:"screenshotId"`
	View         string   `json:"view,omitempty"`
	PlatformID   string   `json:"platformId,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Key          string   `json:"key"`
	ContentType  string   `json:"contentType"`
	Bytes        int      `json:"bytes"`
}

// Manifest is written next to the archived images.
type Manifest struct {
	BuildID     string          `json:"buildId"`
	ArchivedAt  time.Time       `json:"archivedAt"`
	TotalBytes  int64           `json:"totalBytes"`
	Screenshots []ManifestEntry `json:"screenshots"`
}

// Archiver copies a build and its screenshot images into a Sink.
type Archiver struct {
	log    logrus.FieldLogger
	cfg    *config.ArchiveConfig
	source Source
	sink   Sink
}

// NewArchiver creates an Archiver.
func NewArchiver(
	log logrus.FieldLogger,
	cfg *config.ArchiveConfig,
	source Source,
	sink Sink,
) *Archiver {
	return &Archiver{
		log:    log.WithField("component", "archiver"),
		cfg:    cfg,
		source: source,
		sink:   sink,
	}
}

// Archive writes build.json, one object per screenshot image and
// manifest.json below the build's prefix. The manifest is written last so
// its presence marks a complete archive.
func (a *Archiver) Archive(ctx context.Context, buildID string) (*Manifest, error) {
	if buildID == "" {
		return nil, fmt.Errorf("build id is required")
	}

	if err := a.sink.Preflight(ctx); err != nil {
		return nil, fmt.Errorf("preflight: %w", err)
	}

	build, err := a.source.GetBuild(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("fetching build %s: %w", buildID, err)
	}

	maxShots := a.cfg.MaxScreenshots
	if maxShots <= 0 {
		maxShots = config.DefaultArchiveMaxScreenshots
	}

	// One extra row tells a build at the cap apart from one above it.
	raw, err := a.source.GetScreenshotsForBuild(ctx, buildID, maxShots+1)
	if err != nil {
		return nil, fmt.Errorf("listing screenshots of %s: %w", buildID, err)
	}

	var shots []model.Screenshot
	if err := model.Decode(raw, &shots); err != nil {
		return nil, fmt.Errorf("decoding screenshots: %w", err)
	}

	if len(shots) > maxShots {
		return nil, fmt.Errorf(
			"build %s has more than %d screenshots, raise archive.max_screenshots", buildID, maxShots)
	}

	prefix := resolvePrefix(a.cfg.Prefix, buildID)
	manifest := &Manifest{
		BuildID:     buildID,
		ArchivedAt:  time.Now().UTC(),
		Screenshots: make([]ManifestEntry, len(shots)),
	}

	if err := a.sink.Put(ctx, prefix+"/build.json", build, "application/json"); err != nil {
		return nil, err
	}

	concurrency := a.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = config.DefaultArchiveConcurrency
	}

	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range shots {
		shot := shots[i]

		g.Go(func() error {
			entry, err := a.archiveScreenshot(gctx, prefix, &shot)
			if err != nil {
				return err
			}

			manifest.Screenshots[i] = *entry
			total.Add(int64(entry.Bytes))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest.TotalBytes = total.Load()

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	if err := a.sink.Put(ctx, prefix+"/manifest.json", data, "application/json"); err != nil {
		return nil, err
	}

	a.log.WithFields(logrus.Fields{
		"build":       buildID,
		"screenshots": len(shots),
		"size":        units.HumanSize(float64(manifest.TotalBytes)),
		"location":    a.sink.Location(prefix),
	}).Info("Archived build")

	return manifest, nil
}

func (a *Archiver) archiveScreenshot(
	ctx context.Context,
	prefix string,
	shot *model.Screenshot,
) (*ManifestEntry, error) {
	id, ok := shot.ID.Get()
	if !ok || id == "" {
		return nil, fmt.Errorf("screenshot without id")
	}

	data, err := a.source.GetScreenshotImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("downloading screenshot %s: %w", id, err)
	}

	key := prefix + "/screenshots/" + id + imageExt(shot.Path.OrElse(""), data)
	contentType := detectContentType(key)

	if err := a.sink.Put(ctx, key, data, contentType); err != nil {
		return nil, err
	}

	a.log.WithFields(logrus.Fields{
		"screenshot": id,
		"size":       units.HumanSize(float64(len(data))),
	}).Debug("Archived screenshot")

	return &ManifestEntry{
		ScreenshotID: id,
		View:         shot.View.OrElse(""),
		PlatformID:   shot.PlatformID.OrElse(""),
		Tags:         shot.Tags,
		Key:          key,
		ContentType:  contentType,
		Bytes:        len(data),
	}, nil
}

// resolvePrefix joins the configured prefix and the build id.
func resolvePrefix(prefix, buildID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = config.DefaultArchivePrefix
	}

	return prefix + "/" + buildID
}

// imageExt picks the extension of the uploaded file name, falling back to
// sniffing the image bytes.
func imageExt(fileName string, data []byte) string {
	if ext := strings.ToLower(path.Ext(fileName)); ext != "" {
		return ext
	}

	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
