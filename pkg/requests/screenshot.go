package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethpandaops/angles-client-go/pkg/canonical"
	"github.com/ethpandaops/angles-client-go/pkg/model"
	"github.com/ethpandaops/angles-client-go/pkg/transport"
)

// DefaultScreenshotLimit is the page size of GetScreenshotsForBuild.
const DefaultScreenshotLimit = 100

// ScreenshotRequests covers the screenshot resource.
type ScreenshotRequests struct {
	base
}

// SaveScreenshot uploads the image at req.FilePath as multipart form data.
// The file is always closed before returning.
func (r *ScreenshotRequests) SaveScreenshot(ctx context.Context, req model.StoreScreenshot) (json.RawMessage, error) {
	fullPath, err := filepath.Abs(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("resolving screenshot path %q: %w", req.FilePath, err)
	}

	form, err := r.screenshotForm(req)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("opening screenshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	r.log.WithField("file", fullPath).Debug("Uploading screenshot")

	return r.send(ctx, http.MethodPost, "screenshot/", &transport.Options{
		Form: form,
		Files: []transport.File{{
			Param:  "screenshot",
			Name:   filepath.Base(fullPath),
			Reader: f,
		}},
		Headers: map[string]string{"Accept": "application/json"},
	})
}

// screenshotForm flattens a StoreScreenshot into form fields. Tags travel
// as a JSON string and each present platform field becomes its own field.
func (r *ScreenshotRequests) screenshotForm(req model.StoreScreenshot) (map[string]string, error) {
	form := map[string]string{
		"buildId":   req.BuildID,
		"view":      req.View,
		"timestamp": req.Timestamp.Format(time.RFC3339Nano),
	}

	if req.Tags != nil {
		tags, err := r.canon.Marshal(req.Tags)
		if err != nil {
			return nil, fmt.Errorf("encoding screenshot tags: %w", err)
		}

		form["tags"] = string(tags)
	}

	if req.Platform != nil {
		obj, ok := r.canon.Canonicalize(req.Platform).(*canonical.Object)
		if ok {
			for _, key := range obj.Keys() {
				v, _ := obj.Get(key)
				form[key] = formValue(v)
			}
		}
	}

	return form, nil
}

func formValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}

		return string(data)
	}
}

// GetScreenshotsForBuild lists a build's screenshots. A zero limit means
// DefaultScreenshotLimit.
func (r *ScreenshotRequests) GetScreenshotsForBuild(
	ctx context.Context,
	buildID string,
	limit int,
) (json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultScreenshotLimit
	}

	return r.get(ctx, "screenshot/", newQuery().str("buildId", buildID).num("limit", limit))
}

func (r *ScreenshotRequests) GetScreenshots(ctx context.Context, screenshotIDs []string) (json.RawMessage, error) {
	return r.get(ctx, "screenshot/", newQuery().list("screenshotIds", screenshotIDs))
}

func (r *ScreenshotRequests) GetScreenshotViews(ctx context.Context, view string, limit int) (json.RawMessage, error) {
	return r.get(ctx, "screenshot/views", newQuery().str("view", view).num("limit", orDefault(limit)))
}

func (r *ScreenshotRequests) GetScreenshotTags(ctx context.Context, tag string, limit int) (json.RawMessage, error) {
	return r.get(ctx, "screenshot/tags", newQuery().str("tag", tag).num("limit", orDefault(limit)))
}

// GetScreenshotHistoryByView pages through a view's screenshots on one
// platform.
func (r *ScreenshotRequests) GetScreenshotHistoryByView(
	ctx context.Context,
	view, platformID string,
	limit, offset int,
) (json.RawMessage, error) {
	q := newQuery().
		str("view", view).
		str("platformId", platformID).
		num("limit", orDefault(limit)).
		num("offset", offset)

	return r.get(ctx, "screenshot/", q)
}

func (r *ScreenshotRequests) GetScreenshotsGroupedByPlatform(
	ctx context.Context,
	view string,
	numberOfDays int,
) (json.RawMessage, error) {
	q := newQuery().str("view", view).num("numberOfDays", numberOfDays)

	return r.get(ctx, "screenshot/grouped/platform", q)
}

func (r *ScreenshotRequests) GetScreenshotsGroupedByTag(
	ctx context.Context,
	tag string,
	numberOfDays int,
) (json.RawMessage, error) {
	q := newQuery().str("tag", tag).num("numberOfDays", numberOfDays)

	return r.get(ctx, "screenshot/grouped/tag", q)
}

func (r *ScreenshotRequests) GetScreenshot(ctx context.Context, screenshotID string) (json.RawMessage, error) {
	return r.get(ctx, "screenshot/"+segment(screenshotID), nil)
}

func (r *ScreenshotRequests) DeleteScreenshot(ctx context.Context, screenshotID string) (json.RawMessage, error) {
	return r.delete(ctx, "screenshot/"+segment(screenshotID), nil)
}

// GetScreenshotImage downloads the stored image.
func (r *ScreenshotRequests) GetScreenshotImage(ctx context.Context, screenshotID string) ([]byte, error) {
	return r.getBytes(ctx, "screenshot/"+segment(screenshotID)+"/image", nil)
}

// GetDynamicBaselineImage asks the server to build a baseline from recent
// screenshots. numberOfImagesToCompare is only sent when positive.
func (r *ScreenshotRequests) GetDynamicBaselineImage(
	ctx context.Context,
	screenshotID string,
	numberOfImagesToCompare int,
) (json.RawMessage, error) {
	q := newQuery()
	if numberOfImagesToCompare > 0 {
		q.num("numberOfImagesToCompare", numberOfImagesToCompare)
	}

	return r.get(ctx, "screenshot/"+segment(screenshotID)+"/dynamic-baseline", q)
}

// GetBaselineCompareImage downloads the diff image against the baseline.
func (r *ScreenshotRequests) GetBaselineCompareImage(
	ctx context.Context,
	screenshotID string,
	useCache bool,
) ([]byte, error) {
	return r.getBytes(ctx,
		"screenshot/"+segment(screenshotID)+"/baseline/compare/image/",
		newQuery().flag("useCache", useCache),
	)
}

// GetBaselineCompare returns the comparison result against the baseline.
func (r *ScreenshotRequests) GetBaselineCompare(ctx context.Context, screenshotID string) (json.RawMessage, error) {
	return r.get(ctx, "screenshot/"+segment(screenshotID)+"/baseline/compare/", nil)
}

func orDefault(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}

	return limit
}
