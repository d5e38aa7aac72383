package mockserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
)

const (
	maxUploadBytes       = 32 << 20
	defaultScreenshotCap = 100
)

// platformFields are the multipart fields folded into a screenshot's
// platform object.
var platformFields = []string{
	"platformName",
	"platformVersion",
	"browserName",
	"browserVersion",
	"deviceName",
}

// platformID derives a stable id from the platform fields so screenshots
// taken on the same platform share it.
func platformID(platform map[string]any) string {
	var key strings.Builder

	for _, f := range platformFields {
		v, _ := platform[f].(string)
		key.WriteString(f + "=" + v + ";")
	}

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key.String())).String()
}

// handleCreateScreenshot stores a multipart screenshot upload.
func (s *server) handleCreateScreenshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))

		return
	}

	buildID := r.FormValue("buildId")
	if buildID == "" {
		writeError(w, http.StatusBadRequest, "buildId is required")

		return
	}

	if _, err := s.store.Get(r.Context(), store.KindBuild, buildID); err != nil {
		s.writeStoreError(w, err)

		return
	}

	file, header, err := r.FormFile("screenshot")
	if err != nil {
		writeError(w, http.StatusBadRequest, "screenshot file is required")

		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading screenshot: %v", err))

		return
	}

	body, err := screenshotBody(r, buildID, header.Filename, data, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	created, err := s.save(r.Context(), nil, store.KindScreenshot, buildID, body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if err := s.store.PutImage(r.Context(), &store.Image{
		ScreenshotID: stringField(created, "_id"),
		FileName:     header.Filename,
		ContentType:  http.DetectContentType(data),
		Data:         data,
	}); err != nil {
		s.writeStoreError(w, err)

		return
	}

	s.log.WithField("screenshot", created["_id"]).
		WithField("bytes", len(data)).
		Debug("Stored screenshot")

	writeJSON(w, http.StatusCreated, created)
}

func screenshotBody(
	r *http.Request,
	buildID, fileName string,
	data []byte,
	now time.Time,
) (document, error) {
	body := document{
		"build": document{"_id": buildID},
		"view":  r.FormValue("view"),
		"path":  fileName,
		"tags":  []any{},
	}

	timestamp := now
	if raw := r.FormValue("timestamp"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q", raw)
		}

		timestamp = t
	}

	body["timestamp"] = timestamp.UTC().Format(time.RFC3339Nano)

	if raw := r.FormValue("tags"); raw != "" {
		var tags []any
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("tags must be a JSON array")
		}

		body["tags"] = tags
	}

	platform := map[string]any{}

	for _, f := range platformFields {
		if v := r.FormValue(f); v != "" {
			platform[f] = v
		}
	}

	if len(platform) > 0 {
		body["platform"] = platform
		body["platformId"] = platformID(platform)
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		body["height"] = cfg.Height
		body["width"] = cfg.Width
	}

	return body, nil
}

// handleListScreenshots serves three listings: by screenshotIds, by
// buildId, or by view with an optional platformId.
func (s *server) handleListScreenshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	var filter store.ListFilter

	switch {
	case q.Get("screenshotIds") != "":
		filter.IDs = queryList(r, "screenshotIds")
	case q.Get("buildId") != "":
		filter.Parent = q.Get("buildId")

		if limit == 0 {
			limit = defaultScreenshotCap
		}
	case q.Get("view") == "":
		writeError(w, http.StatusBadRequest, "one of screenshotIds, buildId or view is required")

		return
	}

	all, err := s.listAll(r.Context(), store.KindScreenshot, filter)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	view, platform := q.Get("view"), q.Get("platformId")
	matched := make([]document, 0, len(all))

	for _, shot := range all {
		if view != "" && stringField(shot, "view") != view {
			continue
		}

		if platform != "" && stringField(shot, "platformId") != platform {
			continue
		}

		matched = append(matched, shot)
	}

	writeJSON(w, http.StatusOK, page(matched, offset, limit))
}

// filterScreenshots lists screenshots matching keep, newest first, taken
// within the last days when days is positive.
func (s *server) filterScreenshots(
	r *http.Request,
	days int,
	keep func(document) bool,
) ([]document, error) {
	filter := store.ListFilter{}
	if days > 0 {
		filter.Since = s.now().Add(-time.Duration(days) * 24 * time.Hour)
	}

	all, err := s.listAll(r.Context(), store.KindScreenshot, filter)
	if err != nil {
		return nil, err
	}

	out := make([]document, 0, len(all))

	for _, shot := range all {
		if keep(shot) {
			out = append(out, shot)
		}
	}

	return out, nil
}

func hasTag(shot document, tag string) bool {
	tags, _ := shot["tags"].([]any)

	return slices.Contains(tags, any(tag))
}

func (s *server) handleScreenshotViews(w http.ResponseWriter, r *http.Request) {
	s.listByField(w, r, "view", func(shot document, v string) bool {
		return stringField(shot, "view") == v
	})
}

func (s *server) handleScreenshotTags(w http.ResponseWriter, r *http.Request) {
	s.listByField(w, r, "tag", hasTag)
}

func (s *server) listByField(
	w http.ResponseWriter,
	r *http.Request,
	param string,
	match func(document, string) bool,
) {
	value := r.URL.Query().Get(param)
	if value == "" {
		writeError(w, http.StatusBadRequest, param+" is required")

		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	shots, err := s.filterScreenshots(r, 0, func(d document) bool { return match(d, value) })
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, page(shots, 0, limit))
}

// screenshotGroup is one entry of the grouped listings.
type screenshotGroup struct {
	ID          string     `json:"_id"`
	Screenshots []document `json:"screenshots"`
}

// group buckets shots by key, keeping first-seen order.
func group(shots []document, key func(document) string) []screenshotGroup {
	out := make([]screenshotGroup, 0)
	index := make(map[string]int)

	for _, shot := range shots {
		k := key(shot)

		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, screenshotGroup{ID: k})
		}

		out[i].Screenshots = append(out[i].Screenshots, shot)
	}

	return out
}

// handleGroupedByPlatform groups a view's recent screenshots by platformId.
func (s *server) handleGroupedByPlatform(w http.ResponseWriter, r *http.Request) {
	s.grouped(w, r, "view",
		func(shot document, v string) bool { return stringField(shot, "view") == v },
		func(shot document) string { return stringField(shot, "platformId") },
	)
}

// handleGroupedByTag groups a tag's recent screenshots by view.
func (s *server) handleGroupedByTag(w http.ResponseWriter, r *http.Request) {
	s.grouped(w, r, "tag", hasTag,
		func(shot document) string { return stringField(shot, "view") },
	)
}

func (s *server) grouped(
	w http.ResponseWriter,
	r *http.Request,
	param string,
	match func(document, string) bool,
	key func(document) string,
) {
	value := r.URL.Query().Get(param)
	if value == "" {
		writeError(w, http.StatusBadRequest, param+" is required")

		return
	}

	days, err := queryInt(r, "numberOfDays", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	shots, err := s.filterScreenshots(r, days, func(d document) bool { return match(d, value) })
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, group(shots, key))
}

func (s *server) handleDeleteScreenshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.Delete(r.Context(), store.KindScreenshot, id); err != nil {
		s.writeStoreError(w, err)

		return
	}

	if err := s.store.DeleteImage(r.Context(), id); err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeMessage(w, fmt.Sprintf("Deleted screenshot %s", id))
}

// handleScreenshotImage returns the stored image bytes.
func (s *server) handleScreenshotImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.store.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", img.FileName))
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(img.Data)
}
