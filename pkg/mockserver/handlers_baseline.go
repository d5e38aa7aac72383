package mockserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
)

type setBaselineRequest struct {
	View         string `json:"view"`
	ScreenshotID string `json:"screenshotId"`
}

// baselineFrom copies the matching fields of a screenshot into body.
func baselineFrom(body, shot document) {
	body["screenshot"] = shot

	for _, key := range []string{"platform", "platformId"} {
		if v, ok := shot[key]; ok {
			body[key] = v
		}
	}

	if h, ok := shot["height"]; ok {
		body["screenHeight"] = h
	}

	if w, ok := shot["width"]; ok {
		body["screenWidth"] = w
	}
}

// handleSetBaseline makes a screenshot the baseline of its view. An
// existing baseline for the same view and platform is replaced in place.
func (s *server) handleSetBaseline(w http.ResponseWriter, r *http.Request) {
	var req setBaselineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ScreenshotID == "" {
		writeError(w, http.StatusBadRequest, "screenshotId is required")

		return
	}

	_, shot, err := s.load(r.Context(), store.KindScreenshot, req.ScreenshotID)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	view := req.View
	if view == "" {
		view = stringField(shot, "view")
	}

	doc, body, err := s.findBaseline(r.Context(), view, stringField(shot, "platformId"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	status := http.StatusOK

	if body == nil {
		status = http.StatusCreated
		body = document{"ignoreBoxes": []any{}}
	}

	body["view"] = view
	baselineFrom(body, shot)

	saved, err := s.save(r.Context(), doc, store.KindBaseline, "", body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, status, saved)
}

// findBaseline returns the baseline for view on platformID, or nil when
// there is none.
func (s *server) findBaseline(ctx context.Context, view, platformID string) (*store.Document, document, error) {
	docs, _, err := s.store.List(ctx, store.KindBaseline, store.ListFilter{})
	if err != nil {
		return nil, nil, err
	}

	for i := range docs {
		body, err := render(&docs[i])
		if err != nil {
			return nil, nil, err
		}

		if stringField(body, "view") == view && stringField(body, "platformId") == platformID {
			return &docs[i], body, nil
		}
	}

	return nil, nil, nil
}

// matchesBaselineQuery compares a baseline with the query parameters of
// GET baseline/. Parameters that are absent do not filter.
func matchesBaselineQuery(body document, q url.Values) bool {
	if v := q.Get("view"); v != "" && stringField(body, "view") != v {
		return false
	}

	platform, _ := body["platform"].(map[string]any)

	for _, key := range []string{"platformName", "deviceName", "browserName"} {
		want := q.Get(key)
		if want == "" {
			continue
		}

		if got, _ := platform[key].(string); got != want {
			return false
		}
	}

	for _, key := range []string{"screenHeight", "screenWidth"} {
		want := q.Get(key)
		if want == "" {
			continue
		}

		if fmt.Sprint(body[key]) != want {
			return false
		}
	}

	return true
}

// handleListBaselines returns every baseline, or the ones matching the
// view and platform query parameters.
func (s *server) handleListBaselines(w http.ResponseWriter, r *http.Request) {
	all, err := s.listAll(r.Context(), store.KindBaseline, store.ListFilter{})
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	q := r.URL.Query()
	matched := make([]document, 0, len(all))

	for _, b := range all {
		if matchesBaselineQuery(b, q) {
			matched = append(matched, b)
		}
	}

	writeJSON(w, http.StatusOK, matched)
}

type updateBaselineRequest struct {
	ScreenshotID string `json:"screenshotId"`
	IgnoreBoxes  []any  `json:"ignoreBoxes"`
}

// handleUpdateBaseline swaps the screenshot and/or ignore boxes.
func (s *server) handleUpdateBaseline(w http.ResponseWriter, r *http.Request) {
	var req updateBaselineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, body, err := s.load(r.Context(), store.KindBaseline, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if req.ScreenshotID != "" {
		_, shot, err := s.load(r.Context(), store.KindScreenshot, req.ScreenshotID)
		if err != nil {
			s.writeStoreError(w, err)

			return
		}

		baselineFrom(body, shot)
	}

	if req.IgnoreBoxes != nil {
		body["ignoreBoxes"] = req.IgnoreBoxes
	}

	updated, err := s.save(r.Context(), doc, store.KindBaseline, "", body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, updated)
}
