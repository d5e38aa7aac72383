package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// resolveRef finds a document of kind by id or by name. Unknown references
// become a bare {"_id": ref} stub.
func (s *server) resolveRef(ctx context.Context, kind, ref string) (document, error) {
	if ref == "" {
		return nil, nil
	}

	_, body, err := s.load(ctx, kind, ref)
	if err == nil {
		return body, nil
	}

	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	all, err := s.listAll(ctx, kind, store.ListFilter{})
	if err != nil {
		return nil, err
	}

	for _, d := range all {
		if stringField(d, "name") == ref {
			return d, nil
		}
	}

	return document{"_id": ref}, nil
}

// resolveTeam maps a team reference to the id builds are filed under.
func (s *server) resolveTeam(ctx context.Context, ref string) (string, error) {
	team, err := s.resolveRef(ctx, store.KindTeam, ref)
	if err != nil || team == nil {
		return "", err
	}

	return stringField(team, "_id"), nil
}

func (s *server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var body document
	if !decodeJSON(w, r, &body) || !requireName(w, body) {
		return
	}

	team, err := s.resolveRef(r.Context(), store.KindTeam, stringField(body, "team"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if team == nil {
		writeError(w, http.StatusBadRequest, "team is required")

		return
	}

	env, err := s.resolveRef(r.Context(), store.KindEnvironment, stringField(body, "environment"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	teamID := stringField(team, "_id")
	body["team"] = team

	if env != nil {
		body["environment"] = env
	} else {
		delete(body, "environment")
	}

	body["keep"] = false
	body["result"] = map[string]any{}

	if _, ok := body["artifacts"]; !ok {
		body["artifacts"] = []any{}
	}

	if _, ok := body["start"]; !ok {
		body["start"] = s.now().Format(time.RFC3339Nano)
	}

	created, err := s.save(r.Context(), nil, store.KindBuild, teamID, body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// buildListParams are the query parameters of GET build.
type buildListParams struct {
	filter           store.ListFilter
	environmentIDs   []string
	componentIDs     []string
	skip             int
	limit            int
	executionDetails bool
}

func parseBuildListParams(r *http.Request) (*buildListParams, error) {
	q := r.URL.Query()

	teamID := q.Get("teamId")
	if teamID == "" {
		return nil, fmt.Errorf("teamId is required")
	}

	p := &buildListParams{
		filter:           store.ListFilter{Parent: teamID, IDs: queryList(r, "buildIds")},
		environmentIDs:   queryList(r, "environmentIds"),
		componentIDs:     queryList(r, "componentIds"),
		executionDetails: q.Get("returnExecutionDetails") == "true",
	}

	var err error

	if p.skip, err = queryInt(r, "skip", 0); err != nil {
		return nil, err
	}

	if p.limit, err = queryInt(r, "limit", 0); err != nil {
		return nil, err
	}

	// Both ends of the date range are inclusive whole days.
	if raw := q.Get("fromDate"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return nil, err
		}

		p.filter.Since = time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	}

	if raw := q.Get("toDate"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return nil, err
		}

		p.filter.Until = time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, time.UTC)
	}

	return p, nil
}

// handleListBuilds returns a page of a team's builds as {count, builds}.
func (s *server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	p, err := parseBuildListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	if p.filter.Parent, err = s.resolveTeam(r.Context(), p.filter.Parent); err != nil {
		s.writeStoreError(w, err)

		return
	}

	var (
		builds []document
		total  int64
	)

	if len(p.environmentIDs) == 0 && len(p.componentIDs) == 0 {
		p.filter.Offset, p.filter.Limit = p.skip, p.limit

		docs, count, err := s.store.List(r.Context(), store.KindBuild, p.filter)
		if err != nil {
			s.writeStoreError(w, err)

			return
		}

		if builds, err = renderAll(docs); err != nil {
			s.writeStoreError(w, err)

			return
		}

		total = count
	} else {
		all, err := s.listAll(r.Context(), store.KindBuild, p.filter)
		if err != nil {
			s.writeStoreError(w, err)

			return
		}

		matched := make([]document, 0, len(all))

		for _, b := range all {
			if len(p.environmentIDs) > 0 && !slices.Contains(p.environmentIDs, refID(b, "environment")) {
				continue
			}

			if len(p.componentIDs) > 0 && !slices.Contains(p.componentIDs, stringField(b, "component")) {
				continue
			}

			matched = append(matched, b)
		}

		total = int64(len(matched))
		builds = page(matched, p.skip, p.limit)
	}

	if p.executionDetails {
		for _, b := range builds {
			executions, err := s.listAll(r.Context(), store.KindExecution, store.ListFilter{
				Parent: stringField(b, "_id"),
			})
			if err != nil {
				s.writeStoreError(w, err)

				return
			}

			b["executions"] = executions
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  total,
		"builds": builds,
	})
}

// handleDeleteOldBuilds removes a team's builds older than ageInDays.
// Builds marked keep survive.
func (s *server) handleDeleteOldBuilds(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("teamId")
	if teamID == "" {
		writeError(w, http.StatusBadRequest, "teamId is required")

		return
	}

	days, err := queryInt(r, "ageInDays", -1)
	if err != nil || days < 0 {
		writeError(w, http.StatusBadRequest, "ageInDays must be a non-negative integer")

		return
	}

	if teamID, err = s.resolveTeam(r.Context(), teamID); err != nil {
		s.writeStoreError(w, err)

		return
	}

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	deleted, err := s.store.DeleteOlderThan(r.Context(), store.KindBuild, teamID, cutoff)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeMessage(w, fmt.Sprintf("Deleted %d builds", deleted))
}

// handleBuildReport returns a build together with its executions.
func (s *server) handleBuildReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, build, err := s.load(r.Context(), store.KindBuild, id)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	executions, err := s.listAll(r.Context(), store.KindExecution, store.ListFilter{Parent: id})
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"build":      build,
		"executions": executions,
	})
}

func (s *server) handleSetKeep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keep *bool `json:"keep"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Keep == nil {
		writeError(w, http.StatusBadRequest, "keep is required")

		return
	}

	doc, body, err := s.load(r.Context(), store.KindBuild, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	doc.Keep = *req.Keep
	body["keep"] = *req.Keep

	updated, err := s.save(r.Context(), doc, store.KindBuild, doc.Parent, body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleAddArtifacts appends artifacts to a build.
func (s *server) handleAddArtifacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Artifacts []any `json:"artifacts"`
	}

	if !decodeJSON(w, r, &req) {
		return
	}

	doc, body, err := s.load(r.Context(), store.KindBuild, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	artifacts, _ := body["artifacts"].([]any)
	body["artifacts"] = append(append([]any{}, artifacts...), req.Artifacts...)

	updated, err := s.save(r.Context(), doc, store.KindBuild, doc.Parent, body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, updated)
}
