package mockserver

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
)

func (s *server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var body document
	if !decodeJSON(w, r, &body) || !requireName(w, body) {
		return
	}

	if _, ok := body["components"].([]any); !ok {
		body["components"] = []any{}
	}

	created, err := s.save(r.Context(), nil, store.KindTeam, "", body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, created)
}

type updateTeamRequest struct {
	Name       *string  `json:"name"`
	Components []string `json:"components"`
}

// handleUpdateTeam renames a team and/or adds components to it. Components
// already present by name are not duplicated.
func (s *server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req updateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, body, err := s.load(r.Context(), store.KindTeam, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name must not be empty")

			return
		}

		body["name"] = *req.Name
	}

	components, _ := body["components"].([]any)
	names := make([]string, 0, len(components))

	for _, c := range components {
		if m, ok := c.(map[string]any); ok {
			if name, ok := m["name"].(string); ok {
				names = append(names, name)
			}
		}
	}

	for _, name := range req.Components {
		if name == "" || slices.Contains(names, name) {
			continue
		}

		names = append(names, name)
		components = append(components, map[string]any{"name": name})
	}

	if components == nil {
		components = []any{}
	}

	body["components"] = components

	updated, err := s.save(r.Context(), doc, store.KindTeam, "", body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var body document
	if !decodeJSON(w, r, &body) || !requireName(w, body) {
		return
	}

	created, err := s.save(r.Context(), nil, store.KindEnvironment, "", body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleUpdateEnvironment(w http.ResponseWriter, r *http.Request) {
	var req document
	if !decodeJSON(w, r, &req) || !requireName(w, req) {
		return
	}

	doc, body, err := s.load(r.Context(), store.KindEnvironment, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	body["name"] = req["name"]

	updated, err := s.save(r.Context(), doc, store.KindEnvironment, "", body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, updated)
}
