package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 20

// document is a stored body decoded for editing.
type document map[string]any

// errorResponse is the error payload returned by every handler.
type errorResponse struct {
	Message string `json:"message"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, model.DefaultResponse{Message: msg})
}

// writeStoreError maps store failures to HTTP responses.
func (s *server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	s.log.WithError(err).Error("Store operation failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decodeJSON reads a JSON object request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))

		return false
	}

	return true
}

// render returns the API representation of a stored document.
func render(doc *store.Document) (document, error) {
	body := document{}
	if err := json.Unmarshal([]byte(doc.Body), &body); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", doc.Kind, doc.ID, err)
	}

	body["_id"] = doc.ID

	return body, nil
}

func renderAll(docs []store.Document) ([]document, error) {
	out := make([]document, 0, len(docs))

	for i := range docs {
		body, err := render(&docs[i])
		if err != nil {
			return nil, err
		}

		out = append(out, body)
	}

	return out, nil
}

// load fetches and renders one document.
func (s *server) load(ctx context.Context, kind, id string) (*store.Document, document, error) {
	doc, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return nil, nil, err
	}

	body, err := render(doc)
	if err != nil {
		return nil, nil, err
	}

	return doc, body, nil
}

// save writes body back into doc, or into a new document when doc is nil,
// and returns the rendered result.
func (s *server) save(
	ctx context.Context,
	doc *store.Document,
	kind, parent string,
	body document,
) (document, error) {
	if doc == nil {
		doc = &store.Document{
			ID:        uuid.NewString(),
			Kind:      kind,
			Parent:    parent,
			CreatedAt: s.now(),
		}
	}

	delete(body, "_id")

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", kind, err)
	}

	doc.Body = string(data)

	if err := s.store.Put(ctx, doc); err != nil {
		return nil, err
	}

	return render(doc)
}

// listAll returns every rendered document of kind matching filter.
func (s *server) listAll(ctx context.Context, kind string, filter store.ListFilter) ([]document, error) {
	docs, _, err := s.store.List(ctx, kind, filter)
	if err != nil {
		return nil, err
	}

	return renderAll(docs)
}

// handleList returns every document of kind.
func (s *server) handleList(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := s.listAll(r.Context(), kind, store.ListFilter{})
		if err != nil {
			s.writeStoreError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, docs)
	}
}

// handleGet returns one document of kind by the {id} URL parameter.
func (s *server) handleGet(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, body, err := s.load(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			s.writeStoreError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, body)
	}
}

// handleDelete removes one document of kind by the {id} URL parameter.
func (s *server) handleDelete(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := s.store.Delete(r.Context(), kind, id); err != nil {
			s.writeStoreError(w, err)

			return
		}

		writeMessage(w, fmt.Sprintf("Deleted %s %s", kind, id))
	}
}

// handleVersions reports the configured deployment versions.
func (s *server) handleVersions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"angles": s.cfg.Versions.Angles,
		"node":   s.cfg.Versions.Node,
		"mongo":  s.cfg.Versions.Mongo,
	})
}

// --- Query helpers ---

// queryInt parses an integer parameter, returning def when it is absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}

	return v, nil
}

// queryList splits a comma-separated parameter.
func queryList(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// page slices docs to the requested window.
func page[T any](docs []T, skip, limit int) []T {
	if skip >= len(docs) {
		return []T{}
	}

	docs = docs[skip:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}

	return docs
}

// stringField returns body[key] when it is a string.
func stringField(body document, key string) string {
	v, _ := body[key].(string)

	return v
}

// refID returns the id of a populated reference, or the reference itself
// when it is a plain string.
func refID(body document, key string) string {
	switch v := body[key].(type) {
	case map[string]any:
		id, _ := v["_id"].(string)

		return id
	case document:
		return stringField(v, "_id")
	case string:
		return v
	default:
		return ""
	}
}

// requireName rejects bodies without a non-empty name.
func requireName(w http.ResponseWriter, body document) bool {
	if strings.TrimSpace(stringField(body, "name")) == "" {
		writeError(w, http.StatusBadRequest, "name is required")

		return false
	}

	return true
}
