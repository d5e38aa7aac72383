package mockserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// stateOf derives a result state from step statuses. Any FAIL wins, then
// ERROR; a test without steps is SKIPPED.
func stateOf(statuses []string) model.ExecutionState {
	if len(statuses) == 0 {
		return model.ExecutionSkipped
	}

	state := model.ExecutionPass

	for _, st := range statuses {
		switch model.StepState(st) {
		case model.StepFail:
			return model.ExecutionFail
		case model.StepError:
			state = model.ExecutionError
		}
	}

	return state
}

// summarize sets the status of every action and of the execution itself.
func summarize(body document) model.ExecutionState {
	actions, _ := body["actions"].([]any)

	var all []string

	for _, a := range actions {
		action, ok := a.(map[string]any)
		if !ok {
			continue
		}

		steps, _ := action["steps"].([]any)
		statuses := make([]string, 0, len(steps))

		for _, st := range steps {
			if step, ok := st.(map[string]any); ok {
				if status, ok := step["status"].(string); ok {
					statuses = append(statuses, status)
				}
			}
		}

		action["status"] = string(stateOf(statuses))
		all = append(all, statuses...)
	}

	state := stateOf(all)
	body["status"] = string(state)

	return state
}

// handleCreateExecution stores an execution and tallies its state on the
// owning build.
func (s *server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var body document
	if !decodeJSON(w, r, &body) {
		return
	}

	buildID := stringField(body, "build")
	if buildID == "" {
		writeError(w, http.StatusBadRequest, "build is required")

		return
	}

	buildDoc, build, err := s.load(r.Context(), store.KindBuild, buildID)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	state := summarize(body)
	body["build"] = document{"_id": buildID}

	created, err := s.save(r.Context(), nil, store.KindExecution, buildID, body)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if err := s.tallyBuild(r.Context(), buildDoc, build, state); err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *server) tallyBuild(
	ctx context.Context,
	doc *store.Document,
	build document,
	state model.ExecutionState,
) error {
	result, _ := build["result"].(map[string]any)
	if result == nil {
		result = map[string]any{}
	}

	count, _ := result[string(state)].(float64)
	result[string(state)] = count + 1
	build["result"] = result

	switch {
	case result[string(model.ExecutionFail)] != nil:
		build["status"] = string(model.ExecutionFail)
	case result[string(model.ExecutionError)] != nil:
		build["status"] = string(model.ExecutionError)
	default:
		build["status"] = string(model.ExecutionPass)
	}

	build["end"] = s.now().Format(time.RFC3339Nano)

	_, err := s.save(ctx, doc, store.KindBuild, doc.Parent, build)

	return err
}

// handleExecutionHistory pages through earlier runs of the same test,
// matched by title and suite, as {count, builds}.
func (s *server) handleExecutionHistory(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	_, execution, err := s.load(r.Context(), store.KindExecution, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	all, err := s.listAll(r.Context(), store.KindExecution, store.ListFilter{})
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	title, suite := stringField(execution, "title"), stringField(execution, "suite")
	history := make([]document, 0, len(all))

	for _, e := range all {
		if stringField(e, "title") == title && stringField(e, "suite") == suite {
			history = append(history, e)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(history),
		"builds": page(history, skip, limit),
	})
}
