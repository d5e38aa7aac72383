package requests

import (
	"context"
	"encoding/json"

	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// ExecutionRequests covers the execution resource.
type ExecutionRequests struct {
	base
}

// SaveExecution posts a complete execution for a build.
func (r *ExecutionRequests) SaveExecution(ctx context.Context, req model.CreateExecution) (json.RawMessage, error) {
	return r.post(ctx, "execution/", req)
}

func (r *ExecutionRequests) GetExecution(ctx context.Context, executionID string) (json.RawMessage, error) {
	return r.get(ctx, "execution/"+segment(executionID), nil)
}

func (r *ExecutionRequests) DeleteExecution(ctx context.Context, executionID string) (json.RawMessage, error) {
	return r.delete(ctx, "execution/"+segment(executionID), nil)
}

// GetExecutionHistory returns earlier runs of the same test. A zero limit
// means DefaultLimit.
func (r *ExecutionRequests) GetExecutionHistory(
	ctx context.Context,
	executionID string,
	skip, limit int,
) (json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := newQuery().num("skip", skip).num("limit", limit)

	return r.get(ctx, "execution/"+segment(executionID)+"/history", q)
}
