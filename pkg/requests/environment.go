package requests

import (
	"context"
	"encoding/json"

	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// EnvironmentRequests covers the environment resource.
type EnvironmentRequests struct {
	base
}

func (r *EnvironmentRequests) CreateEnvironment(
	ctx context.Context,
	req model.CreateEnvironment,
) (json.RawMessage, error) {
	return r.post(ctx, "environment", req)
}

func (r *EnvironmentRequests) GetEnvironment(ctx context.Context, environmentID string) (json.RawMessage, error) {
	return r.get(ctx, "environment/"+segment(environmentID), nil)
}

func (r *EnvironmentRequests) GetEnvironments(ctx context.Context) (json.RawMessage, error) {
	return r.get(ctx, "environment", nil)
}

func (r *EnvironmentRequests) DeleteEnvironment(ctx context.Context, environmentID string) (json.RawMessage, error) {
	return r.delete(ctx, "environment/"+segment(environmentID), nil)
}

// UpdateEnvironment renames an environment.
func (r *EnvironmentRequests) UpdateEnvironment(
	ctx context.Context,
	environmentID, name string,
) (json.RawMessage, error) {
	return r.put(ctx, "environment/"+segment(environmentID), map[string]any{"name": name})
}
