package requests

import (
	"context"
	"encoding/json"

	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// TeamRequests covers the team resource.
type TeamRequests struct {
	base
}

func (r *TeamRequests) CreateTeam(ctx context.Context, req model.CreateTeam) (json.RawMessage, error) {
	return r.post(ctx, "team", req)
}

func (r *TeamRequests) GetTeams(ctx context.Context) (json.RawMessage, error) {
	return r.get(ctx, "team", nil)
}

func (r *TeamRequests) GetTeam(ctx context.Context, teamID string) (json.RawMessage, error) {
	return r.get(ctx, "team/"+segment(teamID), nil)
}

func (r *TeamRequests) DeleteTeam(ctx context.Context, teamID string) (json.RawMessage, error) {
	return r.delete(ctx, "team/"+segment(teamID), nil)
}

// UpdateTeam renames a team.
func (r *TeamRequests) UpdateTeam(ctx context.Context, teamID, name string) (json.RawMessage, error) {
	return r.put(ctx, "team/"+segment(teamID), map[string]any{"name": name})
}

// AddComponentsToTeam sends the component names to add to a team.
func (r *TeamRequests) AddComponentsToTeam(
	ctx context.Context,
	teamID string,
	components []string,
) (json.RawMessage, error) {
	if components == nil {
		components = []string{}
	}

	return r.put(ctx, "team/"+segment(teamID), map[string]any{"components": components})
}
