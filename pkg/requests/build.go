package requests

import (
	"context"
	"encoding/json"

	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// DefaultLimit is the page size used when a filter leaves Limit unset.
const DefaultLimit = 50

// BuildFilters narrows a build listing. A zero Limit means DefaultLimit.
type BuildFilters struct {
	EnvironmentIDs []string
	ComponentIDs   []string
	Skip           int
	Limit          int
}

func (f BuildFilters) apply(q query) query {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	return q.num("skip", f.Skip).
		num("limit", limit).
		list("environmentIds", f.EnvironmentIDs).
		list("componentIds", f.ComponentIDs)
}

// BuildDateFilters adds an inclusive date range to BuildFilters.
type BuildDateFilters struct {
	BuildFilters
	FromDate *model.Date
	ToDate   *model.Date
}

// BuildRequests covers the build resource.
type BuildRequests struct {
	base
}

func (r *BuildRequests) CreateBuild(ctx context.Context, req model.CreateBuild) (json.RawMessage, error) {
	return r.post(ctx, "build", req)
}

// GetBuilds lists a team's builds, optionally restricted to buildIDs.
// returnExecutionDetails is only sent when true.
func (r *BuildRequests) GetBuilds(
	ctx context.Context,
	teamID string,
	buildIDs []string,
	returnExecutionDetails bool,
) (json.RawMessage, error) {
	q := newQuery().str("teamId", teamID).list("buildIds", buildIDs)
	if returnExecutionDetails {
		q.flag("returnExecutionDetails", true)
	}

	return r.get(ctx, "build", q)
}

// GetBuildsWithFilters pages through a team's builds.
func (r *BuildRequests) GetBuildsWithFilters(
	ctx context.Context,
	teamID string,
	filters BuildFilters,
) (json.RawMessage, error) {
	q := filters.apply(newQuery().str("teamId", teamID))

	return r.get(ctx, "build", q)
}

// GetBuildsWithDateFilters pages through a team's builds within a date
// range.
func (r *BuildRequests) GetBuildsWithDateFilters(
	ctx context.Context,
	teamID string,
	filters BuildDateFilters,
) (json.RawMessage, error) {
	q := filters.apply(newQuery().str("teamId", teamID)).
		date("fromDate", filters.FromDate).
		date("toDate", filters.ToDate)

	return r.get(ctx, "build", q)
}

// DeleteBuilds removes a team's builds older than ageInDays.
func (r *BuildRequests) DeleteBuilds(ctx context.Context, teamID string, ageInDays int) (json.RawMessage, error) {
	return r.delete(ctx, "build", newQuery().str("teamId", teamID).num("ageInDays", ageInDays))
}

func (r *BuildRequests) GetBuild(ctx context.Context, buildID string) (json.RawMessage, error) {
	return r.get(ctx, "build/"+segment(buildID), nil)
}

func (r *BuildRequests) GetBuildReport(ctx context.Context, buildID string) (json.RawMessage, error) {
	return r.get(ctx, "build/"+segment(buildID)+"/report", nil)
}

func (r *BuildRequests) DeleteBuild(ctx context.Context, buildID string) (json.RawMessage, error) {
	return r.delete(ctx, "build/"+segment(buildID), nil)
}

// SetKeep marks a build as exempt from (or subject to) age-based cleanup.
func (r *BuildRequests) SetKeep(ctx context.Context, buildID string, keep bool) (json.RawMessage, error) {
	return r.put(ctx, "build/"+segment(buildID)+"/keep", map[string]any{"keep": keep})
}

// AddArtifacts attaches artifacts to a build.
func (r *BuildRequests) AddArtifacts(
	ctx context.Context,
	buildID string,
	artifacts []model.Artifact,
) (json.RawMessage, error) {
	if artifacts == nil {
		artifacts = []model.Artifact{}
	}

	return r.put(ctx, "build/"+segment(buildID)+"/artifacts", map[string]any{"artifacts": artifacts})
}
