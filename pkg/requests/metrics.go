package requests

import (
	"context"
	"encoding/json"

	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// PhaseMetricsQuery narrows GetPhaseMetrics. Zero fields are not sent.
type PhaseMetricsQuery struct {
	ComponentID    string
	FromDate       *model.Date
	ToDate         *model.Date
	GroupingPeriod model.GroupingPeriod
}

// ScreenshotMetricsQuery narrows GetScreenshotMetrics. Empty strings and
// unset options are not sent.
type ScreenshotMetricsQuery struct {
	View      string
	Tag       string
	Limit     model.Opt[int]
	Thumbnail model.Opt[bool]
}

// MetricRequests covers the metrics resource.
type MetricRequests struct {
	base
}

// GetPhaseMetrics returns a team's build results bucketed by period.
func (r *MetricRequests) GetPhaseMetrics(
	ctx context.Context,
	teamID string,
	pq PhaseMetricsQuery,
) (json.RawMessage, error) {
	q := newQuery().
		str("teamId", teamID).
		optStr("componentId", pq.ComponentID).
		date("fromDate", pq.FromDate).
		date("toDate", pq.ToDate).
		optStr("groupingPeriod", string(pq.GroupingPeriod))

	return r.get(ctx, "metrics/phase", q)
}

// GetScreenshotMetrics returns screenshot counts per view and tag.
func (r *MetricRequests) GetScreenshotMetrics(
	ctx context.Context,
	sq ScreenshotMetricsQuery,
) (json.RawMessage, error) {
	q := newQuery().optStr("view", sq.View).optStr("tag", sq.Tag)

	if limit, ok := sq.Limit.Get(); ok {
		q.num("limit", limit)
	}

	if thumbnail, ok := sq.Thumbnail.Get(); ok {
		q.flag("thumbnail", thumbnail)
	}

	return r.get(ctx, "metrics/screenshot", q)
}

// AnglesRequests covers the service information endpoints.
type AnglesRequests struct {
	base
}

// GetVersions returns the versions of the Angles deployment.
func (r *AnglesRequests) GetVersions(ctx context.Context) (json.RawMessage, error) {
	return r.get(ctx, "angles/versions", nil)
}
