package model

import (
	"encoding/json"
	"time"
)

// DefaultResponse is the generic message body returned by mutations.
type DefaultResponse struct {
	Message string `json:"message"`
}

// BuildsResponse is a page of builds.
type BuildsResponse struct {
	Count  int               `json:"count"`
	Builds []json.RawMessage `json:"builds"`
}

// ExecutionResponse is a page of executions. The server names the list
// "builds".
type ExecutionResponse struct {
	Count      int               `json:"count"`
	Executions []json.RawMessage `json:"builds"`
}

// ImageCompareResponse is the result of a baseline comparison.
type ImageCompareResponse struct {
	IsSameDimensions      bool    `json:"isSameDimensions"`
	RawMisMatchPercentage float64 `json:"rawMisMatchPercentage"`
	MisMatchPercentage    float64 `json:"misMatchPercentage"`
	AnalysisTime          float64 `json:"analysisTime"`
}

// Period is one bucket of phase metrics.
type Period struct {
	GroupID    int            `json:"groupId"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	Result     map[string]any `json:"result"`
	BuildCount int            `json:"buildCount"`
	Phases     []any          `json:"phases"`
}

// PhaseMetrics is the response of GET metrics/phase.
type PhaseMetrics struct {
	ToDate         string   `json:"toDate"`
	FromDate       string   `json:"fromDate"`
	GroupingPeriod string   `json:"groupingPeriod"`
	Periods        []Period `json:"periods"`
}

// ScreenshotMetric counts screenshots for one view or tag.
type ScreenshotMetric struct {
	ID        string               `json:"_id"`
	Count     int                  `json:"count"`
	Platforms []ScreenshotPlatform `json:"platforms"`
}

// ScreenshotMetrics is the response of GET metrics/screenshot.
type ScreenshotMetrics struct {
	Views []ScreenshotMetric `json:"views"`
	Tags  []ScreenshotMetric `json:"tags"`
}

// CreatedResource is the minimal shape of a newly created document.
type CreatedResource struct {
	ID string `json:"_id"`
}

// Decode unmarshals a raw response body into v. An empty body leaves v
// untouched.
func Decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}

	return json.Unmarshal(raw, v)
}
