package requests

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// BaselineRequests covers the baseline resource.
type BaselineRequests struct {
	base
}

type setBaselineBody struct {
	View         model.Opt[string] `json:"view"`
	ScreenshotID model.Opt[string] `json:"screenshotId"`
}

// SetBaseline makes screenshot the baseline for its view.
func (r *BaselineRequests) SetBaseline(ctx context.Context, screenshot *model.Screenshot) (json.RawMessage, error) {
	var body setBaselineBody
	if screenshot != nil {
		body = setBaselineBody{View: screenshot.View, ScreenshotID: screenshot.ID}
	}

	return r.post(ctx, "baseline", body)
}

// GetBaselineForScreenshot finds the baseline matching a screenshot's view
// and platform. Devices are matched by name; browsers by name and screen
// size. Unset fields are not sent.
func (r *BaselineRequests) GetBaselineForScreenshot(
	ctx context.Context,
	screenshot *model.Screenshot,
) (json.RawMessage, error) {
	q := newQuery()

	var platform model.Platform

	if screenshot != nil {
		q.optStr("view", screenshot.View.OrElse(""))

		if screenshot.Platform != nil {
			platform = *screenshot.Platform
		}
	}

	q.optStr("platformName", platform.PlatformName.OrElse(""))

	if device := platform.DeviceName.OrElse(""); device != "" {
		q.str("deviceName", device)
	} else {
		q.optStr("browserName", platform.BrowserName.OrElse(""))

		if screenshot != nil {
			if h, ok := screenshot.Height.Get(); ok {
				q.str("screenHeight", strconv.Itoa(h))
			}

			if w, ok := screenshot.Width.Get(); ok {
				q.str("screenWidth", strconv.Itoa(w))
			}
		}
	}

	return r.get(ctx, "baseline/", q)
}

func (r *BaselineRequests) GetBaselines(ctx context.Context) (json.RawMessage, error) {
	return r.get(ctx, "baseline", nil)
}

func (r *BaselineRequests) GetBaseline(ctx context.Context, baselineID string) (json.RawMessage, error) {
	return r.get(ctx, "baseline/"+segment(baselineID), nil)
}

func (r *BaselineRequests) DeleteBaseline(ctx context.Context, baselineID string) (json.RawMessage, error) {
	return r.delete(ctx, "baseline/"+segment(baselineID), nil)
}

type updateBaselineBody struct {
	ScreenshotID model.Opt[string] `json:"screenshotId"`
	IgnoreBoxes  []model.IgnoreBox `json:"ignoreBoxes"`
}

// UpdateBaseline swaps the baseline screenshot and/or its ignore boxes. An
// empty screenshotID and nil ignoreBoxes are left out of the body; an empty
// non-nil slice clears the boxes.
func (r *BaselineRequests) UpdateBaseline(
	ctx context.Context,
	baselineID, screenshotID string,
	ignoreBoxes []model.IgnoreBox,
) (json.RawMessage, error) {
	body := updateBaselineBody{IgnoreBoxes: ignoreBoxes}
	if screenshotID != "" {
		body.ScreenshotID = model.Some(screenshotID)
	}

	return r.put(ctx, "baseline/"+segment(baselineID), body)
}
