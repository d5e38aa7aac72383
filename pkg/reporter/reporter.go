// Package reporter is a stateful facade over the request groups. It tracks
// the current build, test and action so callers can log steps without
// passing ids around.
//
// A Reporter is not safe for concurrent use.
package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/model"
	"github.com/ethpandaops/angles-client-go/pkg/requests"
	"github.com/ethpandaops/angles-client-go/pkg/transport"
)

const (
	setUpName       = "Set-up"
	testDetailsName = "test-details"
	noAction        = -1
)

// Reporter records one build's tests and sends them to Angles.
type Reporter struct {
	log  logrus.FieldLogger
	http transport.Client
	reqs *requests.Requests
	now  func() time.Time

	buildID   string
	build     json.RawMessage
	execution *model.CreateExecution
	action    int
}

func newReporter(log logrus.FieldLogger, cfg *config.ClientConfig) (*Reporter, error) {
	client, err := transport.New(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	return &Reporter{
		log:    log.WithField("component", "reporter"),
		http:   client,
		reqs:   requests.New(log, client),
		now:    time.Now,
		action: noAction,
	}, nil
}

// SetBaseURL points every subsequent request at baseURL.
func (r *Reporter) SetBaseURL(baseURL string) error {
	return r.http.SetBaseURL(baseURL)
}

// BaseURL returns the current base URL.
func (r *Reporter) BaseURL() string {
	return r.http.BaseURL()
}

// StartBuild creates a build and makes it current.
func (r *Reporter) StartBuild(
	ctx context.Context,
	name, team, environment, component, phase string,
) (json.RawMessage, error) {
	req := model.CreateBuild{
		Name:        name,
		Team:        team,
		Environment: environment,
		Component:   component,
		Start:       model.Some(r.now()),
	}

	if phase != "" {
		req.Phase = model.Some(phase)
	}

	raw, err := r.reqs.Builds.CreateBuild(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating build %q: %w", name, err)
	}

	var created model.CreatedResource
	if err := model.Decode(raw, &created); err != nil {
		return nil, fmt.Errorf("decoding created build: %w", err)
	}

	if created.ID == "" {
		return nil, fmt.Errorf("created build %q has no _id", name)
	}

	r.buildID = created.ID
	r.build = raw

	r.log.WithFields(logrus.Fields{
		"build_id": created.ID,
		"name":     name,
	}).Info("Build started")

	return raw, nil
}

// SetCurrentBuildID makes an existing build current.
func (r *Reporter) SetCurrentBuildID(buildID string) {
	r.buildID = buildID
	r.build = nil
}

// StartTest begins a new execution in the current build.
func (r *Reporter) StartTest(title, suite string) error {
	if r.buildID == "" {
		return ErrNoCurrentBuild
	}

	r.execution = &model.CreateExecution{
		Title:     title,
		Suite:     suite,
		Build:     r.buildID,
		Actions:   []model.Action{},
		Platforms: []model.Platform{},
	}
	r.action = noAction

	r.log.WithFields(logrus.Fields{
		"title": title,
		"suite": suite,
	}).Debug("Test started")

	return nil
}

// UpdateTestName renames the current test. An empty suite keeps the
// existing one.
func (r *Reporter) UpdateTestName(title, suite string) error {
	if r.execution == nil {
		return ErrNoCurrentTest
	}

	r.execution.Title = title

	if suite != "" {
		r.execution.Suite = suite
	}

	return nil
}

// StorePlatformDetails records a platform the current test ran on.
func (r *Reporter) StorePlatformDetails(platform model.Platform) error {
	if r.execution == nil {
		return ErrNoCurrentTest
	}

	r.execution.Platforms = append(r.execution.Platforms, platform)

	return nil
}

// AddAction appends a new action to the current test and makes it current.
// Without a test, a "Set-up" test is started first.
func (r *Reporter) AddAction(name string) error {
	if r.execution == nil {
		if err := r.StartTest(setUpName, setUpName); err != nil {
			return err
		}
	}

	r.execution.Actions = append(r.execution.Actions, model.Action{
		Name:  model.Some(name),
		Start: model.Some(r.now()),
		Steps: []model.Step{},
	})
	r.action = len(r.execution.Actions) - 1

	return nil
}

// AddStep appends step to the current action, adding a "test-details"
// action when there is none. An unset timestamp is filled in.
func (r *Reporter) AddStep(step model.Step) error {
	if r.action == noAction {
		if err := r.AddAction(testDetailsName); err != nil {
			return err
		}
	}

	if !step.Timestamp.IsSet() {
		step.Timestamp = model.Some(r.now())
	}

	action := &r.execution.Actions[r.action]
	action.Steps = append(action.Steps, step)

	return nil
}

func (r *Reporter) logStep(status model.StepState, info, screenshotID string) error {
	step := model.Step{
		Name:   model.Some(string(status)),
		Info:   model.Some(info),
		Status: model.Some(status),
	}

	if screenshotID != "" {
		step.Screenshot = model.Some(screenshotID)
	}

	return r.AddStep(step)
}

func (r *Reporter) checkStep(
	status model.StepState,
	name, expected, actual, info, screenshotID string,
) error {
	step := model.Step{
		Name:     model.Some(name),
		Expected: model.Some(expected),
		Actual:   model.Some(actual),
		Info:     model.Some(info),
		Status:   model.Some(status),
	}

	if screenshotID != "" {
		step.Screenshot = model.Some(screenshotID)
	}

	return r.AddStep(step)
}

func (r *Reporter) Info(info string) error {
	return r.logStep(model.StepInfo, info, "")
}

func (r *Reporter) InfoWithScreenshot(info, screenshotID string) error {
	return r.logStep(model.StepInfo, info, screenshotID)
}

func (r *Reporter) Debug(info string) error {
	return r.logStep(model.StepDebug, info, "")
}

func (r *Reporter) Error(message string) error {
	return r.logStep(model.StepError, message, "")
}

func (r *Reporter) ErrorWithScreenshot(message, screenshotID string) error {
	return r.logStep(model.StepError, message, screenshotID)
}

func (r *Reporter) Pass(name, expected, actual, info string) error {
	return r.checkStep(model.StepPass, name, expected, actual, info, "")
}

func (r *Reporter) PassWithScreenshot(name, expected, actual, info, screenshotID string) error {
	return r.checkStep(model.StepPass, name, expected, actual, info, screenshotID)
}

func (r *Reporter) Fail(name, expected, actual, info string) error {
	return r.checkStep(model.StepFail, name, expected, actual, info, "")
}

func (r *Reporter) FailWithScreenshot(name, expected, actual, info, screenshotID string) error {
	return r.checkStep(model.StepFail, name, expected, actual, info, screenshotID)
}

// SaveTest posts the current test. The test stays current afterwards.
func (r *Reporter) SaveTest(ctx context.Context) (json.RawMessage, error) {
	if r.execution == nil {
		return nil, ErrNoCurrentTest
	}

	raw, err := r.reqs.Executions.SaveExecution(ctx, *r.execution)
	if err != nil {
		return nil, fmt.Errorf("saving test %q: %w", r.execution.Title, err)
	}

	r.log.WithFields(logrus.Fields{
		"title":   r.execution.Title,
		"actions": len(r.execution.Actions),
	}).Info("Test saved")

	return raw, nil
}

// AddArtifacts attaches artifacts to the current build.
func (r *Reporter) AddArtifacts(ctx context.Context, artifacts []model.Artifact) (json.RawMessage, error) {
	if r.buildID == "" {
		return nil, ErrNoCurrentBuild
	}

	return r.reqs.Builds.AddArtifacts(ctx, r.buildID, artifacts)
}

// SaveScreenshot uploads a screenshot for the current build.
func (r *Reporter) SaveScreenshot(ctx context.Context, filePath, view string, tags []string) (json.RawMessage, error) {
	return r.SaveScreenshotWithPlatform(ctx, filePath, view, tags, nil)
}

// SaveScreenshotWithPlatform uploads a screenshot with platform details
// for the current build.
func (r *Reporter) SaveScreenshotWithPlatform(
	ctx context.Context,
	filePath, view string,
	tags []string,
	platform *model.ScreenshotPlatform,
) (json.RawMessage, error) {
	if r.buildID == "" {
		return nil, ErrNoCurrentBuild
	}

	return r.reqs.Screenshots.SaveScreenshot(ctx, model.StoreScreenshot{
		BuildID:   r.buildID,
		View:      view,
		Timestamp: r.now(),
		FilePath:  filePath,
		Tags:      tags,
		Platform:  platform,
	})
}

// CompareScreenshotAgainstBaseline returns the comparison of a stored
// screenshot with its baseline.
func (r *Reporter) CompareScreenshotAgainstBaseline(ctx context.Context, screenshotID string) (json.RawMessage, error) {
	return r.reqs.Screenshots.GetBaselineCompare(ctx, screenshotID)
}

// CurrentBuildID returns the id of the current build, or "".
func (r *Reporter) CurrentBuildID() string {
	return r.buildID
}

// CurrentBuild returns the server's response for the build created by
// StartBuild. It is nil after SetCurrentBuildID.
func (r *Reporter) CurrentBuild() json.RawMessage {
	return r.build
}

// CurrentExecution returns the test being recorded, or nil.
func (r *Reporter) CurrentExecution() *model.CreateExecution {
	return r.execution
}

// CurrentAction returns the action steps are added to, or nil.
func (r *Reporter) CurrentAction() *model.Action {
	if r.execution == nil || r.action == noAction {
		return nil
	}

	return &r.execution.Actions[r.action]
}

// Requests exposes every request group.
func (r *Reporter) Requests() *requests.Requests { return r.reqs }

func (r *Reporter) Teams() *requests.TeamRequests               { return r.reqs.Teams }
func (r *Reporter) Environments() *requests.EnvironmentRequests { return r.reqs.Environments }
func (r *Reporter) Builds() *requests.BuildRequests             { return r.reqs.Builds }
func (r *Reporter) Executions() *requests.ExecutionRequests     { return r.reqs.Executions }
func (r *Reporter) Screenshots() *requests.ScreenshotRequests   { return r.reqs.Screenshots }
func (r *Reporter) Baselines() *requests.BaselineRequests       { return r.reqs.Baselines }
func (r *Reporter) Metrics() *requests.MetricRequests           { return r.reqs.Metrics }
func (r *Reporter) Angles() *requests.AnglesRequests            { return r.reqs.Angles }
