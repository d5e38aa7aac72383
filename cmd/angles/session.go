package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// session is a recorded test run replayed by `angles report`.
type session struct {
	Build       sessionBuild        `yaml:"build"`
	Screenshots []sessionScreenshot `yaml:"screenshots,omitempty"`
	Tests       []sessionTest       `yaml:"tests"`
	Artifacts   []sessionArtifact   `yaml:"artifacts,omitempty"`
}

type sessionBuild struct {
	Name        string `yaml:"name"`
	Team        string `yaml:"team"`
	Environment string `yaml:"environment"`
	Component   string `yaml:"component"`
	Phase       string `yaml:"phase,omitempty"`
}

type sessionPlatform struct {
	PlatformName    string  `yaml:"platform_name,omitempty"`
	PlatformVersion string  `yaml:"platform_version,omitempty"`
	BrowserName     string  `yaml:"browser_name,omitempty"`
	BrowserVersion  string  `yaml:"browser_version,omitempty"`
	DeviceName      string  `yaml:"device_name,omitempty"`
	UserAgent       string  `yaml:"user_agent,omitempty"`
	ScreenHeight    int     `yaml:"screen_height,omitempty"`
	ScreenWidth     int     `yaml:"screen_width,omitempty"`
	PixelRatio      float64 `yaml:"pixel_ratio,omitempty"`
}

// sessionScreenshot is uploaded before any test runs. Steps refer to it by
// Ref.
type sessionScreenshot struct {
	Ref      string           `yaml:"ref"`
	File     string           `yaml:"file"`
	View     string           `yaml:"view"`
	Tags     []string         `yaml:"tags,omitempty"`
	Platform *sessionPlatform `yaml:"platform,omitempty"`
}

type sessionTest struct {
	Title    string           `yaml:"title"`
	Suite    string           `yaml:"suite"`
	Platform *sessionPlatform `yaml:"platform,omitempty"`
	Actions  []sessionAction  `yaml:"actions"`
}

type sessionAction struct {
	Name  string        `yaml:"name"`
	Steps []sessionStep `yaml:"steps"`
}

type sessionStep struct {
	Status     string `yaml:"status"`
	Name       string `yaml:"name,omitempty"`
	Expected   string `yaml:"expected,omitempty"`
	Actual     string `yaml:"actual,omitempty"`
	Info       string `yaml:"info,omitempty"`
	Screenshot string `yaml:"screenshot,omitempty"`
}

type sessionArtifact struct {
	GroupID    string `yaml:"group_id"`
	ArtifactID string `yaml:"artifact_id"`
	Version    string `yaml:"version"`
}

// loadSession reads a session file. Build fields missing from the file are
// taken from defaults and relative screenshot paths are resolved against
// the file's directory.
func loadSession(path string, defaults config.ReporterConfig) (*session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var s session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}

	s.Build.applyDefaults(defaults)

	dir := filepath.Dir(path)

	for i := range s.Screenshots {
		if f := s.Screenshots[i].File; f != "" && !filepath.IsAbs(f) {
			s.Screenshots[i].File = filepath.Join(dir, f)
		}
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (b *sessionBuild) applyDefaults(d config.ReporterConfig) {
	if b.Name == "" {
		b.Name = d.BuildName
	}

	if b.Team == "" {
		b.Team = d.Team
	}

	if b.Environment == "" {
		b.Environment = d.Environment
	}

	if b.Component == "" {
		b.Component = d.Component
	}

	if b.Phase == "" {
		b.Phase = d.Phase
	}
}

func (s *session) validate() error {
	switch {
	case s.Build.Name == "":
		return fmt.Errorf("session: build.name is required")
	case s.Build.Team == "":
		return fmt.Errorf("session: build.team is required")
	case s.Build.Environment == "":
		return fmt.Errorf("session: build.environment is required")
	case s.Build.Component == "":
		return fmt.Errorf("session: build.component is required")
	}

	refs := make(map[string]struct{}, len(s.Screenshots))

	for i, shot := range s.Screenshots {
		if shot.Ref == "" || shot.File == "" {
			return fmt.Errorf("session: screenshots[%d] needs ref and file", i)
		}

		if _, dup := refs[shot.Ref]; dup {
			return fmt.Errorf("session: duplicate screenshot ref %q", shot.Ref)
		}

		refs[shot.Ref] = struct{}{}
	}

	for i, test := range s.Tests {
		if test.Title == "" {
			return fmt.Errorf("session: tests[%d].title is required", i)
		}

		for j, action := range test.Actions {
			for k, step := range action.Steps {
				if _, err := model.ParseStepState(step.Status); err != nil {
					return fmt.Errorf("session: tests[%d].actions[%d].steps[%d]: %w", i, j, k, err)
				}
			}
		}
	}

	return nil
}

// replayer is the part of the reporter a session drives.
type replayer interface {
	StartBuild(ctx context.Context, name, team, environment, component, phase string) (json.RawMessage, error)
	SaveScreenshotWithPlatform(
		ctx context.Context,
		filePath, view string,
		tags []string,
		platform *model.ScreenshotPlatform,
	) (json.RawMessage, error)
	StartTest(title, suite string) error
	StorePlatformDetails(platform model.Platform) error
	AddAction(name string) error
	AddStep(step model.Step) error
	SaveTest(ctx context.Context) (json.RawMessage, error)
	AddArtifacts(ctx context.Context, artifacts []model.Artifact) (json.RawMessage, error)
	CurrentBuildID() string
}

// replay sends s through r: the build first, then screenshots, each test
// and finally the artifacts.
func replay(ctx context.Context, log logrus.FieldLogger, r replayer, s *session) error {
	b := s.Build

	if _, err := r.StartBuild(ctx, b.Name, b.Team, b.Environment, b.Component, b.Phase); err != nil {
		return err
	}

	shots := make(map[string]string, len(s.Screenshots))

	for _, shot := range s.Screenshots {
		raw, err := r.SaveScreenshotWithPlatform(ctx, shot.File, shot.View, shot.Tags, shot.Platform.screenshot())
		if err != nil {
			return fmt.Errorf("uploading screenshot %q: %w", shot.Ref, err)
		}

		var created model.CreatedResource
		if err := model.Decode(raw, &created); err != nil {
			return fmt.Errorf("decoding screenshot %q: %w", shot.Ref, err)
		}

		shots[shot.Ref] = created.ID
	}

	for _, test := range s.Tests {
		if err := replayTest(ctx, r, test, shots); err != nil {
			return fmt.Errorf("replaying test %q: %w", test.Title, err)
		}
	}

	if len(s.Artifacts) > 0 {
		artifacts := make([]model.Artifact, 0, len(s.Artifacts))

		for _, a := range s.Artifacts {
			artifacts = append(artifacts, model.Artifact{
				GroupID:    model.Some(a.GroupID),
				ArtifactID: model.Some(a.ArtifactID),
				Version:    model.Some(a.Version),
			})
		}

		if _, err := r.AddArtifacts(ctx, artifacts); err != nil {
			return fmt.Errorf("adding artifacts: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"build_id":    r.CurrentBuildID(),
		"tests":       len(s.Tests),
		"screenshots": len(shots),
	}).Info("Session replayed")

	return nil
}

func replayTest(ctx context.Context, r replayer, test sessionTest, shots map[string]string) error {
	if err := r.StartTest(test.Title, test.Suite); err != nil {
		return err
	}

	if test.Platform != nil {
		if err := r.StorePlatformDetails(test.Platform.platform()); err != nil {
			return err
		}
	}

	for _, action := range test.Actions {
		if err := r.AddAction(action.Name); err != nil {
			return err
		}

		for _, step := range action.Steps {
			if err := r.AddStep(step.toModel(shots)); err != nil {
				return err
			}
		}
	}

	_, err := r.SaveTest(ctx)

	return err
}

// toModel converts a step. A screenshot value that is not a known ref is
// taken to be the id of an already stored screenshot.
func (s sessionStep) toModel(shots map[string]string) model.Step {
	status, _ := model.ParseStepState(s.Status)

	step := model.Step{Status: model.Some(status)}

	name := s.Name

	switch status {
	case model.StepPass, model.StepFail:
		step.Expected = model.Some(s.Expected)
		step.Actual = model.Some(s.Actual)
	default:
		if name == "" {
			name = string(status)
		}
	}

	step.Name = model.Some(name)
	step.Info = model.Some(s.Info)

	if s.Screenshot != "" {
		id, ok := shots[s.Screenshot]
		if !ok {
			id = s.Screenshot
		}

		step.Screenshot = model.Some(id)
	}

	return step
}

func (p *sessionPlatform) screenshot() *model.ScreenshotPlatform {
	if p == nil {
		return nil
	}

	return &model.ScreenshotPlatform{
		PlatformName:    optString(p.PlatformName),
		PlatformVersion: optString(p.PlatformVersion),
		BrowserName:     optString(p.BrowserName),
		BrowserVersion:  optString(p.BrowserVersion),
		DeviceName:      optString(p.DeviceName),
	}
}

func (p *sessionPlatform) platform() model.Platform {
	out := model.Platform{
		PlatformName:    optString(p.PlatformName),
		PlatformVersion: optString(p.PlatformVersion),
		BrowserName:     optString(p.BrowserName),
		BrowserVersion:  optString(p.BrowserVersion),
		DeviceName:      optString(p.DeviceName),
		UserAgent:       optString(p.UserAgent),
	}

	if p.ScreenHeight > 0 {
		out.ScreenHeight = model.Some(p.ScreenHeight)
	}

	if p.ScreenWidth > 0 {
		out.ScreenWidth = model.Some(p.ScreenWidth)
	}

	if p.PixelRatio > 0 {
		out.PixelRatio = model.Some(p.PixelRatio)
	}

	return out
}

func optString(s string) model.Opt[string] {
	if s == "" {
		return model.None[string]()
	}

	return model.Some(s)
}
