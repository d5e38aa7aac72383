package model

import "time"

// CreateBuild is the body of POST build.
type CreateBuild struct {
	Environment string         `json:"environment"`
	Team        string         `json:"team"`
	Component   string         `json:"component"`
	Name        string         `json:"name"`
	Start       Opt[time.Time] `json:"start"`
	Phase       Opt[string]    `json:"phase"`
}

// CreateExecution is the body of POST execution/. Build holds the build id.
type CreateExecution struct {
	Title     string         `json:"title"`
	Suite     string         `json:"suite"`
	Build     string         `json:"build"`
	Feature   Opt[string]    `json:"feature"`
	Actions   []Action       `json:"actions"`
	Platforms []Platform     `json:"platforms"`
	Tags      []string       `json:"tags"`
	Meta      map[string]any `json:"meta"`
}

// CreateEnvironment is the body of POST environment.
type CreateEnvironment struct {
	Name string `json:"name"`
}

// CreateTeam is the body of POST team.
type CreateTeam struct {
	Name       string           `json:"name"`
	Components []map[string]any `json:"components"`
}

// ScreenshotPlatform is the platform subset sent with a screenshot upload.
type ScreenshotPlatform struct {
	PlatformName    Opt[string] `json:"platformName"`
	PlatformVersion Opt[string] `json:"platformVersion"`
	BrowserName     Opt[string] `json:"browserName"`
	BrowserVersion  Opt[string] `json:"browserVersion"`
	DeviceName      Opt[string] `json:"deviceName"`
}

// StoreScreenshot describes a screenshot upload. FilePath is read from the
// local filesystem and never sent as a form field.
type StoreScreenshot struct {
	BuildID   string              `json:"buildId"`
	View      string              `json:"view"`
	Timestamp time.Time           `json:"timestamp"`
	FilePath  string              `json:"filePath"`
	Tags      []string            `json:"tags"`
	Platform  *ScreenshotPlatform `json:"platform"`
}
