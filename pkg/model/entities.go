// Package model holds the Angles domain records, used both as outbound
// request payloads and as loose response shapes.
//
// Scalar optional fields use Opt, optional nested records use pointers and
// optional lists use nil slices. Absent values are omitted on the wire; a
// non-nil empty slice is sent as [].
package model

import "time"

// Team owns builds and lists its components.
type Team struct {
	ID         Opt[string]      `json:"_id"`
	Name       Opt[string]      `json:"name"`
	Components []map[string]any `json:"components"`
}

// Environment is a named deployment target.
type Environment struct {
	ID   Opt[string] `json:"_id"`
	Name Opt[string] `json:"name"`
}

// Artifact identifies a versioned artifact under test.
type Artifact struct {
	GroupID    Opt[string] `json:"groupId"`
	ArtifactID Opt[string] `json:"artifactId"`
	Version    Opt[string] `json:"version"`
}

// Build is a tracked test run grouping executions.
type Build struct {
	ID          Opt[string]         `json:"_id"`
	Name        Opt[string]         `json:"name"`
	Result      map[string]any      `json:"result"`
	Status      Opt[ExecutionState] `json:"status"`
	Start       Opt[time.Time]      `json:"start"`
	End         Opt[time.Time]      `json:"end"`
	Artifacts   []Artifact          `json:"artifacts"`
	Keep        Opt[bool]           `json:"keep"`
	Environment *Environment        `json:"environment"`
	Team        *Team               `json:"team"`
	Component   Opt[string]         `json:"component"`
	Suites      []any               `json:"suites"`
}

// Platform describes the device or browser a test ran on.
type Platform struct {
	ID              Opt[string]  `json:"_id"`
	PlatformName    Opt[string]  `json:"platformName"`
	PlatformVersion Opt[string]  `json:"platformVersion"`
	BrowserName     Opt[string]  `json:"browserName"`
	BrowserVersion  Opt[string]  `json:"browserVersion"`
	DeviceName      Opt[string]  `json:"deviceName"`
	UserAgent       Opt[string]  `json:"userAgent"`
	ScreenHeight    Opt[int]     `json:"screenHeight"`
	ScreenWidth     Opt[int]     `json:"screenWidth"`
	PixelRatio      Opt[float64] `json:"pixelRatio"`
}

// Step is one reported assertion or log line.
type Step struct {
	Name       Opt[string]    `json:"name"`
	Expected   Opt[string]    `json:"expected"`
	Actual     Opt[string]    `json:"actual"`
	Info       Opt[string]    `json:"info"`
	Status     Opt[StepState] `json:"status"`
	Timestamp  Opt[time.Time] `json:"timestamp"`
	Screenshot Opt[string]    `json:"screenshot"`
}

// Action is a named phase of a test. Steps are kept in reporting order.
type Action struct {
	Name   Opt[string]         `json:"name"`
	Steps  []Step              `json:"steps"`
	Status Opt[ExecutionState] `json:"status"`
	Start  Opt[time.Time]      `json:"start"`
	End    Opt[time.Time]      `json:"end"`
}

// Execution is one logical test case within a build.
type Execution struct {
	ID        Opt[string]         `json:"_id"`
	Title     Opt[string]         `json:"title"`
	Suite     Opt[string]         `json:"suite"`
	Feature   Opt[string]         `json:"feature"`
	Build     *Build              `json:"build"`
	Start     Opt[time.Time]      `json:"start"`
	End       Opt[time.Time]      `json:"end"`
	Actions   []Action            `json:"actions"`
	Platforms []Platform          `json:"platforms"`
	Tags      []string            `json:"tags"`
	Meta      map[string]any      `json:"meta"`
	Status    Opt[ExecutionState] `json:"status"`
}

// Screenshot is an image captured during a test.
type Screenshot struct {
	ID         Opt[string]    `json:"_id"`
	Build      *Build         `json:"build"`
	Thumbnail  Opt[string]    `json:"thumbnail"`
	Timestamp  Opt[time.Time] `json:"timestamp"`
	Path       Opt[string]    `json:"path"`
	View       Opt[string]    `json:"view"`
	Height     Opt[int]       `json:"height"`
	Width      Opt[int]       `json:"width"`
	Platform   *Platform      `json:"platform"`
	PlatformID Opt[string]    `json:"platformId"`
	Tags       []string       `json:"tags"`
}

// IgnoreBox is a rectangle excluded from baseline comparison.
type IgnoreBox struct {
	Left   Opt[int] `json:"left"`
	Top    Opt[int] `json:"top"`
	Right  Opt[int] `json:"right"`
	Bottom Opt[int] `json:"bottom"`
}

// Baseline is the reference screenshot new screenshots are compared with.
type Baseline struct {
	Screenshot   *Screenshot `json:"screenshot"`
	View         Opt[string] `json:"view"`
	Platform     *Platform   `json:"platform"`
	ScreenHeight Opt[int]    `json:"screenHeight"`
	ScreenWidth  Opt[int]    `json:"screenWidth"`
	IgnoreBoxes  []IgnoreBox `json:"ignoreBoxes"`
}

// Versions reports the component versions of an Angles deployment.
type Versions struct {
	Node   Opt[string] `json:"node"`
	Mongo  Opt[string] `json:"mongo"`
	Angles Opt[string] `json:"angles"`
}
