package mockserver

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/model"
	"github.com/ethpandaops/angles-client-go/pkg/requests"
	"github.com/ethpandaops/angles-client-go/pkg/transport"
)

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Listen: "127.0.0.1:0",
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
		},
		Versions: config.VersionsConfig{Angles: "1.0.0", Node: "20", Mongo: "7"},
	}
}

func newTestServer(t *testing.T) (*server, *requests.Requests) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	srv, ok := NewServer(log, testServerConfig()).(*server)
	require.True(t, ok)
	require.NoError(t, srv.Init(context.Background()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})

	client, err := transport.New(log, &config.ClientConfig{
		BaseURL: ts.URL + APIPrefix + "/",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	return srv, requests.New(log, client)
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

// idOf returns a function extracting the _id of a create response.
func idOf(t *testing.T) func(json.RawMessage, error) string {
	t.Helper()

	return func(raw json.RawMessage, err error) string {
		require.NoError(t, err)

		var created model.CreatedResource
		require.NoError(t, model.Decode(raw, &created))
		require.NotEmpty(t, created.ID)

		return created.ID
	}
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shot.png")

	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())

	return path
}

func TestServer_TeamsAndEnvironments(t *testing.T) {
	_, reqs := newTestServer(t)
	ctx := context.Background()

	teamID := idOf(t)(reqs.Teams.CreateTeam(ctx, model.CreateTeam{Name: "web"}))

	_, err := reqs.Teams.AddComponentsToTeam(ctx, teamID, []string{"ui", "api", "ui"})
	require.NoError(t, err)

	raw, err := reqs.Teams.UpdateTeam(ctx, teamID, "frontend")
	require.NoError(t, err)

	var team model.Team
	require.NoError(t, model.Decode(raw, &team))
	assert.Equal(t, "frontend", team.Name.OrElse(""))
	assert.Equal(t, []map[string]any{{"name": "ui"}, {"name": "api"}}, team.Components)

	raw, err = reqs.Teams.GetTeams(ctx)
	require.NoError(t, err)

	var teams []model.Team
	require.NoError(t, model.Decode(raw, &teams))
	assert.Len(t, teams, 1)

	envID := idOf(t)(reqs.Environments.CreateEnvironment(ctx, model.CreateEnvironment{Name: "staging"}))

	_, err = reqs.Environments.UpdateEnvironment(ctx, envID, "qa")
	require.NoError(t, err)

	raw, err = reqs.Environments.GetEnvironment(ctx, envID)
	require.NoError(t, err)
	assert.Equal(t, "qa", decode(t, raw)["name"])

	_, err = reqs.Environments.DeleteEnvironment(ctx, envID)
	require.NoError(t, err)

	_, err = reqs.Environments.GetEnvironment(ctx, envID)
	assert.True(t, transport.IsNotFound(err))
}

func TestServer_BuildLifecycle(t *testing.T) {
	srv, reqs := newTestServer(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now.Add(-72 * time.Hour) }

	teamID := idOf(t)(reqs.Teams.CreateTeam(ctx, model.CreateTeam{Name: "web"}))

	oldID := idOf(t)(reqs.Builds.CreateBuild(ctx, model.CreateBuild{
		Name: "old", Team: "web", Environment: "staging", Component: "ui",
	}))

	srv.now = func() time.Time { return now }

	newID := idOf(t)(reqs.Builds.CreateBuild(ctx, model.CreateBuild{
		Name: "new", Team: teamID, Environment: "prod", Component: "api",
	}))

	_, err := reqs.Executions.SaveExecution(ctx, model.CreateExecution{
		Title: "login",
		Suite: "auth",
		Build: newID,
		Actions: []model.Action{{
			Name: model.Some("open"),
			Steps: []model.Step{
				{Name: model.Some("INFO"), Status: model.Some(model.StepInfo)},
				{Name: model.Some("check"), Status: model.Some(model.StepFail)},
			},
		}},
	})
	require.NoError(t, err)

	raw, err := reqs.Builds.GetBuild(ctx, newID)
	require.NoError(t, err)

	var build model.Build
	require.NoError(t, model.Decode(raw, &build))
	assert.Equal(t, model.ExecutionFail, build.Status.OrElse(""))
	assert.Equal(t, map[string]any{"FAIL": float64(1)}, build.Result)

	raw, err = reqs.Builds.GetBuilds(ctx, teamID, nil, true)
	require.NoError(t, err)

	var builds model.BuildsResponse
	require.NoError(t, model.Decode(raw, &builds))
	require.Equal(t, 2, builds.Count)
	assert.Equal(t, newID, decode(t, builds.Builds[0])["_id"])
	assert.Len(t, decode(t, builds.Builds[0])["executions"], 1)

	raw, err = reqs.Builds.GetBuildsWithFilters(ctx, teamID, requests.BuildFilters{ComponentIDs: []string{"ui"}})
	require.NoError(t, err)
	require.NoError(t, model.Decode(raw, &builds))
	require.Equal(t, 1, builds.Count)
	assert.Equal(t, oldID, decode(t, builds.Builds[0])["_id"])

	from := model.NewDate(2024, 6, 10)
	raw, err = reqs.Builds.GetBuildsWithDateFilters(ctx, teamID, requests.BuildDateFilters{FromDate: &from, ToDate: &from})
	require.NoError(t, err)
	require.NoError(t, model.Decode(raw, &builds))
	assert.Equal(t, 1, builds.Count)

	_, err = reqs.Builds.AddArtifacts(ctx, newID, []model.Artifact{{Version: model.Some("1.2.3")}})
	require.NoError(t, err)

	raw, err = reqs.Builds.GetBuildReport(ctx, newID)
	require.NoError(t, err)

	report := decode(t, raw)
	assert.Len(t, report["executions"], 1)
	assert.Equal(t, []any{map[string]any{"version": "1.2.3"}}, report["build"].(map[string]any)["artifacts"])

	_, err = reqs.Builds.DeleteBuilds(ctx, teamID, 1)
	require.NoError(t, err)

	_, err = reqs.Builds.GetBuild(ctx, oldID)
	assert.True(t, transport.IsNotFound(err))

	_, err = reqs.Builds.GetBuild(ctx, newID)
	require.NoError(t, err)
}

func TestServer_KeepSurvivesCleanup(t *testing.T) {
	srv, reqs := newTestServer(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now.Add(-10 * 24 * time.Hour) }

	buildID := idOf(t)(reqs.Builds.CreateBuild(ctx, model.CreateBuild{Name: "b", Team: "t"}))

	srv.now = func() time.Time { return now }

	raw, err := reqs.Builds.SetKeep(ctx, buildID, true)
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, raw)["keep"])

	raw, err = reqs.Builds.DeleteBuilds(ctx, "t", 1)
	require.NoError(t, err)
	assert.Equal(t, "Deleted 0 builds", decode(t, raw)["message"])

	_, err = reqs.Builds.GetBuild(ctx, buildID)
	require.NoError(t, err)
}

func TestServer_ExecutionHistory(t *testing.T) {
	_, reqs := newTestServer(t)
	ctx := context.Background()

	buildID := idOf(t)(reqs.Builds.CreateBuild(ctx, model.CreateBuild{Name: "b", Team: "t"}))

	ids := make([]string, 0, 3)

	for _, title := range []string{"login", "login", "logout"} {
		ids = append(ids, idOf(t)(reqs.Executions.SaveExecution(ctx, model.CreateExecution{
			Title: title, Suite: "auth", Build: buildID,
		})))
	}

	raw, err := reqs.Executions.GetExecution(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, string(model.ExecutionSkipped), decode(t, raw)["status"])
	assert.Equal(t, map[string]any{"_id": buildID}, decode(t, raw)["build"])

	raw, err = reqs.Executions.GetExecutionHistory(ctx, ids[0], 0, 0)
	require.NoError(t, err)

	var history model.ExecutionResponse
	require.NoError(t, model.Decode(raw, &history))
	assert.Equal(t, 2, history.Count)
	assert.Len(t, history.Executions, 2)

	raw, err = reqs.Executions.GetExecutionHistory(ctx, ids[0], 1, 1)
	require.NoError(t, err)
	require.NoError(t, model.Decode(raw, &history))
	assert.Equal(t, 2, history.Count)
	assert.Len(t, history.Executions, 1)

	_, err = reqs.Executions.DeleteExecution(ctx, ids[2])
	require.NoError(t, err)

	_, err = reqs.Executions.SaveExecution(ctx, model.CreateExecution{Title: "x", Suite: "y", Build: "missing"})
	assert.True(t, transport.IsNotFound(err))
}

func TestServer_ScreenshotsAndBaselines(t *testing.T) {
	_, reqs := newTestServer(t)
	ctx := context.Background()

	buildID := idOf(t)(reqs.Builds.CreateBuild(ctx, model.CreateBuild{Name: "b", Team: "t"}))
	path := writePNG(t, 4, 3)

	raw, err := reqs.Screenshots.SaveScreenshot(ctx, model.StoreScreenshot{
		BuildID:   buildID,
		View:      "home",
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		FilePath:  path,
		Tags:      []string{"smoke"},
		Platform:  &model.ScreenshotPlatform{BrowserName: model.Some("chrome")},
	})
	require.NoError(t, err)

	var shot model.Screenshot
	require.NoError(t, model.Decode(raw, &shot))

	shotID := shot.ID.OrElse("")
	require.NotEmpty(t, shotID)
	assert.Equal(t, 3, shot.Height.OrElse(0))
	assert.Equal(t, 4, shot.Width.OrElse(0))
	assert.Equal(t, []string{"smoke"}, shot.Tags)
	assert.Equal(t, "chrome", shot.Platform.BrowserName.OrElse(""))
	assert.True(t, shot.PlatformID.IsSet())

	img, err := reqs.Screenshots.GetScreenshotImage(ctx, shotID)
	require.NoError(t, err)

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, img)

	for name, call := range map[string]func() (json.RawMessage, error){
		"for build": func() (json.RawMessage, error) { return reqs.Screenshots.GetScreenshotsForBuild(ctx, buildID, 0) },
		"by ids":    func() (json.RawMessage, error) { return reqs.Screenshots.GetScreenshots(ctx, []string{shotID}) },
		"views":     func() (json.RawMessage, error) { return reqs.Screenshots.GetScreenshotViews(ctx, "home", 0) },
		"tags":      func() (json.RawMessage, error) { return reqs.Screenshots.GetScreenshotTags(ctx, "smoke", 0) },
		"history": func() (json.RawMessage, error) {
			return reqs.Screenshots.GetScreenshotHistoryByView(ctx, "home", shot.PlatformID.OrElse(""), 0, 0)
		},
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := call()
			require.NoError(t, err)

			var shots []model.Screenshot
			require.NoError(t, model.Decode(raw, &shots))
			require.Len(t, shots, 1)
			assert.Equal(t, shotID, shots[0].ID.OrElse(""))
		})
	}

	raw, err = reqs.Screenshots.GetScreenshotsGroupedByPlatform(ctx, "home", 0)
	require.NoError(t, err)

	var groups []screenshotGroup
	require.NoError(t, json.Unmarshal(raw, &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, shot.PlatformID.OrElse(""), groups[0].ID)

	raw, err = reqs.Baselines.SetBaseline(ctx, &shot)
	require.NoError(t, err)

	baselineID := decode(t, raw)["_id"].(string)

	shot.Platform = &model.Platform{BrowserName: model.Some("chrome")}

	raw, err = reqs.Baselines.GetBaselineForScreenshot(ctx, &shot)
	require.NoError(t, err)

	var baselines []model.Baseline
	require.NoError(t, model.Decode(raw, &baselines))
	require.Len(t, baselines, 1)
	assert.Equal(t, 3, baselines[0].ScreenHeight.OrElse(0))

	shot.Platform = &model.Platform{BrowserName: model.Some("firefox")}

	raw, err = reqs.Baselines.GetBaselineForScreenshot(ctx, &shot)
	require.NoError(t, err)
	require.NoError(t, model.Decode(raw, &baselines))
	assert.Empty(t, baselines)

	raw, err = reqs.Baselines.UpdateBaseline(ctx, baselineID, "", []model.IgnoreBox{{
		Left: model.Some(0), Top: model.Some(0), Right: model.Some(2), Bottom: model.Some(2),
	}})
	require.NoError(t, err)
	assert.Len(t, decode(t, raw)["ignoreBoxes"], 1)

	_, err = reqs.Screenshots.DeleteScreenshot(ctx, shotID)
	require.NoError(t, err)

	_, err = reqs.Screenshots.GetScreenshotImage(ctx, shotID)
	assert.True(t, transport.IsNotFound(err))

	_, err = reqs.Baselines.DeleteBaseline(ctx, baselineID)
	require.NoError(t, err)
}

func TestServer_Versions(t *testing.T) {
	_, reqs := newTestServer(t)

	raw, err := reqs.Angles.GetVersions(context.Background())
	require.NoError(t, err)

	var versions model.Versions
	require.NoError(t, model.Decode(raw, &versions))
	assert.Equal(t, "1.0.0", versions.Angles.OrElse(""))
	assert.Equal(t, "7", versions.Mongo.OrElse(""))
}

func TestServer_BadRequests(t *testing.T) {
	_, reqs := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want int
	}{
		{
			name: "team without name",
			call: func() error {
				_, err := reqs.Teams.CreateTeam(ctx, model.CreateTeam{})
				return err
			},
			want: http.StatusBadRequest,
		},
		{
			name: "builds without team",
			call: func() error {
				_, err := reqs.Builds.GetBuilds(ctx, "", nil, false)
				return err
			},
			want: http.StatusBadRequest,
		},
		{
			name: "screenshot for unknown build",
			call: func() error {
				_, err := reqs.Screenshots.SaveScreenshot(ctx, model.StoreScreenshot{
					BuildID:  "missing",
					View:     "home",
					FilePath: writePNG(t, 1, 1),
				})
				return err
			},
			want: http.StatusNotFound,
		},
		{
			name: "unknown baseline",
			call: func() error {
				_, err := reqs.Baselines.GetBaseline(ctx, "missing")
				return err
			},
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.want, transport.StatusCode(err))
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := NewServer(log, testServerConfig())
	require.NoError(t, srv.Start(context.Background()))
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + APIPrefix + "/angles/versions")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop())
}

func TestRateLimitMiddleware(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := testServerConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}

	srv := NewServer(log, cfg)
	require.NoError(t, srv.Init(context.Background()))
	t.Cleanup(func() { _ = srv.Stop() })

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, APIPrefix+"/angles/versions", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1")

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestLimiterPool(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	pool := newLimiterPool(2)
	pool.now = func() time.Time { return now }

	ok, _ := pool.allow("a")
	assert.True(t, ok)

	ok, _ = pool.allow("a")
	assert.True(t, ok)

	ok, wait := pool.allow("a")
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	ok, _ = pool.allow("b")
	assert.True(t, ok, "clients have separate buckets")

	now = now.Add(30 * time.Second)

	ok, _ = pool.allow("a")
	assert.True(t, ok, "a token refills after 30s")

	now = now.Add(limiterIdleTTL + time.Second)
	pool.sweep()
	assert.Zero(t, pool.size())
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.2:5555", want: "192.168.1.2"},
		{name: "forwarded chain", xff: "10.0.0.1, 10.0.0.2", remoteAddr: "1.1.1.1:1", want: "10.0.0.1"},
		{name: "forwarded single", xff: "10.0.0.3", remoteAddr: "1.1.1.1:1", want: "10.0.0.3"},
		{name: "no port", remoteAddr: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr

			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.want, extractIP(r))
		})
	}
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     model.ExecutionState
	}{
		{name: "no steps", want: model.ExecutionSkipped},
		{name: "info only", statuses: []string{"INFO", "DEBUG"}, want: model.ExecutionPass},
		{name: "error", statuses: []string{"PASS", "ERROR"}, want: model.ExecutionError},
		{name: "fail wins", statuses: []string{"ERROR", "FAIL", "PASS"}, want: model.ExecutionFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateOf(tt.statuses))
		})
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, page(items, 0, 0))
	assert.Equal(t, []int{3, 4}, page(items, 2, 2))
	assert.Equal(t, []int{5}, page(items, 4, 10))
	assert.Equal(t, []int{}, page(items, 9, 1))
}
