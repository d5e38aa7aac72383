package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/mockserver"
	"github.com/ethpandaops/angles-client-go/pkg/model"
	"github.com/ethpandaops/angles-client-go/pkg/requests"
	"github.com/ethpandaops/angles-client-go/pkg/transport"
)

func newMockRequests(t *testing.T) *requests.Requests {
	t.Helper()

	log := quietLogger()

	srv := mockserver.NewServer(log, &config.ServerConfig{
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
		},
	})
	require.NoError(t, srv.Init(context.Background()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})

	client, err := transport.New(log, &config.ClientConfig{
		BaseURL: ts.URL + mockserver.APIPrefix + "/",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	return requests.New(log, client)
}

func writeImage(t *testing.T, name string, w, h int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())

	return path
}

func TestArchiver_AgainstMockServer(t *testing.T) {
	reqs := newMockRequests(t)
	ctx := context.Background()

	raw, err := reqs.Builds.CreateBuild(ctx, model.CreateBuild{
		Team:        "web",
		Environment: "staging",
		Component:   "ui",
		Name:        "nightly",
	})
	require.NoError(t, err)

	var build model.Build
	require.NoError(t, model.Decode(raw, &build))

	buildID := build.ID.OrElse("")
	require.NotEmpty(t, buildID)

	shotIDs := make(map[string]bool)

	for i, view := range []string{"home", "login", "checkout"} {
		raw, err := reqs.Screenshots.SaveScreenshot(ctx, model.StoreScreenshot{
			BuildID:  buildID,
			View:     view,
			FilePath: writeImage(t, view+".png", i+1, i+1),
			Tags:     []string{"smoke"},
		})
		require.NoError(t, err)

		var shot model.Screenshot
		require.NoError(t, model.Decode(raw, &shot))
		shotIDs[shot.ID.OrElse("")] = true
	}

	dir := t.TempDir()
	cfg := &config.ArchiveConfig{
		Concurrency: 2,
		Prefix:      "archive",
		Local:       &config.LocalArchiveConfig{Enabled: true, Dir: dir},
	}

	sink, err := NewSink(quietLogger(), cfg)
	require.NoError(t, err)

	manifest, err := NewArchiver(quietLogger(), cfg, FromRequests(reqs), sink).Archive(ctx, buildID)
	require.NoError(t, err)

	assert.Equal(t, buildID, manifest.BuildID)
	require.Len(t, manifest.Screenshots, 3)

	var total int64

	for _, entry := range manifest.Screenshots {
		assert.True(t, shotIDs[entry.ScreenshotID], entry.ScreenshotID)
		assert.Equal(t, "image/png", entry.ContentType)
		assert.Equal(t, []string{"smoke"}, entry.Tags)
		assert.Equal(t, "archive/"+buildID+"/screenshots/"+entry.ScreenshotID+".png", entry.Key)

		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(entry.Key)))
		require.NoError(t, err)
		assert.Len(t, data, entry.Bytes)

		_, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "png", format)

		total += int64(entry.Bytes)
	}

	assert.Equal(t, total, manifest.TotalBytes)

	data, err := os.ReadFile(filepath.Join(dir, "archive", buildID, "manifest.json"))
	require.NoError(t, err)

	var written Manifest
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Len(t, written.Screenshots, 3)

	data, err = os.ReadFile(filepath.Join(dir, "archive", buildID, "build.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"nightly"`)
}

type fakeSource struct {
	shots     string
	imageErr  error
	lastLimit int
}

func (f *fakeSource) GetBuild(_ context.Context, buildID string) (json.RawMessage, error) {
	return json.RawMessage(`{"_id":"` + buildID + `"}`), nil
}

func (f *fakeSource) GetScreenshotsForBuild(_ context.Context, _ string, limit int) (json.RawMessage, error) {
	f.lastLimit = limit

	return json.RawMessage(f.shots), nil
}

// pagedSource holds n screenshots and serves at most limit of them.
type pagedSource struct {
	fakeSource
	n int
}

func (p *pagedSource) GetScreenshotsForBuild(_ context.Context, buildID string, limit int) (json.RawMessage, error) {
	p.lastLimit = limit

	count := p.n
	if limit > 0 && limit < count {
		count = limit
	}

	shots := make([]map[string]any, 0, count)
	for i := range count {
		shots = append(shots, map[string]any{
			"_id":   fmt.Sprintf("s%d", i),
			"build": buildID,
			"path":  "shot.png",
		})
	}

	return json.Marshal(shots)
}

func (f *fakeSource) GetScreenshotImage(context.Context, string) ([]byte, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}

	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func TestArchiver_Errors(t *testing.T) {
	tests := []struct {
		name    string
		buildID string
		source  *fakeSource
		errMsg  string
	}{
		{
			name:    "missing build id",
			buildID: "",
			source:  &fakeSource{shots: `[]`},
			errMsg:  "build id is required",
		},
		{
			name:    "image download fails",
			buildID: "b1",
			source:  &fakeSource{shots: `[{"_id":"s1"}]`, imageErr: errors.New("boom")},
			errMsg:  "downloading screenshot s1",
		},
		{
			name:    "screenshot without id",
			buildID: "b1",
			source:  &fakeSource{shots: `[{"view":"home"}]`},
			errMsg:  "screenshot without id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.ArchiveConfig{
				Local: &config.LocalArchiveConfig{Enabled: true, Dir: t.TempDir()},
			}

			sink, err := NewSink(quietLogger(), cfg)
			require.NoError(t, err)

			_, err = NewArchiver(quietLogger(), cfg, tt.source, sink).Archive(context.Background(), tt.buildID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestArchiver_ScreenshotCap(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		max     int
		wantErr string
	}{
		{name: "more than a default page", n: 250, max: 0},
		{name: "exactly at the cap", n: 20, max: 20},
		{name: "above the cap", n: 21, max: 20, wantErr: "more than 20 screenshots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := &config.ArchiveConfig{
				Concurrency:    8,
				MaxScreenshots: tt.max,
				Local:          &config.LocalArchiveConfig{Enabled: true, Dir: dir},
			}

			sink, err := NewSink(quietLogger(), cfg)
			require.NoError(t, err)

			src := &pagedSource{n: tt.n}

			manifest, err := NewArchiver(quietLogger(), cfg, src, sink).Archive(context.Background(), "b1")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				_, statErr := os.Stat(filepath.Join(dir, config.DefaultArchivePrefix, "b1", "manifest.json"))
				assert.True(t, os.IsNotExist(statErr), "no manifest for a partial archive")

				return
			}

			require.NoError(t, err)
			assert.Len(t, manifest.Screenshots, tt.n)
			assert.Greater(t, src.lastLimit, tt.n)
		})
	}
}

func TestArchiver_BareBuildReference(t *testing.T) {
	cfg := &config.ArchiveConfig{
		Local: &config.LocalArchiveConfig{Enabled: true, Dir: t.TempDir()},
	}

	sink, err := NewSink(quietLogger(), cfg)
	require.NoError(t, err)

	src := &fakeSource{shots: `[{"_id":"s0","build":"b1","view":"home","path":"home.png"}]`}

	manifest, err := NewArchiver(quietLogger(), cfg, src, sink).Archive(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, manifest.Screenshots, 1)
	assert.Equal(t, "s0", manifest.Screenshots[0].ScreenshotID)
	assert.Equal(t, "home", manifest.Screenshots[0].View)
}

func TestArchiver_EmptyBuild(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ArchiveConfig{
		Local: &config.LocalArchiveConfig{Enabled: true, Dir: dir},
	}

	sink, err := NewSink(quietLogger(), cfg)
	require.NoError(t, err)

	manifest, err := NewArchiver(quietLogger(), cfg, &fakeSource{shots: `[]`}, sink).
		Archive(context.Background(), "b9")
	require.NoError(t, err)
	assert.Empty(t, manifest.Screenshots)
	assert.Zero(t, manifest.TotalBytes)

	_, err = os.Stat(filepath.Join(dir, config.DefaultArchivePrefix, "b9", "manifest.json"))
	assert.NoError(t, err)
}
