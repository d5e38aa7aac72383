package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func TestResolvePrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		buildID  string
		expected string
	}{
		{name: "default prefix", prefix: "", buildID: "b1", expected: "angles/builds/b1"},
		{name: "custom prefix", prefix: "screens", buildID: "b1", expected: "screens/b1"},
		{name: "trims slashes", prefix: "/screens/nightly/", buildID: "b2", expected: "screens/nightly/b2"},
		{name: "only slashes", prefix: "//", buildID: "b3", expected: "angles/builds/b3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolvePrefix(tt.prefix, tt.buildID))
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"build.json", "application/json"},
		{"screenshots/a.png", "image/png"},
		{"screenshots/a.jpg", "image/jpeg"},
		{"noext", "application/octet-stream"},
		{"screenshots/a.unknownext", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectContentType(tt.key))
		})
	}
}

func TestImageExt(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")

	tests := []struct {
		name     string
		fileName string
		data     []byte
		expected string
	}{
		{name: "from file name", fileName: "home.PNG", data: jpeg, expected: ".png"},
		{name: "sniffed png", fileName: "", data: png, expected: ".png"},
		{name: "sniffed jpeg", fileName: "shot", data: jpeg, expected: ".jpg"},
		{name: "unknown", fileName: "", data: []byte("plain"), expected: ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, imageExt(tt.fileName, tt.data))
		})
	}
}

func TestNewSink(t *testing.T) {
	_, err := NewSink(quietLogger(), &config.ArchiveConfig{})
	require.Error(t, err)

	sink, err := NewSink(quietLogger(), &config.ArchiveConfig{
		Local: &config.LocalArchiveConfig{Enabled: true, Dir: t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &localSink{}, sink)

	sink, err = NewSink(quietLogger(), &config.ArchiveConfig{
		S3: &config.S3ArchiveConfig{Enabled: true, Bucket: "screens"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://screens/a/b.png", sink.Location("a/b.png"))
}

func TestLocalSink(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "archive")
	sink := NewLocalSink(quietLogger(), &config.LocalArchiveConfig{Enabled: true, Dir: dir})
	ctx := context.Background()

	require.NoError(t, sink.Preflight(ctx))

	_, err := os.Stat(filepath.Join(dir, writeTestKey))
	assert.True(t, os.IsNotExist(err), "preflight marker should be removed")

	require.NoError(t, sink.Put(ctx, "b1/screenshots/s1.png", []byte("image"), "image/png"))
	require.NoError(t, sink.Put(ctx, "b1/screenshots/s1.png", []byte("image-v2"), "image/png"))

	data, err := os.ReadFile(filepath.Join(dir, "b1", "screenshots", "s1.png"))
	require.NoError(t, err)
	assert.Equal(t, "image-v2", string(data))

	assert.Equal(t, filepath.Join(dir, "b1", "build.json"), sink.Location("b1/build.json"))

	t.Run("rejects escaping keys", func(t *testing.T) {
		for _, key := range []string{"../outside", "a/../../outside"} {
			err := sink.Put(ctx, key, []byte("x"), "")
			assert.Error(t, err, key)
		}
	})
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func newFakeS3(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		reqs = append(reqs, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	return ts, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()

		return append([]recordedRequest(nil), reqs...)
	}
}

func TestS3Sink(t *testing.T) {
	ts, recorded := newFakeS3(t)

	sink := NewS3Sink(quietLogger(), &config.S3ArchiveConfig{
		Enabled:         true,
		EndpointURL:     ts.URL,
		Bucket:          "screens",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		ForcePathStyle:  true,
		StorageClass:    "STANDARD",
	})
	ctx := context.Background()

	require.NoError(t, sink.Preflight(ctx))
	require.NoError(t, sink.Put(ctx, "angles/builds/b1/build.json", []byte(`{}`), ""))

	reqs := recorded()
	require.Len(t, reqs, 2)

	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/screens/"+writeTestKey, reqs[0].path)
	assert.Equal(t, http.MethodPut, reqs[1].method)
	assert.Equal(t, "/screens/angles/builds/b1/build.json", reqs[1].path)
}
