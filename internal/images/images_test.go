package images

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
	collyfetcher "github.com/oiliness-w4v0/canvas-application/internal/fetcher/colly"
	"github.com/oiliness-w4v0/canvas-application/internal/hash/md5"
	"github.com/oiliness-w4v0/canvas-application/internal/storage/local"
	"github.com/oiliness-w4v0/canvas-application/internal/storage/memory"
)

func TestExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://a.test/img/photo.jpg":            ".jpg",
		"https://a.test/img/photo.JPEG?w=200":     ".jpeg",
		"https://a.test/favicon.ico":              ".ico",
		"https://a.test/logo.SVG":                 ".svg",
		"https://a.test/anim.gif?x=1&y=2":         ".gif",
		"https://a.test/pic.webp":                 ".webp",
		"https://a.test/image":                    ".png",
		"https://a.test/photo.jpg/resize":         ".png",
		"https://a.test/file.bmp":                 ".png",
		"https://cdn.png.test/photo.jpeg":         ".jpeg",
		"https://a.test/render?src=x.gif&fmt=raw": ".png",
	}
	for in, want := range cases {
		assert.Equal(t, want, Extension(in), "url %q", in)
	}
}

func newImageSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cover.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0x00, 0x10})
	})
	mux.HandleFunc("/icon", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/x-icon")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadWritesLocalFile(t *testing.T) {
	t.Parallel()

	srv := newImageSite(t)
	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	d := NewDownloader(Config{
		Fetcher:      collyfetcher.New(collyfetcher.Config{}),
		Blobs:        blobs,
		Hasher:       md5.New(),
		PublicPrefix: "/uploads/",
	})

	imageURL := srv.URL + "/cover.jpg"
	got, ok := d.Download(context.Background(), imageURL)
	require.True(t, ok)

	name, err := d.FileName(imageURL)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/images/"+name, got)
	assert.Regexp(t, `^/uploads/images/[0-9a-f]{32}\.jpg$`, got)

	data, err := os.ReadFile(filepath.Join(dir, "images", name))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0x00, 0x10}, data)
}

func TestDownloadFailures(t *testing.T) {
	t.Parallel()

	srv := newImageSite(t)
	blobs := memory.NewBlobStore()
	d := NewDownloader(Config{
		Fetcher:      collyfetcher.New(collyfetcher.Config{}),
		Blobs:        blobs,
		Hasher:       md5.New(),
		PublicPrefix: "/uploads",
	})

	_, ok := d.Download(context.Background(), srv.URL+"/gone.png")
	assert.False(t, ok)
	_, ok = d.Download(context.Background(), "http://127.0.0.1:1/none.png")
	assert.False(t, ok)
	assert.Zero(t, blobs.Len())
}

type failingBlobs struct{}

func (failingBlobs) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

type fixedFetcher struct{ resp canvas.FetchResponse }

func (f fixedFetcher) Fetch(context.Context, canvas.FetchRequest) (canvas.FetchResponse, error) {
	return f.resp, nil
}

func TestDownloadStoreFailure(t *testing.T) {
	t.Parallel()

	d := NewDownloader(Config{
		Fetcher: fixedFetcher{resp: canvas.FetchResponse{StatusCode: 200, Body: []byte("x")}},
		Blobs:   failingBlobs{},
		Hasher:  md5.New(),
	})
	_, ok := d.Download(context.Background(), "https://a.test/x.png")
	assert.False(t, ok)
}

func TestDownloadMetadataImages(t *testing.T) {
	t.Parallel()

	srv := newImageSite(t)
	blobs := memory.NewBlobStore()
	d := NewDownloader(Config{
		Fetcher:      collyfetcher.New(collyfetcher.Config{}),
		Blobs:        blobs,
		Hasher:       md5.New(),
		PublicPrefix: "/uploads",
	})
	ctx := context.Background()

	paths := d.DownloadMetadataImages(ctx, srv.URL+"/cover.jpg", srv.URL+"/icon")
	assert.Regexp(t, `\.jpg$`, paths.ImagePath)
	assert.Regexp(t, `\.png$`, paths.IconPath)

	iconName, err := d.FileName(srv.URL + "/icon")
	require.NoError(t, err)
	stored, ok := blobs.Get("images/" + iconName)
	require.True(t, ok)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, stored)

	paths = d.DownloadMetadataImages(ctx, srv.URL+"/gone.png", srv.URL+"/icon")
	assert.Empty(t, paths.ImagePath)
	assert.NotEmpty(t, paths.IconPath)

	assert.Equal(t, Paths{}, d.DownloadMetadataImages(ctx, "", ""))
}

func TestDownloadRejectsOversizedImages(t *testing.T) {
	t.Parallel()

	const limit = 1024
	mux := http.NewServeMux()
	mux.HandleFunc("/huge.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 2*limit))
	})
	mux.HandleFunc("/fits.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(bytes.Repeat([]byte{0xee}, limit))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	blobs := memory.NewBlobStore()
	d := NewDownloader(Config{
		Fetcher:      collyfetcher.New(collyfetcher.Config{MaxBodyBytes: limit}),
		Blobs:        blobs,
		Hasher:       md5.New(),
		PublicPrefix: "/uploads",
	})
	ctx := context.Background()

	got, ok := d.Download(ctx, srv.URL+"/huge.jpg")
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.Zero(t, blobs.Len())

	_, ok = d.Download(ctx, srv.URL+"/fits.jpg")
	require.True(t, ok)
	name, err := d.FileName(srv.URL + "/fits.jpg")
	require.NoError(t, err)
	stored, ok := blobs.Get("images/" + name)
	require.True(t, ok)
	assert.Len(t, stored, limit)
}

func TestDownloadRejectsTruncatedResponse(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	d := NewDownloader(Config{
		Fetcher: fixedFetcher{resp: canvas.FetchResponse{StatusCode: 200, Body: []byte("partial"), Truncated: true}},
		Blobs:   blobs,
		Hasher:  md5.New(),
	})
	_, ok := d.Download(context.Background(), "https://a.test/x.png")
	assert.False(t, ok)
	assert.Zero(t, blobs.Len())
}
