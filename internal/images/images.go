// Package images downloads preview images and icons into the uploads blob
// store under a name derived from the source URL.
package images

import (
	"bytes"
	"context"
	"mime"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
	"github.com/oiliness-w4v0/canvas-application/internal/logging"
	"github.com/oiliness-w4v0/canvas-application/internal/metrics"
)

// Dir is the blob-store directory images are written to.
const Dir = "images"

// DefaultExtension is used when the URL does not name a known image type.
const DefaultExtension = ".png"

var extensionPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|ico|svg)(\?|$)`)

// Paths holds the public paths of downloaded metadata images. Empty means
// the image was absent or could not be downloaded.
type Paths struct {
	ImagePath string
	IconPath  string
}

// Config wires a Downloader.
type Config struct {
	Fetcher canvas.Fetcher
	Blobs   canvas.BlobStore
	Hasher  canvas.Hasher
	// PublicPrefix is prepended to the blob key to form the returned path,
	// e.g. "/uploads" gives "/uploads/images/<md5>.png".
	PublicPrefix string
	Logger       *zap.Logger
}

// Downloader fetches images and stores them byte for byte.
type Downloader struct {
	fetcher      canvas.Fetcher
	blobs        canvas.BlobStore
	hasher       canvas.Hasher
	publicPrefix string
	logger       *zap.Logger
}

// NewDownloader builds a Downloader.
func NewDownloader(cfg Config) *Downloader {
	return &Downloader{
		fetcher:      cfg.Fetcher,
		blobs:        cfg.Blobs,
		hasher:       cfg.Hasher,
		publicPrefix: strings.TrimRight(cfg.PublicPrefix, "/"),
		logger:       logging.OrNop(cfg.Logger).Named("images"),
	}
}

// Download fetches imageURL and stores it. Failures are logged and reported
// through ok; they never abort the caller.
func (d *Downloader) Download(ctx context.Context, imageURL string) (publicPath string, ok bool) {
	log := d.logger.With(zap.String("url", imageURL))

	resp, err := d.fetcher.Fetch(ctx, canvas.FetchRequest{URL: imageURL})
	if err != nil {
		log.Warn("image download failed", zap.Error(err))
		metrics.ObserveImageDownload(metrics.ResultError, 0)
		return "", false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("image download returned error status", zap.Int("status", resp.StatusCode))
		metrics.ObserveImageDownload(metrics.ResultError, 0)
		return "", false
	}

	if resp.Truncated {
		log.Warn("image exceeds size limit", zap.Int("bytes_read", len(resp.Body)))
		metrics.ObserveImageDownload(metrics.ResultError, len(resp.Body))
		return "", false
	}

	name, err := d.FileName(imageURL)
	if err != nil {
		log.Error("image file name", zap.Error(err))
		metrics.ObserveImageDownload(metrics.ResultError, 0)
		return "", false
	}
	key := path.Join(Dir, name)
	contentType := resp.ContentType()
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(name))
	}
	if _, err := d.blobs.PutObject(ctx, key, contentType, bytes.NewReader(resp.Body)); err != nil {
		log.Error("image store failed", zap.String("key", key), zap.Error(err))
		metrics.ObserveImageDownload(metrics.ResultError, 0)
		return "", false
	}

	metrics.ObserveImageDownload(metrics.ResultOK, len(resp.Body))
	log.Debug("image stored", zap.String("key", key), zap.Int("bytes", len(resp.Body)))
	return d.publicPrefix + "/" + key, true
}

// DownloadMetadataImages downloads the preview image and the icon
// independently. Empty URLs are skipped.
func (d *Downloader) DownloadMetadataImages(ctx context.Context, imageURL, iconURL string) Paths {
	var out Paths
	if imageURL != "" {
		out.ImagePath, _ = d.Download(ctx, imageURL)
	}
	if iconURL != "" {
		out.IconPath, _ = d.Download(ctx, iconURL)
	}
	return out
}

// FileName returns md5hex(imageURL) plus the URL's image extension.
func (d *Downloader) FileName(imageURL string) (string, error) {
	sum, err := d.hasher.Hash([]byte(imageURL))
	if err != nil {
		return "", err
	}
	return sum + Extension(imageURL), nil
}

// Extension returns the lowercased image extension named by rawURL, or
// DefaultExtension when there is none.
func Extension(rawURL string) string {
	if m := extensionPattern.FindStringSubmatch(rawURL); m != nil {
		return "." + strings.ToLower(m[1])
	}
	return DefaultExtension
}
