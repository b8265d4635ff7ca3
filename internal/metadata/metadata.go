// Package metadata fetches a web page and extracts the title, description,
// preview image, and icon used to decorate saved links.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
	"github.com/oiliness-w4v0/canvas-application/internal/logging"
	"github.com/oiliness-w4v0/canvas-application/internal/metrics"
)

// DefaultTitle is used when a page has no <title>.
const DefaultTitle = "Untitled"

// ErrUnexpectedStatus is wrapped when the page responds with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// WebMetadata is what a page says about itself. ImageURL and IconURL are absolute.
type WebMetadata struct {
	Title       string
	Description string
	ImageURL    string
	IconURL     string
}

var (
	titlePattern        = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	descriptionPattern  = regexp.MustCompile(`(?i)<meta[^>]*name=["']description["'][^>]*content=["']([^"']+)["']`)
	ogImagePattern      = regexp.MustCompile(`(?i)<meta[^>]*property=["']og:image["'][^>]*content=["']([^"']+)["']`)
	twitterImagePattern = regexp.MustCompile(`(?i)<meta[^>]*name=["']twitter:image["'][^>]*content=["']([^"']+)["']`)
	iconPattern         = regexp.MustCompile(`(?i)<link[^>]*rel=["'](?:icon|shortcut icon)["'][^>]*href=["']([^"']+)["']`)
)

// Config wires the extractor's collaborators. Headless and Detector are
// optional; when both are set, pages the detector flags are re-fetched
// through Headless before parsing.
type Config struct {
	Fetcher   canvas.Fetcher
	Headless  canvas.Fetcher
	Detector  canvas.HeadlessDetector
	UserAgent string
	Logger    *zap.Logger
}

// Extractor implements page metadata extraction.
type Extractor struct {
	fetcher   canvas.Fetcher
	headless  canvas.Fetcher
	detector  canvas.HeadlessDetector
	userAgent string
	logger    *zap.Logger
}

// NewExtractor builds an Extractor.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{
		fetcher:   cfg.Fetcher,
		headless:  cfg.Headless,
		detector:  cfg.Detector,
		userAgent: cfg.UserAgent,
		logger:    logging.OrNop(cfg.Logger).Named("metadata"),
	}
}

// Fetch downloads pageURL and parses its metadata. It fails when the
// request fails or the response status is not 2xx.
func (e *Extractor) Fetch(ctx context.Context, pageURL string) (WebMetadata, error) {
	req := canvas.FetchRequest{URL: pageURL}
	if e.userAgent != "" {
		req.Headers = http.Header{"User-Agent": {e.userAgent}}
	}
	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		metrics.ObserveMetadataFetch(metrics.ResultError, 0)
		return WebMetadata{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if !isSuccess(resp.StatusCode) {
		metrics.ObserveMetadataFetch(metrics.ResultError, len(resp.Body))
		return WebMetadata{}, fmt.Errorf("fetch %s: %w: %d", pageURL, ErrUnexpectedStatus, resp.StatusCode)
	}

	result := metrics.ResultOK
	if rendered, ok := e.promote(ctx, req, resp); ok {
		resp = rendered
		result = metrics.ResultHeadless
	}
	metrics.ObserveMetadataFetch(result, len(resp.Body))
	if resp.Truncated {
		e.logger.Debug("page body truncated; parsing the prefix", zap.String("url", pageURL), zap.Int("bytes", len(resp.Body)))
	}

	return Parse(string(resp.Body), pageURL, e.logger), nil
}

func (e *Extractor) promote(ctx context.Context, req canvas.FetchRequest, first canvas.FetchResponse) (canvas.FetchResponse, bool) {
	if e.headless == nil || e.detector == nil || !e.detector.ShouldPromote(first) {
		return canvas.FetchResponse{}, false
	}
	rendered, err := e.headless.Fetch(ctx, req)
	if err != nil {
		e.logger.Warn("headless render failed; using static html", zap.String("url", req.URL), zap.Error(err))
		return canvas.FetchResponse{}, false
	}
	if !isSuccess(rendered.StatusCode) {
		e.logger.Warn("headless render returned error status; using static html",
			zap.String("url", req.URL), zap.Int("status", rendered.StatusCode))
		return canvas.FetchResponse{}, false
	}
	e.logger.Debug("promoted to headless render", zap.String("url", req.URL), zap.Duration("duration", rendered.Duration))
	return rendered, true
}

// Parse applies the extraction rules to html. Relative image and icon
// references are resolved against baseURL.
func Parse(html, baseURL string, logger *zap.Logger) WebMetadata {
	logger = logging.OrNop(logger)
	meta := WebMetadata{Title: DefaultTitle}

	if m := titlePattern.FindStringSubmatch(html); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			meta.Title = title
		}
	}
	if m := descriptionPattern.FindStringSubmatch(html); m != nil {
		meta.Description = strings.TrimSpace(m[1])
	}
	if m := ogImagePattern.FindStringSubmatch(html); m != nil {
		meta.ImageURL = ResolveURL(m[1], baseURL, logger)
	} else if m := twitterImagePattern.FindStringSubmatch(html); m != nil {
		meta.ImageURL = ResolveURL(m[1], baseURL, logger)
	}
	if m := iconPattern.FindStringSubmatch(html); m != nil {
		meta.IconURL = ResolveURL(m[1], baseURL, logger)
	}
	if meta.IconURL == "" {
		meta.IconURL = faviconURL(baseURL)
	}
	return meta
}

// ResolveURL makes ref absolute against baseURL. Refs that already start
// with http:// or https:// are returned as is; when resolution fails the
// ref is logged and returned unchanged.
func ResolveURL(ref, baseURL string, logger *zap.Logger) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := parseAbsolute(baseURL)
	if err == nil {
		var resolved *url.URL
		resolved, err = base.Parse(ref)
		if err == nil {
			return resolved.String()
		}
	}
	logging.OrNop(logger).Warn("resolve url failed", zap.String("ref", ref), zap.String("base", baseURL), zap.Error(err))
	return ref
}

func faviconURL(pageURL string) string {
	u, err := parseAbsolute(pageURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("parse %q: not an absolute url", raw)
	}
	return u, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
