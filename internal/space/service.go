// Package space implements "save to space": fetch a page's metadata, store
// its images, and append a url node to the first canvas unless the URL is
// already on it.
package space

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
	"github.com/oiliness-w4v0/canvas-application/internal/clock/system"
	"github.com/oiliness-w4v0/canvas-application/internal/images"
	"github.com/oiliness-w4v0/canvas-application/internal/logging"
	"github.com/oiliness-w4v0/canvas-application/internal/metadata"
	"github.com/oiliness-w4v0/canvas-application/internal/metrics"
)

// Outcome messages returned to callers.
const (
	MessageSaved     = "Saved to space successfully"
	MessageDuplicate = "URL already saved"
)

// ErrURLRequired is returned when Save is called with a blank URL.
var ErrURLRequired = errors.New("url is required")

// MetadataFetcher extracts page metadata.
type MetadataFetcher interface {
	Fetch(ctx context.Context, pageURL string) (metadata.WebMetadata, error)
}

// ImageDownloader stores a page's preview image and icon.
type ImageDownloader interface {
	DownloadMetadataImages(ctx context.Context, imageURL, iconURL string) images.Paths
}

// NodeBuilder mints new url nodes.
type NodeBuilder interface {
	URLNode(url string, meta canvas.URLMetadata) (canvas.Node, error)
}

// Result is the payload of a save.
type Result struct {
	Message string       `json:"message"`
	Node    *canvas.Node `json:"node,omitempty"`
}

// SaveEvent is published after a node is appended.
type SaveEvent struct {
	CanvasID int64     `json:"canvasId"`
	NodeID   string    `json:"nodeId"`
	URL      string    `json:"url"`
	SavedAt  time.Time `json:"savedAt"`
}

// Config wires a Service. Publisher and Clock are optional.
type Config struct {
	Metadata  MetadataFetcher
	Images    ImageDownloader
	Builder   NodeBuilder
	Store     canvas.Store
	Publisher canvas.Publisher
	Topic     string
	Clock     canvas.Clock
	Logger    *zap.Logger
}

// Service runs the save pipeline.
type Service struct {
	metadata  MetadataFetcher
	images    ImageDownloader
	builder   NodeBuilder
	store     canvas.Store
	publisher canvas.Publisher
	topic     string
	clock     canvas.Clock
	logger    *zap.Logger
}

// NewService builds a Service.
func NewService(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = system.New()
	}
	return &Service{
		metadata:  cfg.Metadata,
		images:    cfg.Images,
		builder:   cfg.Builder,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		topic:     cfg.Topic,
		clock:     clock,
		logger:    logging.OrNop(cfg.Logger).Named("space"),
	}
}

// Save fetches rawURL's metadata and images, then appends a url node to the
// first canvas inside one store transaction. A URL already present on the
// canvas is reported as a duplicate and nothing is written.
func (s *Service) Save(ctx context.Context, rawURL string) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(rawURL) == "" {
		return Result{}, ErrURLRequired
	}
	log := s.logger.With(zap.String("url", rawURL))

	result, canvasID, err := s.save(ctx, rawURL, log)
	switch {
	case err != nil:
		metrics.ObserveSave(metrics.ResultError, time.Since(start))
		log.Error("save to space failed", zap.Error(err))
		return Result{}, err
	case result.Node == nil:
		metrics.ObserveSave(metrics.ResultDuplicate, time.Since(start))
		log.Info("url already saved", zap.Int64("canvas_id", canvasID))
		return result, nil
	}

	metrics.ObserveSave(metrics.ResultOK, time.Since(start))
	log.Info("url saved", zap.Int64("canvas_id", canvasID), zap.String("node_id", result.Node.ID))
	s.publish(ctx, SaveEvent{
		CanvasID: canvasID,
		NodeID:   result.Node.ID,
		URL:      rawURL,
		SavedAt:  s.clock.Now(),
	}, log)
	return result, nil
}

func (s *Service) save(ctx context.Context, rawURL string, log *zap.Logger) (Result, int64, error) {
	meta, err := s.metadata.Fetch(ctx, rawURL)
	if err != nil {
		return Result{}, 0, fmt.Errorf("fetch metadata: %w", err)
	}
	paths := s.images.DownloadMetadataImages(ctx, meta.ImageURL, meta.IconURL)

	node, err := s.builder.URLNode(rawURL, canvas.URLMetadata{
		Title:       meta.Title,
		Description: meta.Description,
		ImagePath:   paths.ImagePath,
		IconPath:    paths.IconPath,
	})
	if err != nil {
		return Result{}, 0, fmt.Errorf("build node: %w", err)
	}

	var appended bool
	row, err := s.store.MutateFirst(ctx, func(c *canvas.Canvas) (bool, error) {
		nodes := canvas.ParseNodes(c.Nodes)
		if len(nodes) == 0 && strings.TrimSpace(c.Nodes) != canvas.DefaultNodes {
			log.Warn("stored nodes are unreadable and will be replaced", zap.Int64("canvas_id", c.ID))
		}
		if canvas.ContainsURL(nodes, rawURL) {
			return false, nil
		}
		text, err := canvas.AppendNode(c.Nodes, node)
		if err != nil {
			return false, fmt.Errorf("encode nodes: %w", err)
		}
		c.Nodes = text
		appended = true
		return true, nil
	})
	if err != nil {
		return Result{}, 0, fmt.Errorf("update canvas: %w", err)
	}

	if !appended {
		return Result{Message: MessageDuplicate}, row.ID, nil
	}
	return Result{Message: MessageSaved, Node: &node}, row.ID, nil
}

func (s *Service) publish(ctx context.Context, event SaveEvent, log *zap.Logger) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	id, err := s.publisher.Publish(ctx, s.topic, event)
	if err != nil {
		log.Warn("publish save event failed", zap.String("topic", s.topic), zap.Error(err))
		return
	}
	log.Debug("save event published", zap.String("topic", s.topic), zap.String("message_id", id))
}
