package canvas

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Store persists canvas rows.
type Store interface {
	First(ctx context.Context) (Canvas, error)
	Get(ctx context.Context, id int64) (Canvas, error)
	Create(ctx context.Context, fields Fields) (Canvas, error)
	Update(ctx context.Context, id int64, fields Fields) (Canvas, error)
	// MutateFirst loads the lowest-id row inside one transaction, creating
	// a default row when the table is empty, and writes it back when fn
	// reports a change. The returned canvas reflects the final row.
	MutateFirst(ctx context.Context, fn func(*Canvas) (bool, error)) (Canvas, error)
	Ping(ctx context.Context) error
	Close() error
}

// BlobStore writes downloaded files and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes save events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a static fetch should be re-rendered headlessly.
type HeadlessDetector interface {
	ShouldPromote(first FetchResponse) bool
}

// Hasher computes hex digests used for stored file names.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique, time-ordered ids.
type IDGenerator interface {
	NewID() (string, error)
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	// Truncated is set when the body hit the fetcher's size cap; Body then
	// holds only the first MaxBodyBytes.
	Truncated    bool
	Duration     time.Duration
	UsedHeadless bool
}

// ContentType returns the response's Content-Type header.
func (r FetchResponse) ContentType() string {
	return r.Headers.Get("Content-Type")
}
