package gcs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func newTestStore(w *recordingWriter, gotPath, gotType *string) *BlobStore {
	return &BlobStore{
		bucket: "canvas-images",
		newWriter: func(_ context.Context, path, contentType string) objectWriter {
			*gotPath, *gotType = path, contentType
			return w
		},
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
	_, err = New(&storage.Client{}, Config{})
	require.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	var path, contentType string
	s := newTestStore(w, &path, &contentType)

	uri, err := s.PutObject(context.Background(), "images/abc.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "gs://canvas-images/images/abc.png", uri)
	assert.Equal(t, "images/abc.png", path)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "png-bytes", w.String())
	assert.True(t, w.closed)
	assert.Equal(t, "https://storage.googleapis.com/canvas-images", s.PublicBaseURL())
}

func TestPutObjectCloseError(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{closeErr: errors.New("precondition failed")}
	var path, contentType string
	s := newTestStore(w, &path, &contentType)

	_, err := s.PutObject(context.Background(), "images/abc.png", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "precondition failed")
}

func TestPutObjectEmptyPath(t *testing.T) {
	t.Parallel()

	s := newTestStore(&recordingWriter{}, new(string), new(string))
	_, err := s.PutObject(context.Background(), " ", "", strings.NewReader("x"))
	require.Error(t, err)
}
