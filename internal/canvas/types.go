package canvas

import "errors"

// ErrNotFound is returned by stores when the requested canvas row does not exist.
var ErrNotFound = errors.New("canvas not found")

// Default column values for a freshly created canvas.
const (
	DefaultNodes       = "[]"
	DefaultEdges       = "[]"
	DefaultCanvasState = "{}"
)

// Canvas is one persisted canvas row. Nodes, Edges, and CanvasState hold
// the stored JSON text verbatim.
type Canvas struct {
	ID          int64  `json:"id"`
	Nodes       string `json:"nodes"`
	Edges       string `json:"edges"`
	CanvasState string `json:"canvasState"`
}

// Fields carries the writable canvas columns. A nil field is left unchanged
// on update and takes its default on create.
type Fields struct {
	Nodes       *string
	Edges       *string
	CanvasState *string
}

// WithDefaults returns the column values a create should insert.
func (f Fields) WithDefaults() Canvas {
	return Canvas{
		Nodes:       valueOr(f.Nodes, DefaultNodes),
		Edges:       valueOr(f.Edges, DefaultEdges),
		CanvasState: valueOr(f.CanvasState, DefaultCanvasState),
	}
}

// Apply overwrites the columns of c that are set in f.
func (f Fields) Apply(c *Canvas) {
	c.Nodes = valueOr(f.Nodes, c.Nodes)
	c.Edges = valueOr(f.Edges, c.Edges)
	c.CanvasState = valueOr(f.CanvasState, c.CanvasState)
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
