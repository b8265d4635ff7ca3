package canvas

import (
	"fmt"
	"math/rand/v2"
)

// MaxCoordinate bounds the random placement of new nodes on both axes.
const MaxCoordinate = 500

// URLMetadata is the enrichment attached to a new url node.
type URLMetadata struct {
	Title       string
	Description string
	ImagePath   string
	IconPath    string
}

// NewURLNode assembles a url node from already resolved parts.
func NewURLNode(id, url string, meta URLMetadata, pos Position) Node {
	return Node{
		ID:   id,
		Type: NodeTypeURL,
		Data: NodeData{URL: &URLData{
			URL:         url,
			Title:       meta.Title,
			Description: meta.Description,
			Image:       meta.ImagePath,
			Icon:        meta.IconPath,
		}},
		Position: pos,
	}
}

// Builder mints url nodes with fresh ids and random positions.
type Builder struct {
	ids   IDGenerator
	float func() float64
}

// NewBuilder returns a Builder drawing ids from ids.
func NewBuilder(ids IDGenerator) *Builder {
	return &Builder{ids: ids, float: rand.Float64}
}

// URLNode creates a url node with id "node-<id>" at a position in [0,500)².
func (b *Builder) URLNode(url string, meta URLMetadata) (Node, error) {
	id, err := b.ids.NewID()
	if err != nil {
		return Node{}, fmt.Errorf("generate node id: %w", err)
	}
	pos := Position{X: b.float() * MaxCoordinate, Y: b.float() * MaxCoordinate}
	return NewURLNode("node-"+id, url, meta, pos), nil
}
