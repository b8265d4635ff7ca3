package canvas

import (
	"encoding/json"
	"fmt"
)

// Edge connects two nodes. Source and Target are not checked against the node list.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

var edgeKeys = []string{"id", "source", "target"}

// ParseEdges decodes a stored edge list with the same tolerance as ParseNodes.
func ParseEdges(text string) []Edge {
	edges := []Edge{}
	for _, raw := range shapedObjects(text, edgeKeys) {
		var e Edge
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		edges = append(edges, e)
	}
	return edges
}

// StringifyEdges encodes edges as compact JSON.
func StringifyEdges(edges []Edge) (string, error) {
	if edges == nil {
		edges = []Edge{}
	}
	b, err := json.Marshal(edges)
	if err != nil {
		return "", fmt.Errorf("encode edges: %w", err)
	}
	return string(b), nil
}
