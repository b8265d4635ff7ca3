package canvas

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeType tags the payload carried in a node's data field.
type NodeType string

// Node types understood by the canvas UI.
const (
	NodeTypeURL    NodeType = "url"
	NodeTypeNote   NodeType = "note"
	NodeTypeFolder NodeType = "folder"
)

// Position is a node's location on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// URLData is the payload of a url node. Image and Icon hold public paths of
// locally stored copies and are omitted when the download failed.
type URLData struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// NodeData is either a decoded url payload or the raw JSON of any other
// node type. Exactly one of URL and Other is meaningful.
type NodeData struct {
	URL   *URLData
	Other json.RawMessage
}

// Node is one element of a canvas's node list.
type Node struct {
	ID       string
	Type     NodeType
	Data     NodeData
	Position Position
}

type wireNode struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Data     json.RawMessage `json:"data"`
	Position Position        `json:"position"`
}

var emptyObject = json.RawMessage(`{}`)

// MarshalJSON encodes the node with its data payload inline.
func (n Node) MarshalJSON() ([]byte, error) {
	data := emptyObject
	switch {
	case n.Data.URL != nil:
		encoded, err := json.Marshal(n.Data.URL)
		if err != nil {
			return nil, fmt.Errorf("encode url data: %w", err)
		}
		data = encoded
	case len(n.Data.Other) > 0:
		data = n.Data.Other
	}
	return json.Marshal(wireNode{ID: n.ID, Type: n.Type, Data: data, Position: n.Position})
}

// UnmarshalJSON decodes a node. Url nodes whose data is an object get a
// typed payload; everything else is kept as raw JSON. Stored canvases are
// written by the UI, so a non-string id is kept as its JSON text and a
// position that is not a pair of numbers decodes as the origin.
func (n *Node) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*n = Node{ID: idText(obj["id"])}
	_ = json.Unmarshal(obj["type"], &n.Type)
	var pos Position
	if err := json.Unmarshal(obj["position"], &pos); err == nil {
		n.Position = pos
	}

	data := obj["data"]
	if n.Type == NodeTypeURL && bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		var d URLData
		if err := json.Unmarshal(data, &d); err == nil {
			n.Data.URL = &d
			return nil
		}
	}
	n.Data.Other = data
	return nil
}

func idText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	return string(trimmed)
}

// URL returns the node's url and whether it is a url node.
func (n Node) URL() (string, bool) {
	if n.Type != NodeTypeURL || n.Data.URL == nil {
		return "", false
	}
	return n.Data.URL.URL, true
}

var nodeKeys = []string{"id", "type", "data", "position"}

// ParseNodes decodes a stored node list. Elements that are not objects
// carrying id, type, data, and position are dropped; text that is not a
// JSON array yields an empty slice.
func ParseNodes(text string) []Node {
	nodes := []Node{}
	for _, raw := range shapedObjects(text, nodeKeys) {
		var n Node
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// StringifyNodes encodes nodes as compact JSON.
func StringifyNodes(nodes []Node) (string, error) {
	if nodes == nil {
		nodes = []Node{}
	}
	b, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("encode nodes: %w", err)
	}
	return string(b), nil
}

// AppendNode adds node to the end of a stored node list. Elements that
// ParseNodes would keep are copied through as they were stored, extra keys
// included; only the new node is encoded. Text that is not a JSON array is
// replaced by a list holding just node.
func AppendNode(text string, node Node) (string, error) {
	encoded, err := json.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("encode node: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for _, raw := range shapedObjects(text, nodeKeys) {
		if err := json.Compact(&buf, raw); err != nil {
			return "", fmt.Errorf("compact stored node: %w", err)
		}
		buf.WriteByte(',')
	}
	buf.Write(encoded)
	buf.WriteByte(']')
	return buf.String(), nil
}

// ContainsURL reports whether any url node already points at url.
func ContainsURL(nodes []Node, url string) bool {
	for _, n := range nodes {
		if u, ok := n.URL(); ok && u == url {
			return true
		}
	}
	return false
}

// shapedObjects returns the elements of a JSON array that are objects
// containing every key in required.
func shapedObjects(text string, required []string) []json.RawMessage {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return nil
	}
	out := make([]json.RawMessage, 0, len(elems))
	for _, raw := range elems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			continue
		}
		if hasKeys(obj, required) {
			out = append(out, raw)
		}
	}
	return out
}

func hasKeys(obj map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}
