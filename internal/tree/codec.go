package tree

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// wireNode is the serialized shape of a node, shared by the local cache and
// the remote document.
type wireNode struct {
	ID          string       `json:"id"`
	Type        Kind         `json:"type"`
	Name        string       `json:"name"`
	ParentID    *string      `json:"parentId"`
	Content     *wireContent `json:"content"`
	Permissions Permission   `json:"permissions,omitempty"`
	Created     int64        `json:"created,omitempty"`
	Modified    int64        `json:"modified,omitempty"`
}

type wireContent struct {
	Text      string     `json:"text"`
	Languages *Languages `json:"languages,omitempty"`
}

// Encode serializes t as a JSON object keyed by node id. Output is
// deterministic: keys are sorted and HTML characters are left unescaped.
func Encode(t *Tree) ([]byte, error) {
	return encode(t, false)
}

func encode(t *Tree, canonical bool) ([]byte, error) {
	str := func(s string) string { return s }
	if canonical {
		str = norm.NFC.String
	}

	out := make(map[string]wireNode, len(t.nodes))
	for id, n := range t.nodes {
		w := wireNode{
			ID:          n.ID,
			Type:        n.Kind(),
			Name:        str(n.Name),
			Permissions: n.Permission,
			Created:     toMillis(n.CreatedAt),
			Modified:    toMillis(n.ModifiedAt),
		}
		if n.ParentID != "" {
			parent := n.ParentID
			w.ParentID = &parent
		}
		if c, ok := n.Content(); ok {
			langs := c.Languages
			w.Content = &wireContent{Text: str(c.Text), Languages: &langs}
		}
		out[id] = w
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ErrEmptySnapshot is returned by Decode for empty input.
var ErrEmptySnapshot = errors.New("empty tree snapshot")

// Decode parses a serialized tree and repairs it. Nodes with an unknown type
// and nodes that cannot reach the root through folders are dropped; a
// missing or malformed root is replaced. The number of dropped nodes is
// returned alongside the tree.
func Decode(data []byte) (*Tree, int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, 0, ErrEmptySnapshot
	}

	var raw map[string]wireNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode tree: %w", err)
	}

	dropped := 0
	nodes := make(map[string]Node, len(raw))
	for key, w := range raw {
		n, err := fromWire(key, w)
		if err != nil {
			dropped++
			continue
		}
		nodes[n.ID] = n
	}

	t, pruned := repair(nodes)
	return t, dropped + pruned, nil
}

// DecodeOrDefault never fails: unreadable input yields the default tree and
// the reason it was rejected.
func DecodeOrDefault(data []byte) (*Tree, error) {
	t, _, err := Decode(data)
	if err != nil {
		return Default(), err
	}
	return t, nil
}

func fromWire(key string, w wireNode) (Node, error) {
	if key == "" {
		return Node{}, errors.New("empty node id")
	}
	n := Node{
		ID:         key,
		Name:       w.Name,
		Permission: w.Permissions,
		CreatedAt:  fromMillis(w.Created),
		ModifiedAt: fromMillis(w.Modified),
	}
	if w.ParentID != nil {
		n.ParentID = *w.ParentID
	}
	if !n.Permission.Valid() {
		n.Permission = PermissionPrivate
	}

	switch w.Type {
	case KindFolder:
		n.Body = Folder{}
	case KindSet:
		var body Set
		if w.Content != nil {
			// Stored tags are kept as written; only a missing object gets
			// the defaults.
			c := Content{Text: w.Content.Text, Languages: DefaultLanguages()}
			if w.Content.Languages != nil {
				c.Languages = *w.Content.Languages
			}
			body.Content = &c
		}
		n.Body = body
	default:
		return Node{}, fmt.Errorf("node %s: unknown type %q", key, w.Type)
	}
	return n, nil
}

// Repair enforces the structural invariants on t and reports how many
// nodes were pruned.
func Repair(t *Tree) (*Tree, int) {
	nodes := make(map[string]Node, len(t.nodes))
	for id, n := range t.nodes {
		nodes[id] = n
	}
	return repair(nodes)
}

func repair(nodes map[string]Node) (*Tree, int) {
	root, ok := nodes[RootID]
	if !ok || !root.IsFolder() || root.ParentID != "" {
		fixed := NewRoot()
		if ok {
			fixed.Permission = root.Permission
			fixed.CreatedAt = root.CreatedAt
			fixed.ModifiedAt = root.ModifiedAt
		}
		nodes[RootID] = fixed
	}

	kids := make(map[string][]string)
	for id, n := range nodes {
		if id != RootID {
			kids[n.ParentID] = append(kids[n.ParentID], id)
		}
	}

	// Anything not reachable from the root through folders is dangling,
	// cyclic, or hangs off a set.
	keep := map[string]bool{RootID: true}
	queue := []string{RootID}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if !nodes[p].IsFolder() {
			continue
		}
		for _, c := range kids[p] {
			if !keep[c] {
				keep[c] = true
				queue = append(queue, c)
			}
		}
	}

	pruned := 0
	for id := range nodes {
		if !keep[id] {
			delete(nodes, id)
			pruned++
		}
	}
	return build(nodes), pruned
}

// hashDomain separates tree hashes from any other SHA-256 use.
const hashDomain = "cardfs/tree/v1"

// Hash returns a hex SHA-256 over the canonical encoding of t (sorted keys,
// NFC strings). Equal trees hash equal; the hash serves as the snapshot
// version for echo suppression.
func Hash(t *Tree) string {
	data, err := encode(t, true)
	if err != nil {
		// Only strings, ints and nested structs are encoded.
		panic(err)
	}
	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
