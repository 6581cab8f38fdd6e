package tree

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind distinguishes folders from flashcard sets.
type Kind string

const (
	KindFolder Kind = "folder"
	KindSet    Kind = "set"
)

// ParseKind accepts "folder" or "set".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFolder, KindSet:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown item kind %q", s)
	}
}

// Permission is the sharing level of a node. It is metadata only; nothing in
// this module enforces it.
type Permission string

const (
	PermissionPrivate Permission = "private"
	PermissionLink    Permission = "link"
	PermissionPublic  Permission = "public"
)

// Valid reports whether p is one of the known permission levels.
func (p Permission) Valid() bool {
	switch p {
	case PermissionPrivate, PermissionLink, PermissionPublic:
		return true
	}
	return false
}

// Root node constants.
const (
	RootID   = "root"
	RootName = "Main"
)

// DefaultLanguage is the language tag used for both sides of a card when
// none has been chosen.
const DefaultLanguage = "en-US"

// Languages holds the BCP-47 tags for the term and definition sides.
type Languages struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// DefaultLanguages returns en-US for both sides.
func DefaultLanguages() Languages {
	return Languages{Term: DefaultLanguage, Definition: DefaultLanguage}
}

// WithDefaults fills each empty tag with DefaultLanguage.
func (l Languages) WithDefaults() Languages {
	if l.Term == "" {
		l.Term = DefaultLanguage
	}
	if l.Definition == "" {
		l.Definition = DefaultLanguage
	}
	return l
}

// Content is the authored text of a flashcard set.
type Content struct {
	Text      string    `json:"text"`
	Languages Languages `json:"languages"`
}

// Body is the kind-specific part of a node. It is sealed: only Folder and
// Set implement it, which keeps content off folders.
type Body interface {
	Kind() Kind
	isBody()
}

// Folder is the body of a folder node.
type Folder struct{}

func (Folder) Kind() Kind { return KindFolder }
func (Folder) isBody()    {}

// Set is the body of a flashcard set. Content stays nil until the first save.
type Set struct {
	Content *Content
}

func (Set) Kind() Kind { return KindSet }
func (Set) isBody()    {}

// Node is one entry of the tree.
type Node struct {
	ID         string
	Name       string
	ParentID   string // empty only for the root
	Permission Permission
	CreatedAt  time.Time
	ModifiedAt time.Time
	Body       Body
}

// Kind returns the node's kind, derived from its body.
// A node with no body is treated as a folder.
func (n Node) Kind() Kind {
	if n.Body == nil {
		return KindFolder
	}
	return n.Body.Kind()
}

// IsFolder reports whether n can contain children.
func (n Node) IsFolder() bool { return n.Kind() == KindFolder }

// IsRoot reports whether n is the tree root.
func (n Node) IsRoot() bool { return n.ID == RootID }

// Content returns a copy of the set content. ok is false for folders and
// for sets that were never saved.
func (n Node) Content() (c Content, ok bool) {
	s, isSet := n.Body.(Set)
	if !isSet || s.Content == nil {
		return Content{}, false
	}
	return *s.Content, true
}

// WithContent returns a copy of a set node carrying c, with empty language
// tags set to the default. Folders are returned unchanged.
func (n Node) WithContent(c Content) Node {
	if _, isSet := n.Body.(Set); !isSet {
		return n
	}
	c.Languages = c.Languages.WithDefaults()
	n.Body = Set{Content: &c}
	return n
}

// NewFolder builds a folder node with private permission.
func NewFolder(id, name, parentID string, now time.Time) Node {
	return Node{
		ID:         id,
		Name:       NormalizeName(name),
		ParentID:   parentID,
		Permission: PermissionPrivate,
		CreatedAt:  Stamp(now),
		ModifiedAt: Stamp(now),
		Body:       Folder{},
	}
}

// NewSet builds a set node with private permission. content may be nil;
// empty language tags get the default.
func NewSet(id, name, parentID string, content *Content, now time.Time) Node {
	var body Set
	if content != nil {
		c := *content
		c.Languages = c.Languages.WithDefaults()
		body.Content = &c
	}
	return Node{
		ID:         id,
		Name:       NormalizeName(name),
		ParentID:   parentID,
		Permission: PermissionPrivate,
		CreatedAt:  Stamp(now),
		ModifiedAt: Stamp(now),
		Body:       body,
	}
}

// NewRoot returns the root folder.
func NewRoot() Node {
	return Node{
		ID:         RootID,
		Name:       RootName,
		Permission: PermissionPrivate,
		Body:       Folder{},
	}
}

// Stamp truncates t to the millisecond precision of the wire format so a
// serialized tree reads back equal.
func Stamp(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Truncate(time.Millisecond).UTC()
}

// NormalizeName applies NFC so that visually identical names compare and
// hash the same.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// IsBlankName reports whether name is empty after trimming whitespace.
func IsBlankName(name string) bool {
	return strings.TrimSpace(name) == ""
}
