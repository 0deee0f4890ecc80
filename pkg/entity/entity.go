// Package entity provides generic addressable identities for everything the
// storage core manages. Structural layers (conversations, documents,
// collections, cross-references) exchange entity.Ref values instead of raw
// ids so that any record can point at any other kind of record.
package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies the type of an addressable entity.
type Kind string

const (
	KindContent      Kind = "content"
	KindAsset        Kind = "asset"
	KindConversation Kind = "conversation"
	KindTurn         Kind = "turn"
	KindAlternative  Kind = "alternative"
	KindView         Kind = "view"
	KindDocument     Kind = "document"
	KindRevision     Kind = "revision"
	KindCollection   Kind = "collection"
	KindItem         Kind = "item"
)

// Ref is a typed pointer to an addressable entity. It carries no lifecycle
// semantics: holding a Ref never keeps the target alive, and a Ref may
// outlive its target (see reference.Backlink.Dangling).
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// String renders the ref in "kind:id" form.
func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID
}

// IsZero reports whether the ref is empty.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// ParseRef parses a "kind:id" string produced by Ref.String.
func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || kind == "" || id == "" {
		return Ref{}, fmt.Errorf("malformed entity ref %q", s)
	}
	return Ref{Kind: Kind(kind), ID: id}, nil
}

// NewID returns a fresh identifier for a structural entity. Content blocks
// and assets do not use this; their ids are content-addressed digests.
func NewID() string {
	return uuid.NewString()
}
