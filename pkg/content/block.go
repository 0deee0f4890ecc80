// Package content implements the content-addressed store at the bottom of
// the storage core. Blocks are immutable once written: there is no update
// operation, and deletion happens only through the reachability sweep in
// pkg/gc.
package content

import (
	"time"
)

// Producer identifies what kind of actor produced a piece of content.
type Producer string

const (
	ProducerUser      Producer = "user"
	ProducerAssistant Producer = "assistant"
	ProducerSystem    Producer = "system"
	ProducerImport    Producer = "import"
	ProducerTool      Producer = "tool"
)

// Origin records the provenance of a block. Origin participates in block
// identity: two blocks with identical text but different origins are
// distinct entities with distinct ids.
type Origin struct {
	// Producer is the kind of actor that produced the content.
	Producer Producer `json:"producer"`

	// UserID identifies the human author, when the producer is a user.
	UserID string `json:"user_id,omitempty"`

	// ModelID identifies the model, when the producer is an assistant.
	ModelID string `json:"model_id,omitempty"`

	// SourceID identifies an external source for imported content.
	SourceID string `json:"source_id,omitempty"`

	// ParentID points at the block this content was derived from by an
	// edit. Empty for content authored from scratch.
	ParentID string `json:"parent_id,omitempty"`
}

// Block is an immutable, content-addressed unit of text.
//
// ID is derived from the payload digest together with the origin, so the
// digest alone addresses the bytes while the id addresses the (bytes,
// provenance) pair. The digest is for integrity and addressing, never for
// identity-merging across producers.
type Block struct {
	// ID is the content-addressed identifier (SHA-256 over digest+origin,
	// hex-encoded).
	ID string `json:"id"`

	// Digest is the SHA-256 hex digest of the raw text payload.
	Digest string `json:"digest"`

	// MediaType is the MIME type of the payload, defaulting to text/plain.
	MediaType string `json:"media_type"`

	// Text is the raw payload.
	Text string `json:"text"`

	// Origin records provenance and participates in the id.
	Origin Origin `json:"origin"`

	// CreatedAt is set by the store on first insert and is not part of
	// the id.
	CreatedAt time.Time `json:"created_at"`
}

// Asset is an immutable binary payload stored by digest alone. Unlike text
// blocks, assets are addressed purely by their bytes; provenance is stored
// but does not participate in the id.
type Asset struct {
	// ID is the SHA-256 hex digest of the data.
	ID string `json:"id"`

	// MediaType is the MIME type of the data.
	MediaType string `json:"media_type"`

	// Data is the raw payload.
	Data []byte `json:"data"`

	// Origin records provenance.
	Origin Origin `json:"origin"`

	// CreatedAt is set by the store on first insert.
	CreatedAt time.Time `json:"created_at"`
}

// NewBlock builds a text block with its id computed. MediaType defaults to
// text/plain when empty.
func NewBlock(text string, mediaType string, origin Origin) *Block {
	if mediaType == "" {
		mediaType = "text/plain"
	}

	digest := digestBytes([]byte(text))

	return &Block{
		ID:        computeID(digest, origin),
		Digest:    digest,
		MediaType: mediaType,
		Text:      text,
		Origin:    origin,
	}
}

// NewAsset builds a binary asset with its digest id computed.
func NewAsset(data []byte, mediaType string, origin Origin) *Asset {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	return &Asset{
		ID:        digestBytes(data),
		MediaType: mediaType,
		Data:      data,
		Origin:    origin,
	}
}
