package content

import "context"

// Store defines the persistence contract for content blocks and assets.
// Implementations live under pkg/storage; the interface is defined here so
// engines can depend on it without a circular dependency, mirroring the
// loader pattern used throughout the module.
type Store interface {
	// PutBlock stores a block. Returns true if the block was newly
	// inserted, false if a block with the same id already existed.
	// Inserts are idempotent: identical payload digest and origin dedupe
	// to one block.
	PutBlock(ctx context.Context, block *Block) (bool, error)

	// GetBlock retrieves a block by id. Returns entity.NotFoundError if
	// the block is absent or has been garbage-collected.
	GetBlock(ctx context.Context, id string) (*Block, error)

	// PutAsset stores a binary asset by digest. Idempotent.
	PutAsset(ctx context.Context, asset *Asset) (bool, error)

	// GetAsset retrieves an asset by digest.
	GetAsset(ctx context.Context, id string) (*Asset, error)

	// ScanBlocks iterates every block in the store in insertion order,
	// calling fn for each. If fn returns false, iteration stops. Scanners
	// must tolerate blocks that have no structural referent yet.
	ScanBlocks(ctx context.Context, fn func(*Block) (bool, error)) error

	// DeleteBlocks removes the given blocks. Only the garbage collector
	// calls this; engines never delete content. Returns the number of
	// blocks actually removed.
	DeleteBlocks(ctx context.Context, ids []string) (int, error)
}
