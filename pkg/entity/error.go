package entity

import "context"

// NotFoundError is returned when an addressed entity does not exist, either
// because it never did or because it has been garbage-collected.
type NotFoundError struct {
	Ref Ref
}

func (e NotFoundError) Error() string {
	if e.Ref.IsZero() {
		return "entity not found"
	}

	return "entity not found: " + e.Ref.String()
}

// Checker reports whether an entity currently exists. It is implemented by
// storage drivers and consumed by the cross-reference index to detect
// dangling edges at resolution time.
type Checker interface {
	Exists(ctx context.Context, ref Ref) (bool, error)
}
