package collection

import "fmt"

// CycleDetectedError is returned when a move would make an item its own
// ancestor.
type CycleDetectedError struct {
	ItemID   string
	ParentID string
}

func (e CycleDetectedError) Error() string {
	return fmt.Sprintf("moving item %s under %s would create a cycle", e.ItemID, e.ParentID)
}
