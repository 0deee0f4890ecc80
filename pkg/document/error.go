package document

import "fmt"

// ForeignRevisionError is returned when a checkout names a revision whose
// ancestor chain does not reach the document's root.
type ForeignRevisionError struct {
	DocumentID string
	RevisionID string
}

func (e ForeignRevisionError) Error() string {
	return fmt.Sprintf("revision %s does not belong to document %s", e.RevisionID, e.DocumentID)
}
