package conversation

import "fmt"

// InvalidSelectionError is returned when a selection names an alternative
// that does not belong to the given turn.
type InvalidSelectionError struct {
	TurnID        string
	AlternativeID string
}

func (e InvalidSelectionError) Error() string {
	return fmt.Sprintf("alternative %s does not belong to turn %s", e.AlternativeID, e.TurnID)
}

// NotReadyError is returned when a selection names an alternative that is
// still open: its message sequence is not yet published and must not be
// observable through a view.
type NotReadyError struct {
	AlternativeID string
}

func (e NotReadyError) Error() string {
	return fmt.Sprintf("alternative %s is not closed yet", e.AlternativeID)
}

// ForeignConversationError is returned when an operation mixes structures
// from different conversations, such as forking a view at a turn that
// belongs to another conversation.
type ForeignConversationError struct {
	ViewID string
	TurnID string
}

func (e ForeignConversationError) Error() string {
	return fmt.Sprintf("turn %s does not belong to the conversation of view %s", e.TurnID, e.ViewID)
}
