// Package notifier implements spec.md §4.2's notifier: a typed event bus
// confined to a single "owning thread" goroutine, grounded on the
// teacher's internal/eventbus.Bus (Register/Dispatch/priority-sorted
// handler list) but reshaped from multi-handler synchronous dispatch into
// a single-consumer-goroutine model, since spec.md ties every emission to
// one specific thread rather than to a call stack.
package notifier

import "github.com/evernotelocal/qstore/internal/types"

// EventKind enumerates the notification kinds spec.md §4.2 lists.
type EventKind int

const (
	UserPut EventKind = iota
	UserExpunged
	NotebookPut
	NotebookExpunged
	LinkedNotebookPut
	LinkedNotebookExpunged
	NotePut
	NoteUpdated
	NoteNotebookChanged
	NoteTagListChanged
	NoteExpunged
	TagPut
	TagExpunged
	ResourcePut
	ResourceMetadataPut
	ResourceExpunged
	SavedSearchPut
	SavedSearchExpunged
)

// String names an EventKind for logging.
func (k EventKind) String() string {
	switch k {
	case UserPut:
		return "user-put"
	case UserExpunged:
		return "user-expunged"
	case NotebookPut:
		return "notebook-put"
	case NotebookExpunged:
		return "notebook-expunged"
	case LinkedNotebookPut:
		return "linked-notebook-put"
	case LinkedNotebookExpunged:
		return "linked-notebook-expunged"
	case NotePut:
		return "note-put"
	case NoteUpdated:
		return "note-updated"
	case NoteNotebookChanged:
		return "note-notebook-changed"
	case NoteTagListChanged:
		return "note-tag-list-changed"
	case NoteExpunged:
		return "note-expunged"
	case TagPut:
		return "tag-put"
	case TagExpunged:
		return "tag-expunged"
	case ResourcePut:
		return "resource-put"
	case ResourceMetadataPut:
		return "resource-metadata-put"
	case ResourceExpunged:
		return "resource-expunged"
	case SavedSearchPut:
		return "saved-search-put"
	case SavedSearchExpunged:
		return "saved-search-expunged"
	default:
		return "unknown-event"
	}
}

// Event carries a kind plus whichever payload fields that kind defines.
// Only the fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind EventKind

	// LocalID is the affected entity's local id, set on every event.
	LocalID types.LocalID

	// NoteUpdateOptions carries the update-option flags in effect for a
	// NoteUpdated event.
	NoteUpdateOptions *types.UpdateNoteOptions

	// OldNotebookLocalID/NewNotebookLocalID carry a NoteNotebookChanged
	// event's before/after notebook.
	OldNotebookLocalID types.LocalID
	NewNotebookLocalID types.LocalID

	// OldTagLocalIDs/NewTagLocalIDs carry a NoteTagListChanged event's
	// before/after tag list.
	OldTagLocalIDs []types.LocalID
	NewTagLocalIDs []types.LocalID

	// CascadedLocalIDs carries a TagExpunged event's list of descendant
	// tag local ids deleted along with LocalID.
	CascadedLocalIDs []types.LocalID
}
