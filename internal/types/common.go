// Package types defines the Evernote-compatible object graph persisted by
// the storage engine: users, notebooks, linked notebooks, tags, notes,
// resources and saved searches, plus the filter/option bundles the storage
// handlers accept.
package types

import (
	"fmt"
	"unicode/utf8"
)

// PrivilegeLevel mirrors Evernote's published numeric privilege levels for a
// user account. The values round-trip through storage unchanged; they are
// never renumbered or reordered.
type PrivilegeLevel int32

const (
	PrivilegeNormal PrivilegeLevel = 1
	PrivilegePremium PrivilegeLevel = 3
	PrivilegeVIP PrivilegeLevel = 5
	PrivilegeManager PrivilegeLevel = 7
	PrivilegeSupport PrivilegeLevel = 8
	PrivilegeAdmin PrivilegeLevel = 9
)

// SharedNotebookPrivilegeLevel mirrors Evernote's published numeric
// privilege levels for a shared notebook recipient.
type SharedNotebookPrivilegeLevel int32

const (
	SharedNotebookPrivilegeReadNotebook SharedNotebookPrivilegeLevel = 0
	SharedNotebookPrivilegeModifyNotebookPlusActivity SharedNotebookPrivilegeLevel = 1
	SharedNotebookPrivilegeReadNotebookPlusActivity SharedNotebookPrivilegeLevel = 2
	SharedNotebookPrivilegeGroup SharedNotebookPrivilegeLevel = 3
	SharedNotebookPrivilegeFullAccess SharedNotebookPrivilegeLevel = 4
	SharedNotebookPrivilegeBusinessFullAccess SharedNotebookPrivilegeLevel = 5
)

// Affiliation selects which ownership scope a notebook/tag listing covers.
type Affiliation int

const (
	AffiliationAny Affiliation = iota
	AffiliationUser
	AffiliationAnyLinkedNotebook
	AffiliationParticularLinkedNotebooks
)

// TriState expresses an include/exclude/either filter dimension, used for
// the locally-modified and locally-favorited filters across list options.
type TriState int

const (
	TriStateEither TriState = iota
	TriStateInclude
	TriStateExclude
)

// Match reports whether a flag value satisfies this tri-state filter.
func (t TriState) Match(flag bool) bool {
	switch t {
	case TriStateInclude:
		return flag
	case TriStateExclude:
		return !flag
	default:
		return true
	}
}

// OrderDirection controls ascending/descending order on a list operation.
type OrderDirection int

const (
	OrderAscending OrderDirection = iota
	OrderDescending
)

// NotebookOrder enumerates the sortable notebook columns.
type NotebookOrder int

const (
	NotebookOrderNone NotebookOrder = iota
	NotebookOrderByUpdateSequenceNumber
	NotebookOrderByName
	NotebookOrderByCreationTimestamp
	NotebookOrderByModificationTimestamp
)

// TagOrder enumerates the sortable tag columns.
type TagOrder int

const (
	TagOrderNone TagOrder = iota
	TagOrderByUpdateSequenceNumber
	TagOrderByName
)

// SavedSearchOrder enumerates the sortable saved-search columns.
type SavedSearchOrder int

const (
	SavedSearchOrderNone SavedSearchOrder = iota
	SavedSearchOrderByUpdateSequenceNumber
	SavedSearchOrderByName
)

// ListOptions is the common affiliation/filter/order/limit bundle shared by
// list-notebooks, list-notebook-guids, list-tags and list-tag-guids.
type ListOptions[OrderT any] struct {
	Affiliation           Affiliation
	LinkedNotebookGuids    []string // only consulted when Affiliation == AffiliationParticularLinkedNotebooks
	LocallyModifiedFilter TriState
	LocallyFavoritedFilter TriState
	Order                 OrderT
	Direction             OrderDirection
	Limit                 int // 0 means unbounded
	Offset                int
}

// SavedSearchListOptions is the filter bundle for listSavedSearchGuids.
type SavedSearchListOptions struct {
	LocallyModifiedFilter  TriState
	LocallyFavoritedFilter TriState
	Order                  SavedSearchOrder
	Direction              OrderDirection
	Limit                  int
	Offset                 int
}

// UpdateNoteOptions controls which parts of a note are touched by an update.
type UpdateNoteOptions struct {
	UpdateResourceMetadata   bool
	UpdateResourceBinaryData bool
	UpdateTags               bool
}

// FetchNoteOptions controls which parts of a note are populated on find.
type FetchNoteOptions struct {
	WithResourceMetadata   bool
	WithResourceBinaryData bool
}

// FetchResourceOptions controls whether binary bodies are populated on find.
type FetchResourceOptions struct {
	WithBinaryData bool
}

// NoteCountOptions is a bitset selecting which notes (by deletion state) a
// count operation considers.
type NoteCountOptions int

const (
	NoteCountIncludeNonDeleted NoteCountOptions = 1 << iota
	NoteCountIncludeDeleted
)

// SyncScope selects the scope a highest-update-sequence-number query covers.
type SyncScope int

const (
	SyncScopeWithinUserOwnContent SyncScope = iota
	SyncScopeWithinUserOwnContentAndLinkedNotebooks
	SyncScopeWithinLinkedNotebook
)

// Guid is a server-issued universally unique string identifier.
type Guid = string

// LocalID is a database-internal string primary key.
type LocalID = string

// FullMap mirrors qevercloud's LazyMap: a set of keys plus an optional
// key-to-value map layered on top of it.
type FullMap struct {
	Keys       []string
	FullMap    map[string]string
	HasFullMap bool
}

// ValidateName checks the common non-empty, length-bounded name rule shared
// by notebooks, tags and saved searches.
func ValidateName(kind, name string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(name)
	if n < minLen || n > maxLen {
		return fmt.Errorf("%s name must be between %d and %d characters, got %d", kind, minLen, maxLen, n)
	}
	return nil
}

const (
	MinNameLength = 1
	MaxNameLength = 100
)
