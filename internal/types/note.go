package types

import "time"

// NoteAttributes is the optional attributes sub-block of a Note. Carries
// the location/source/reminder/todo-adjacent metadata the note-search query
// engine's typed attribute terms match against.
type NoteAttributes struct {
	SubjectDate          *time.Time
	Latitude             *float64
	Longitude            *float64
	Altitude             *float64
	Author               *string
	Source               *string
	SourceURL            *string
	SourceApplication    *string
	ShareDate            *time.Time
	ReminderOrder        *int64
	ReminderDoneTime     *time.Time
	ReminderTime         *time.Time
	PlaceName            *string
	ContentClass         *string
	ApplicationData      *FullMap
	LastEditedBy         *string
	Classifications      map[string]string
	CreatorID            *int32
	LastEditorID         *int32
	SharedWithBusiness   bool
	ConflictSourceNoteGuid *string
	NoteTitleQuality     *int32
}

// NoteLimits is the optional limits sub-block of a Note (distinct from
// Restrictions; see SPEC_FULL.md §1 data-model supplement).
type NoteLimits struct {
	NoteResourceCountMax *int32
	UploadLimit          *int64
	ResourceSizeMax      *int64
	NoteSizeMax          *int64
	Uploaded             *int64
}

// NoteRestrictions is the optional restrictions sub-block of a Note.
type NoteRestrictions struct {
	NoUpdateTitle       bool
	NoUpdateContent     bool
	NoEmail             bool
	NoShare             bool
	NoSharePublicly     bool
}

// SharedNote describes how a note has been shared with one other user.
type SharedNote struct {
	SharerUserID       *int32
	RecipientIdentityID *int64
	Privilege          *SharedNotebookPrivilegeLevel
	Created            *time.Time
	Updated            *time.Time
	AssignmentTimestamp *time.Time
}

// Note is the core content entity: title, ENML content, attachments,
// tags, timestamps and the three optional sub-blocks. See spec.md §3 and
// §4.3.7 for the update-option semantics.
type Note struct {
	LocalID              LocalID
	Guid                 *Guid
	NotebookLocalID      LocalID
	NotebookGuid         *Guid
	Title                *string
	Content              *string
	ContentHash          []byte
	ContentLength        *int32
	Created              *time.Time
	Updated              *time.Time
	Deleted              *time.Time
	Active               bool
	UpdateSequenceNumber *int32
	Attributes           *NoteAttributes
	Limits               *NoteLimits
	Restrictions         *NoteRestrictions
	TagLocalIDs          []LocalID
	TagGuids             []Guid
	SharedNotes          []SharedNote
	Resources            []Resource
	LocallyModified      bool
	LocallyFavorited     bool
	LocalOnly            bool
}
