package types

import "time"

// Publishing is the optional publishing sub-block of a Notebook.
type Publishing struct {
	URI           *string
	Order         *int32
	Ascending     bool
	PublicDescription *string
}

// BusinessNotebook is the optional business-notebook sub-block of a Notebook.
type BusinessNotebook struct {
	Notebook      *string
	Recommended   bool
}

// NotebookRestrictions is the optional restrictions sub-block of a Notebook.
type NotebookRestrictions struct {
	NoReadNotes            bool
	NoCreateNotes           bool
	NoUpdateNotes           bool
	NoExpungeNotes          bool
	NoShareNotes            bool
	NoEmailNotes            bool
	NoSendMessageToRecipients bool
	NoUpdateNotebook        bool
	NoExpungeNotebook       bool
	NoSetDefaultNotebook    bool
	NoSetNotebookStack      bool
	NoPublishToPublic       bool
	NoPublishToBusinessLibrary bool
	NoCreateTags            bool
	NoUpdateTags            bool
	NoExpungeTags           bool
	NoSetParentTag          bool
	NoCreateSharedNotebooks bool
	UpdateWhichSharedNotebookRestrictions *int32
	ExpungeWhichSharedNotebookRestrictions *int32
}

// NotebookRecipientSettings is the optional per-recipient-settings sub-block.
type NotebookRecipientSettings struct {
	ReminderNotifyEmail *bool
	ReminderNotifyInApp *bool
	InMyList            *bool
	Stack               *string
}

// SharedNotebook describes how a notebook has been shared with one other
// Evernote user. Notebooks carry an ordered list of these, replaced in full
// (delete-and-reinsert) on every put.
type SharedNotebook struct {
	ID                        int64
	NotebookGuid              Guid
	Email                     *string
	NotebookModifiable        *bool
	Privilege                 *SharedNotebookPrivilegeLevel
	SharerUserID              *int32
	RecipientUsername         *string
	RecipientUserID           *int32
	Created                   *time.Time
	Updated                   *time.Time
	AssignmentTimestamp       *time.Time
}

// Notebook is a container for notes: local-own or owned by a linked
// notebook (LinkedNotebookGuid non-empty). See spec.md §3 invariants 2, 8, 9.
type Notebook struct {
	LocalID              LocalID
	Guid                 *Guid
	Name                 string
	UpdateSequenceNumber *int32
	Created              *time.Time
	Updated              *time.Time
	Default              bool
	Publishing           *Publishing
	Published            bool
	Stack                *string
	SharedNotebooks      []SharedNotebook
	BusinessNotebook     *BusinessNotebook
	Contact              *User
	Restrictions         *NotebookRestrictions
	RecipientSettings    *NotebookRecipientSettings
	LinkedNotebookGuid   *Guid // nil/empty => user-own scope
	LocallyModified      bool
	LocallyFavorited     bool
	LocalOnly            bool
}

// OwningLinkedNotebookGuid returns the empty string for a user-own notebook,
// matching the (name, linkedNotebookGuid-or-empty) uniqueness scoping key
// used throughout spec.md §3.
func (n *Notebook) OwningLinkedNotebookGuid() string {
	if n.LinkedNotebookGuid == nil {
		return ""
	}
	return *n.LinkedNotebookGuid
}
