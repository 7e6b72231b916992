package types

// LinkedNotebook is a handle to a notebook owned by a different Evernote
// account and shared into this account. Its guid is the only lookup key
// (spec.md §4.3.11): it has no local id, neither in this struct nor in
// the linked_notebooks table, whose primary key is the guid.
type LinkedNotebook struct {
	Guid                     Guid
	UpdateSequenceNumber     *int32
	ShareName                *string
	Username                 *string
	ShardID                  *string
	SharedNotebookGlobalID   *string
	Uri                      *string
	NoteStoreUrl             *string
	WebApiUrlPrefix          *string
	Stack                    *string
	BusinessID               *int32
	LocallyModified          bool
}
