package types

// Tag is a hierarchical label, optionally scoped to a linked notebook. The
// tag-parent relation forms a forest (invariant 4 in spec.md §3).
type Tag struct {
	LocalID              LocalID
	Guid                 *Guid
	Name                 string
	UpdateSequenceNumber *int32
	ParentTagLocalID     *LocalID
	ParentGuid           *Guid
	LinkedNotebookGuid   *Guid // nil/empty => user-own scope
	LocallyModified      bool
	LocallyFavorited     bool
	LocalOnly            bool
}

// OwningLinkedNotebookGuid mirrors Notebook.OwningLinkedNotebookGuid for the
// (name, linkedNotebookGuid-or-empty) uniqueness scope.
func (t *Tag) OwningLinkedNotebookGuid() string {
	if t.LinkedNotebookGuid == nil {
		return ""
	}
	return *t.LinkedNotebookGuid
}
