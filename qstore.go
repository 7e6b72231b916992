// Package qstore is the embedded Evernote-compatible storage engine's
// public facade (spec.md §6): it aggregates every entity handler behind
// one object and exposes the full API as asynchronous, future-returning
// operations, rejecting construction with ErrInvalidArgument if the
// options fail validation.
package qstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/evernotelocal/qstore/internal/config"
	"github.com/evernotelocal/qstore/internal/dispatch"
	"github.com/evernotelocal/qstore/internal/notifier"
	"github.com/evernotelocal/qstore/internal/search"
	"github.com/evernotelocal/qstore/internal/storage/sqlite"
	"github.com/evernotelocal/qstore/internal/telemetry"
	"github.com/evernotelocal/qstore/internal/types"
)

// clearDatabaseFile removes dbFile and its WAL sidecar files, tolerating
// their absence, for config.StartupOptions.ClearDatabase.
func clearDatabaseFile(dbFile string) error {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(dbFile + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Re-exported so callers depend only on this package, mirroring the
// teacher's beads.go type-alias block.
type (
	Note             = types.Note
	NoteAttributes   = types.NoteAttributes
	Notebook         = types.Notebook
	LinkedNotebook   = types.LinkedNotebook
	Tag              = types.Tag
	Resource         = types.Resource
	SavedSearch      = types.SavedSearch
	User             = types.User
	UpdateNoteOptions = types.UpdateNoteOptions
	FetchNoteOptions = types.FetchNoteOptions
	FetchResourceOptions = types.FetchResourceOptions
	NoteCountOptions = types.NoteCountOptions
	SyncScope        = types.SyncScope
	Event            = notifier.Event
	EventKind        = notifier.EventKind
)

const (
	NoteCountIncludeNonDeleted = types.NoteCountIncludeNonDeleted
	NoteCountIncludeDeleted    = types.NoteCountIncludeDeleted

	SyncScopeWithinUserOwnContent                    = types.SyncScopeWithinUserOwnContent
	SyncScopeWithinUserOwnContentAndLinkedNotebooks   = types.SyncScopeWithinUserOwnContentAndLinkedNotebooks
	SyncScopeWithinLinkedNotebook                     = types.SyncScopeWithinLinkedNotebook

	// EventKind values, re-exported so a caller of this package can
	// Subscribe without importing the internal notifier package (which it
	// cannot -- "internal" is only visible within this module).
	UserPut                = notifier.UserPut
	UserExpunged           = notifier.UserExpunged
	NotebookPut            = notifier.NotebookPut
	NotebookExpunged       = notifier.NotebookExpunged
	LinkedNotebookPut      = notifier.LinkedNotebookPut
	LinkedNotebookExpunged = notifier.LinkedNotebookExpunged
	NotePut                = notifier.NotePut
	NoteUpdated            = notifier.NoteUpdated
	NoteNotebookChanged    = notifier.NoteNotebookChanged
	NoteTagListChanged     = notifier.NoteTagListChanged
	NoteExpunged           = notifier.NoteExpunged
	TagPut                 = notifier.TagPut
	TagExpunged            = notifier.TagExpunged
	ResourcePut            = notifier.ResourcePut
	ResourceMetadataPut    = notifier.ResourceMetadataPut
	ResourceExpunged       = notifier.ResourceExpunged
	SavedSearchPut         = notifier.SavedSearchPut
	SavedSearchExpunged    = notifier.SavedSearchExpunged
)

// Store is the facade spec.md §2/§6 describes: every public method
// submits a closure to the dispatcher and returns a Future immediately,
// never blocking the caller on the database itself.
type Store struct {
	pool           *sqlite.Pool
	dispatcher     *dispatch.Dispatcher
	notifier       *notifier.Bus
	shutdownFuncs  []func(context.Context) error

	users         *sqlite.UserHandler
	notebooks     *sqlite.NotebookHandler
	linkedNotebooks *sqlite.LinkedNotebookHandler
	tags          *sqlite.TagHandler
	notes         *sqlite.NoteHandler
	resources     *sqlite.ResourceHandler
	savedSearches *sqlite.SavedSearchHandler
	syncInfo      *sqlite.SyncInfoHandler
}

// Open applies opts.WithDefaults(), runs startup options (clear/override
// lock), opens the connection pool, migrates the schema, and constructs
// every handler. It returns InvalidArgument if opts fails validation.
func Open(ctx context.Context, opts config.Options) (*Store, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, types.InvalidArgumentf("qstore: %s", err.Error())
	}

	dbFile := fmt.Sprintf("%s/%s", opts.DatabasePath, opts.DatabaseFilenameSuffix)
	if opts.StartupOptions.ClearDatabase {
		if err := clearDatabaseFile(dbFile); err != nil {
			return nil, types.DatabaseRequestf("qstore: clear database", err)
		}
	}

	pool, err := sqlite.Open(sqlite.OpenOptions{
		Path:                   dbFile,
		BusyTimeoutMillis:      busyTimeoutMillis(opts),
		MaxOpenConnections:     opts.ReaderThreadPoolSize + 1,
		OverrideLockedDatabase: opts.StartupOptions.OverrideLockedDatabase,
	})
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	var shutdownFuncs []func(context.Context) error
	if opts.EnableStdoutMetrics {
		shutdown, err := telemetry.Init()
		if err != nil {
			pool.Close()
			return nil, err
		}
		shutdownFuncs = append(shutdownFuncs, shutdown)
	}
	if opts.EnableStdoutTraces {
		shutdown, err := telemetry.InitTracing()
		if err != nil {
			pool.Close()
			return nil, err
		}
		shutdownFuncs = append(shutdownFuncs, shutdown)
	}

	s := &Store{
		pool:          pool,
		dispatcher:    dispatch.New(dispatch.Options{ReaderPoolSize: int64(opts.ReaderThreadPoolSize)}),
		notifier:      notifier.New(),
		shutdownFuncs: shutdownFuncs,
		users:           sqlite.NewUserHandler(pool),
		notebooks:       sqlite.NewNotebookHandler(pool),
		linkedNotebooks: sqlite.NewLinkedNotebookHandler(pool),
		tags:            sqlite.NewTagHandler(pool),
		notes:           sqlite.NewNoteHandler(pool),
		resources:       sqlite.NewResourceHandler(pool),
		savedSearches:   sqlite.NewSavedSearchHandler(pool),
		syncInfo:        sqlite.NewSyncInfoHandler(pool),
	}
	return s, nil
}

func busyTimeoutMillis(opts config.Options) int {
	if opts.StartupOptions.OverrideLockedDatabase {
		return 0
	}
	return 5000
}

// Close stops the writer goroutine (resolving queued writes with
// ErrHandlerDestroyed), stops the notifier, and closes the connection
// pool. It waits for the writer goroutine to exit, for at most five
// seconds; past that it logs and goes on closing.
func (s *Store) Close() error {
	s.dispatcher.Close()
	s.notifier.Close()
	for _, shutdown := range s.shutdownFuncs {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("qstore: telemetry shutdown: %v", err)
		}
	}
	return s.pool.Close()
}

// Notifier returns the event bus observers subscribe to (spec.md §6
// "notifier() accessor").
func (s *Store) Notifier() *notifier.Bus {
	return s.notifier
}

// --- Users ---

// PutUser upserts a user and resolves with user-put.
func (s *Store) PutUser(ctx context.Context, u *types.User) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.users.PutUser(ctx, u); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.UserPut, LocalID: fmt.Sprintf("%d", u.ID)})
		return struct{}{}, nil
	})
}

// FindUser fetches the user row with the given Evernote user id.
func (s *Store) FindUser(ctx context.Context, id int32) *dispatch.Future[*types.User] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.User, error) {
		return s.users.FindUser(ctx, id)
	})
}

// ExpungeUser deletes the user row with the given Evernote user id.
func (s *Store) ExpungeUser(ctx context.Context, id int32) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.users.ExpungeUser(ctx, id); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.UserExpunged, LocalID: fmt.Sprintf("%d", id)})
		return struct{}{}, nil
	})
}

// --- Notebooks ---

// PutNotebook inserts or updates a notebook.
func (s *Store) PutNotebook(ctx context.Context, nb *types.Notebook) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.notebooks.PutNotebook(ctx, nb); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.NotebookPut, LocalID: nb.LocalID})
		return struct{}{}, nil
	})
}

// FindNotebookByLocalID fetches a notebook by local id.
func (s *Store) FindNotebookByLocalID(ctx context.Context, localID string) *dispatch.Future[*types.Notebook] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Notebook, error) {
		return s.notebooks.FindNotebookByLocalID(ctx, localID)
	})
}

// FindNotebookByGuid fetches a notebook by guid.
func (s *Store) FindNotebookByGuid(ctx context.Context, guid string) *dispatch.Future[*types.Notebook] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Notebook, error) {
		return s.notebooks.FindNotebookByGuid(ctx, guid)
	})
}

// FindNotebookByName fetches a notebook by case/diacritic-insensitive
// name, scoped to linkedNotebookGuid (empty forces user-own scope).
func (s *Store) FindNotebookByName(ctx context.Context, name, linkedNotebookGuid string) *dispatch.Future[*types.Notebook] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Notebook, error) {
		return s.notebooks.FindNotebookByName(ctx, name, linkedNotebookGuid)
	})
}

// FindDefaultNotebook fetches the unique default=true user-own notebook.
func (s *Store) FindDefaultNotebook(ctx context.Context) *dispatch.Future[*types.Notebook] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Notebook, error) {
		return s.notebooks.FindDefaultNotebook(ctx)
	})
}

// ListNotebooks returns notebooks matching opts.
func (s *Store) ListNotebooks(ctx context.Context, opts types.ListOptions[types.NotebookOrder]) *dispatch.Future[[]*types.Notebook] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]*types.Notebook, error) {
		return s.notebooks.ListNotebooks(ctx, opts)
	})
}

// CountNotebooks returns the number of notebooks matching affiliation,
// scoped to linkedNotebookGuids when affiliation selects linked content.
func (s *Store) CountNotebooks(ctx context.Context, affiliation types.Affiliation, linkedNotebookGuids []string) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.notebooks.CountNotebooks(ctx, affiliation, linkedNotebookGuids)
	})
}

// ListNotebookGuids returns the guids of notebooks matching opts.
func (s *Store) ListNotebookGuids(ctx context.Context, opts types.ListOptions[types.NotebookOrder]) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		return s.notebooks.ListNotebookGuids(ctx, opts)
	})
}

// ExpungeNotebookByLocalID cascades: notes, then their resources.
func (s *Store) ExpungeNotebookByLocalID(ctx context.Context, localID string) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.notebooks.ExpungeNotebookByLocalID(ctx, localID); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.NotebookExpunged, LocalID: localID})
		return struct{}{}, nil
	})
}

// ExpungeNotebookByName cascades by resolved local id; an empty
// linkedNotebookGuid forces user-own scope (spec.md Open Question
// resolution, DESIGN.md).
func (s *Store) ExpungeNotebookByName(ctx context.Context, name, linkedNotebookGuid string) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		nb, err := s.notebooks.FindNotebookByName(ctx, name, linkedNotebookGuid)
		if err != nil {
			return struct{}{}, err
		}
		if err := s.notebooks.ExpungeNotebookByName(ctx, name, linkedNotebookGuid); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.NotebookExpunged, LocalID: nb.LocalID})
		return struct{}{}, nil
	})
}

// --- Linked notebooks ---

// PutLinkedNotebook inserts or updates a linked notebook.
func (s *Store) PutLinkedNotebook(ctx context.Context, ln *types.LinkedNotebook) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.linkedNotebooks.PutLinkedNotebook(ctx, ln); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.LinkedNotebookPut, LocalID: ln.Guid})
		return struct{}{}, nil
	})
}

// FindLinkedNotebookByGuid fetches a linked notebook by guid.
func (s *Store) FindLinkedNotebookByGuid(ctx context.Context, guid string) *dispatch.Future[*types.LinkedNotebook] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.LinkedNotebook, error) {
		return s.linkedNotebooks.FindLinkedNotebookByGuid(ctx, guid)
	})
}

// ListLinkedNotebooks returns up to limit linked notebooks starting at
// offset.
func (s *Store) ListLinkedNotebooks(ctx context.Context, limit, offset int) *dispatch.Future[[]*types.LinkedNotebook] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]*types.LinkedNotebook, error) {
		return s.linkedNotebooks.ListLinkedNotebooks(ctx, limit, offset)
	})
}

// CountLinkedNotebooks returns the total number of linked notebooks.
func (s *Store) CountLinkedNotebooks(ctx context.Context) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.linkedNotebooks.CountLinkedNotebooks(ctx)
	})
}

// ExpungeLinkedNotebookByGuid cascades through its notebooks, notes,
// resources and tags.
func (s *Store) ExpungeLinkedNotebookByGuid(ctx context.Context, guid string) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.linkedNotebooks.ExpungeLinkedNotebookByGuid(ctx, guid); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.LinkedNotebookExpunged, LocalID: guid})
		return struct{}{}, nil
	})
}

// --- Tags ---

// PutTag inserts or updates a tag, rejecting a parent reference that
// would introduce a cycle (ErrCycle).
func (s *Store) PutTag(ctx context.Context, t *types.Tag) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.tags.PutTag(ctx, t); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.TagPut, LocalID: t.LocalID})
		return struct{}{}, nil
	})
}

// FindTagByLocalID fetches a tag by local id.
func (s *Store) FindTagByLocalID(ctx context.Context, localID string) *dispatch.Future[*types.Tag] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Tag, error) {
		return s.tags.FindTagByLocalID(ctx, localID)
	})
}

// FindTagByGuid fetches a tag by guid.
func (s *Store) FindTagByGuid(ctx context.Context, guid string) *dispatch.Future[*types.Tag] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Tag, error) {
		return s.tags.FindTagByGuid(ctx, guid)
	})
}

// FindTagByName fetches a tag by case/diacritic-insensitive name.
func (s *Store) FindTagByName(ctx context.Context, name, linkedNotebookGuid string) *dispatch.Future[*types.Tag] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Tag, error) {
		return s.tags.FindTagByName(ctx, name, linkedNotebookGuid)
	})
}

// ListTags returns tags matching opts.
func (s *Store) ListTags(ctx context.Context, opts types.ListOptions[types.TagOrder]) *dispatch.Future[[]*types.Tag] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]*types.Tag, error) {
		return s.tags.ListTags(ctx, opts)
	})
}

// CountTags returns the number of tags matching affiliation, scoped to
// linkedNotebookGuids when affiliation selects linked content.
func (s *Store) CountTags(ctx context.Context, affiliation types.Affiliation, linkedNotebookGuids []string) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.tags.CountTags(ctx, affiliation, linkedNotebookGuids)
	})
}

// ListTagGuids returns the guids of tags matching opts.
func (s *Store) ListTagGuids(ctx context.Context, opts types.ListOptions[types.TagOrder]) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		return s.tags.ListTagGuids(ctx, opts)
	})
}

// ExpungeTagByLocalID cascades to every descendant tag.
func (s *Store) ExpungeTagByLocalID(ctx context.Context, localID string) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		cascaded, err := s.tags.ExpungeTagByLocalID(ctx, localID)
		if err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.TagExpunged, LocalID: localID, CascadedLocalIDs: cascaded})
		return struct{}{}, nil
	})
}

// --- Saved searches ---

// PutSavedSearch inserts or updates a saved search.
func (s *Store) PutSavedSearch(ctx context.Context, ss *types.SavedSearch) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.savedSearches.PutSavedSearch(ctx, ss); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.SavedSearchPut, LocalID: ss.LocalID})
		return struct{}{}, nil
	})
}

// FindSavedSearchByLocalID fetches a saved search by local id.
func (s *Store) FindSavedSearchByLocalID(ctx context.Context, localID string) *dispatch.Future[*types.SavedSearch] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.SavedSearch, error) {
		return s.savedSearches.FindSavedSearchByLocalID(ctx, localID)
	})
}

// FindSavedSearchByGuid fetches a saved search by guid.
func (s *Store) FindSavedSearchByGuid(ctx context.Context, guid string) *dispatch.Future[*types.SavedSearch] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.SavedSearch, error) {
		return s.savedSearches.FindSavedSearchByGuid(ctx, guid)
	})
}

// FindSavedSearchByName fetches a saved search by its globally-unique name.
func (s *Store) FindSavedSearchByName(ctx context.Context, name string) *dispatch.Future[*types.SavedSearch] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.SavedSearch, error) {
		return s.savedSearches.FindSavedSearchByName(ctx, name)
	})
}

// ListSavedSearches returns saved searches matching opts.
func (s *Store) ListSavedSearches(ctx context.Context, opts types.SavedSearchListOptions) *dispatch.Future[[]*types.SavedSearch] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]*types.SavedSearch, error) {
		return s.savedSearches.ListSavedSearches(ctx, opts)
	})
}

// ListSavedSearchGuids returns the guids of saved searches matching opts.
func (s *Store) ListSavedSearchGuids(ctx context.Context, opts types.SavedSearchListOptions) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		return s.savedSearches.ListSavedSearchGuids(ctx, opts)
	})
}

// CountSavedSearches returns the total number of saved searches.
func (s *Store) CountSavedSearches(ctx context.Context) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.savedSearches.CountSavedSearches(ctx)
	})
}

// ExpungeSavedSearchByLocalID deletes a saved search by local id.
func (s *Store) ExpungeSavedSearchByLocalID(ctx context.Context, localID string) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.savedSearches.ExpungeSavedSearchByLocalID(ctx, localID); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.SavedSearchExpunged, LocalID: localID})
		return struct{}{}, nil
	})
}

// --- Notes ---

// PutNote unconditionally upserts a note, always writing its tags and
// resources (with binary data) along with the core fields (spec.md
// §4.3.7's "put", distinct from "update"). It publishes a single note-put
// event for a fresh insertion or note-updated for an existing row, plus
// note-notebook-changed/note-tag-list-changed when the before/after state
// differs.
func (s *Store) PutNote(ctx context.Context, n *types.Note) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		res, err := s.notes.PutNote(ctx, n)
		if err != nil {
			return struct{}{}, err
		}
		s.publishNoteUpsertEvents(n.LocalID, res, nil)
		return struct{}{}, nil
	})
}

// UpdateNote upserts a note, touching tags/resources only as opts directs,
// preserving whatever isn't flagged (spec.md §4.3.7's "update", distinct
// from "put"). Event publication follows the same single-primary-event
// plus diffed-secondary-events rule as PutNote.
func (s *Store) UpdateNote(ctx context.Context, n *types.Note, opts types.UpdateNoteOptions) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		res, err := s.notes.UpdateNote(ctx, n, opts)
		if err != nil {
			return struct{}{}, err
		}
		s.publishNoteUpsertEvents(n.LocalID, res, &opts)
		return struct{}{}, nil
	})
}

// publishNoteUpsertEvents implements spec.md §6's "every mutating API call
// produces exactly one primary event" for note upserts, plus the two
// secondary events §4.3.7 names when the notebook or tag set actually
// changed. Neither secondary event fires on insertion: there is no "before"
// state to have changed from.
func (s *Store) publishNoteUpsertEvents(localID string, res sqlite.NoteUpsertResult, opts *types.UpdateNoteOptions) {
	if res.Inserted {
		s.notifier.Publish(notifier.Event{Kind: notifier.NotePut, LocalID: localID})
		return
	}
	s.notifier.Publish(notifier.Event{Kind: notifier.NoteUpdated, LocalID: localID, NoteUpdateOptions: opts})
	if res.OldNotebookLocalID != res.NewNotebookLocalID {
		s.notifier.Publish(notifier.Event{
			Kind:               notifier.NoteNotebookChanged,
			LocalID:            localID,
			OldNotebookLocalID: res.OldNotebookLocalID,
			NewNotebookLocalID: res.NewNotebookLocalID,
		})
	}
	if !sameTagSet(res.OldTagLocalIDs, res.NewTagLocalIDs) {
		s.notifier.Publish(notifier.Event{
			Kind:           notifier.NoteTagListChanged,
			LocalID:        localID,
			OldTagLocalIDs: res.OldTagLocalIDs,
			NewTagLocalIDs: res.NewTagLocalIDs,
		})
	}
}

// sameTagSet reports whether a and b contain the same multiset of tag local
// ids, ignoring order.
func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		counts[id]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// FindNoteByLocalID fetches a note by local id, hydrating tags/resources
// per fetchOpts.
func (s *Store) FindNoteByLocalID(ctx context.Context, localID string, fetchOpts types.FetchNoteOptions) *dispatch.Future[*types.Note] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Note, error) {
		return s.notes.FindNoteByLocalID(ctx, localID, fetchOpts)
	})
}

// FindNoteByGuid fetches a note by guid.
func (s *Store) FindNoteByGuid(ctx context.Context, guid string, fetchOpts types.FetchNoteOptions) *dispatch.Future[*types.Note] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Note, error) {
		return s.notes.FindNoteByGuid(ctx, guid, fetchOpts)
	})
}

// ListNoteLocalIDsByNotebook returns the local ids of every note in
// notebookLocalID.
func (s *Store) ListNoteLocalIDsByNotebook(ctx context.Context, notebookLocalID string) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		return s.notes.ListNoteLocalIDsByNotebook(ctx, notebookLocalID)
	})
}

// ListNoteLocalIDsByTag returns the local ids of every note carrying
// tagLocalID.
func (s *Store) ListNoteLocalIDsByTag(ctx context.Context, tagLocalID string) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		return s.notes.ListNoteLocalIDsByTag(ctx, tagLocalID)
	})
}

// ListNoteLocalIDsByNotebookAndTag returns the local ids of every note in
// one of notebookLocalIDs carrying one of tagLocalIDs.
func (s *Store) ListNoteLocalIDsByNotebookAndTag(ctx context.Context, notebookLocalIDs, tagLocalIDs []string) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		return s.notes.ListNoteLocalIDsByNotebookAndTag(ctx, notebookLocalIDs, tagLocalIDs)
	})
}

// ListNoteLocalIDsByLocalIDs filters an explicit local-id list down to
// those that actually exist.
func (s *Store) ListNoteLocalIDsByLocalIDs(ctx context.Context, localIDs []string) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		return s.notes.ListNoteLocalIDsByLocalIDs(ctx, localIDs)
	})
}

// CountNotes returns the number of notes matching countOpts's
// deletion-state filter, across every notebook.
func (s *Store) CountNotes(ctx context.Context, countOpts types.NoteCountOptions) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.notes.CountNotes(ctx, countOpts)
	})
}

// CountNotesByNotebook returns the number of notes in notebookLocalID
// matching countOpts.
func (s *Store) CountNotesByNotebook(ctx context.Context, notebookLocalID string, countOpts types.NoteCountOptions) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.notes.CountNotesByNotebook(ctx, notebookLocalID, countOpts)
	})
}

// CountNotesByTag returns the number of notes carrying tagLocalID matching
// countOpts.
func (s *Store) CountNotesByTag(ctx context.Context, tagLocalID string, countOpts types.NoteCountOptions) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.notes.CountNotesByTag(ctx, tagLocalID, countOpts)
	})
}

// CountNotesByNotebookAndTag returns the number of notes in
// notebookLocalID carrying tagLocalID matching countOpts.
func (s *Store) CountNotesByNotebookAndTag(ctx context.Context, notebookLocalID, tagLocalID string, countOpts types.NoteCountOptions) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.notes.CountNotesByNotebookAndTag(ctx, notebookLocalID, tagLocalID, countOpts)
	})
}

// CountNotesByTags returns, for each tag local id in tagLocalIDs, the
// number of notes carrying it matching countOpts.
func (s *Store) CountNotesByTags(ctx context.Context, tagLocalIDs []string, countOpts types.NoteCountOptions) *dispatch.Future[map[string]int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (map[string]int, error) {
		return s.notes.CountNotesByTags(ctx, tagLocalIDs, countOpts)
	})
}

// ExpungeNoteByLocalID deletes a note and, via cascade, its resources.
func (s *Store) ExpungeNoteByLocalID(ctx context.Context, localID string) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.notes.ExpungeNoteByLocalID(ctx, localID); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.NoteExpunged, LocalID: localID})
		return struct{}{}, nil
	})
}

// QueryNotes parses queryText (spec.md §4.4's note-search language) and
// returns the matching notes, hydrated per fetchOpts.
func (s *Store) QueryNotes(ctx context.Context, queryText string, fetchOpts types.FetchNoteOptions, limit, offset int) *dispatch.Future[[]*types.Note] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]*types.Note, error) {
		q, err := search.Parse(queryText, time.Now())
		if err != nil {
			return nil, err
		}
		ids, err := s.notes.FindNotes(ctx, q, limit, offset)
		if err != nil {
			return nil, err
		}
		notes := make([]*types.Note, 0, len(ids))
		for _, id := range ids {
			n, err := s.notes.FindNoteByLocalID(ctx, id, fetchOpts)
			if err != nil {
				return nil, err
			}
			notes = append(notes, n)
		}
		return notes, nil
	})
}

// QueryNoteLocalIDs parses queryText and returns only the matching local
// ids, skipping the per-note hydration QueryNotes performs.
func (s *Store) QueryNoteLocalIDs(ctx context.Context, queryText string, limit, offset int) *dispatch.Future[[]string] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]string, error) {
		q, err := search.Parse(queryText, time.Now())
		if err != nil {
			return nil, err
		}
		return s.notes.FindNotes(ctx, q, limit, offset)
	})
}

// --- Resources ---

// PutResource inserts or updates a resource. indexInNote, when non-nil,
// places the resource at that position within its note, shifting siblings.
func (s *Store) PutResource(ctx context.Context, r *types.Resource, withBinaryData bool, indexInNote *int) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.resources.PutResource(ctx, r, withBinaryData, indexInNote); err != nil {
			return struct{}{}, err
		}
		kind := notifier.ResourceMetadataPut
		if withBinaryData {
			kind = notifier.ResourcePut
		}
		s.notifier.Publish(notifier.Event{Kind: kind, LocalID: r.LocalID})
		return struct{}{}, nil
	})
}

// FindResourceByLocalID fetches a resource by local id.
func (s *Store) FindResourceByLocalID(ctx context.Context, localID string, fetchOpts types.FetchResourceOptions) *dispatch.Future[*types.Resource] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Resource, error) {
		return s.resources.FindResourceByLocalID(ctx, localID, fetchOpts)
	})
}

// FindResourceByGuid fetches a resource by guid.
func (s *Store) FindResourceByGuid(ctx context.Context, guid string, fetchOpts types.FetchResourceOptions) *dispatch.Future[*types.Resource] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (*types.Resource, error) {
		return s.resources.FindResourceByGuid(ctx, guid, fetchOpts)
	})
}

// ListResourcesByNote returns every resource attached to noteLocalID.
func (s *Store) ListResourcesByNote(ctx context.Context, noteLocalID string, fetchOpts types.FetchResourceOptions) *dispatch.Future[[]*types.Resource] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) ([]*types.Resource, error) {
		return s.resources.ListResourcesByNote(ctx, noteLocalID, fetchOpts)
	})
}

// CountResourcesByNote returns the number of resources attached to
// noteLocalID.
func (s *Store) CountResourcesByNote(ctx context.Context, noteLocalID string) *dispatch.Future[int] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int, error) {
		return s.resources.CountResourcesByNote(ctx, noteLocalID)
	})
}

// ExpungeResourceByLocalID deletes a resource by local id.
func (s *Store) ExpungeResourceByLocalID(ctx context.Context, localID string) *dispatch.Future[struct{}] {
	return dispatch.SubmitWrite(ctx, s.dispatcher, func(ctx context.Context) (struct{}, error) {
		if err := s.resources.ExpungeResourceByLocalID(ctx, localID); err != nil {
			return struct{}{}, err
		}
		s.notifier.Publish(notifier.Event{Kind: notifier.ResourceExpunged, LocalID: localID})
		return struct{}{}, nil
	})
}

// --- Sync info ---

// HighestUpdateSequenceNumber returns the highest USN across the tables
// scope names (spec.md §4.5).
func (s *Store) HighestUpdateSequenceNumber(ctx context.Context, scope types.SyncScope, linkedNotebookGuid string) *dispatch.Future[int32] {
	return dispatch.SubmitRead(ctx, s.dispatcher, func(ctx context.Context) (int32, error) {
		return s.syncInfo.HighestUSN(ctx, scope, linkedNotebookGuid)
	})
}
