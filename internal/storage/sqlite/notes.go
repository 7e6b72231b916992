package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evernotelocal/qstore/internal/idgen"
	"github.com/evernotelocal/qstore/internal/search"
	"github.com/evernotelocal/qstore/internal/types"
)

// NoteHandler implements spec.md §4.3.3/§4.3.7: the core content entity,
// its tag/resource relations, and FindNotes(query) which hands a parsed
// search.Query to search.Compile and splices the resulting predicate into
// a SELECT over this table (spec.md §4.4).
type NoteHandler struct {
	pool *Pool
}

// NewNoteHandler constructs a handler bound to pool.
func NewNoteHandler(pool *Pool) *NoteHandler {
	return &NoteHandler{pool: pool}
}

// NoteUpsertResult reports what upsertNote actually did, so the facade can
// publish exactly one primary notifier event (spec.md §6 "every mutating
// API call produces exactly one primary event") plus whichever secondary
// events the before/after diff calls for.
type NoteUpsertResult struct {
	Inserted bool

	OldNotebookLocalID string
	NewNotebookLocalID string

	OldTagLocalIDs []string
	NewTagLocalIDs []string
}

// PutNote unconditionally upserts a note's core fields, tags and resources
// (with binary data) -- spec.md §4.3.7's "put" operation, distinct from
// "update" which only touches what its options flag.
func (h *NoteHandler) PutNote(ctx context.Context, n *types.Note) (NoteUpsertResult, error) {
	if n.LocalID == "" {
		n.LocalID = idgen.NewLocalID()
	}
	return h.upsertNote(ctx, n, true, true, true)
}

// UpdateNote upserts a note's core fields, touching tags and resources only
// as opts directs -- spec.md §4.3.7's "update" operation, which preserves
// whatever the caller didn't flag.
func (h *NoteHandler) UpdateNote(ctx context.Context, n *types.Note, opts types.UpdateNoteOptions) (NoteUpsertResult, error) {
	if n.LocalID == "" {
		n.LocalID = idgen.NewLocalID()
	}
	return h.upsertNote(ctx, n, opts.UpdateTags, opts.UpdateResourceMetadata, opts.UpdateResourceBinaryData)
}

// upsertNote is PutNote/UpdateNote's shared body. A nil
// Attributes/Limits/Restrictions block always deletes the stored block
// (invariant 8) regardless of writeTags/writeResourceMetadata, since those
// two flags only gate the tag list and resource list.
func (h *NoteHandler) upsertNote(ctx context.Context, n *types.Note, writeTags, writeResourceMetadata, writeResourceBinary bool) (NoteUpsertResult, error) {
	if err := idgen.RequireNonEmpty("notebookLocalId", n.NotebookLocalID); err != nil {
		return NoteUpsertResult{}, types.InvalidArgumentf("%s", err.Error())
	}

	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return NoteUpsertResult{}, err
	}
	defer conn.Close()

	var result NoteUpsertResult
	err = withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		var existingNotebook sql.NullString
		switch err := scope.QueryRow(ctx, `SELECT notebook_local_id FROM notes WHERE local_id = ?`, n.LocalID).Scan(&existingNotebook); {
		case err == sql.ErrNoRows:
			result.Inserted = true
		case err != nil:
			return wrapDBError("putNote: existing lookup", err)
		default:
			result.OldNotebookLocalID = existingNotebook.String
		}

		oldTagIDs, err := queryNoteTagLocalIDs(ctx, scope, n.LocalID)
		if err != nil {
			return err
		}
		result.OldTagLocalIDs = oldTagIDs

		var title, content string
		if n.Title != nil {
			title = *n.Title
		}
		if n.Content != nil {
			content = *n.Content
		}
		titleStripped := search.StripDiacritics(title)
		contentStripped := search.StripDiacritics(search.StripENML(content))

		_, err = scope.Exec(ctx, `
			INSERT INTO notes (local_id, guid, notebook_local_id, notebook_guid, title, title_stripped,
				content, content_stripped, content_hash, content_length, created, updated, deleted, active,
				update_sequence_number, locally_modified, locally_favorited, local_only)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(local_id) DO UPDATE SET
				guid=excluded.guid, notebook_local_id=excluded.notebook_local_id,
				notebook_guid=excluded.notebook_guid, title=excluded.title, title_stripped=excluded.title_stripped,
				content=excluded.content, content_stripped=excluded.content_stripped,
				content_hash=excluded.content_hash, content_length=excluded.content_length,
				created=excluded.created, updated=excluded.updated, deleted=excluded.deleted,
				active=excluded.active, update_sequence_number=excluded.update_sequence_number,
				locally_modified=excluded.locally_modified, locally_favorited=excluded.locally_favorited,
				local_only=excluded.local_only
		`,
			n.LocalID, nullString(n.Guid), n.NotebookLocalID, nullString(n.NotebookGuid), nullString(n.Title),
			titleStripped, nullString(n.Content), contentStripped, n.ContentHash, nullInt32(n.ContentLength),
			nullTime(n.Created), nullTime(n.Updated), nullTime(n.Deleted), n.Active,
			nullInt32(n.UpdateSequenceNumber), n.LocallyModified, n.LocallyFavorited, n.LocalOnly,
		)
		if err != nil {
			return wrapDBError("putNote", err)
		}

		if err := putOrDeleteNoteAttributes(ctx, scope, n.LocalID, n.Attributes); err != nil {
			return err
		}
		if err := putOrDeleteNoteLimits(ctx, scope, n.LocalID, n.Limits); err != nil {
			return err
		}
		if err := putOrDeleteNoteRestrictions(ctx, scope, n.LocalID, n.Restrictions); err != nil {
			return err
		}
		if err := replaceSharedNotes(ctx, scope, n.LocalID, n.SharedNotes); err != nil {
			return err
		}

		if writeTags {
			if err := replaceNoteTags(ctx, scope, n.LocalID, n.TagLocalIDs, n.TagGuids); err != nil {
				return err
			}
			result.NewTagLocalIDs = append([]string{}, n.TagLocalIDs...)
		} else {
			result.NewTagLocalIDs = oldTagIDs
		}
		if writeResourceMetadata {
			if err := replaceNoteResources(ctx, scope, n.LocalID, n.Resources, writeResourceBinary); err != nil {
				return err
			}
		}
		result.NewNotebookLocalID = n.NotebookLocalID
		return nil
	})
	if err != nil {
		return NoteUpsertResult{}, err
	}
	return result, nil
}

func queryNoteTagLocalIDs(ctx context.Context, scope *TxScope, noteLocalID string) ([]string, error) {
	rows, err := scope.Query(ctx, `SELECT tag_local_id FROM note_tags WHERE note_local_id = ?`, noteLocalID)
	if err != nil {
		return nil, wrapDBError("putNote: existing tags", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("putNote: existing tags", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func putOrDeleteNoteAttributes(ctx context.Context, scope *TxScope, noteLocalID string, a *types.NoteAttributes) error {
	if a == nil {
		if _, err := scope.Exec(ctx, `DELETE FROM note_attributes WHERE note_local_id = ?`, noteLocalID); err != nil {
			return wrapDBError("putNote: attributes", err)
		}
		return replaceApplicationData(ctx, scope, "note_attributes_app_data_keys", "note_attributes_app_data_map", "note_local_id", noteLocalID, nil)
	}
	var authorStripped, sourceStripped, sourceAppStripped, placeStripped, classStripped string
	if a.Author != nil {
		authorStripped = search.StripDiacritics(*a.Author)
	}
	if a.Source != nil {
		sourceStripped = search.StripDiacritics(*a.Source)
	}
	if a.SourceApplication != nil {
		sourceAppStripped = search.StripDiacritics(*a.SourceApplication)
	}
	if a.PlaceName != nil {
		placeStripped = search.StripDiacritics(*a.PlaceName)
	}
	if a.ContentClass != nil {
		classStripped = search.StripDiacritics(*a.ContentClass)
	}
	classifications, err := encodeStringMap(a.Classifications)
	if err != nil {
		return err
	}

	_, err = scope.Exec(ctx, `
		INSERT INTO note_attributes (note_local_id, subject_date, latitude, longitude, altitude, author,
			author_stripped, source, source_stripped, source_url, source_application, source_application_stripped,
			share_date, reminder_order, reminder_done_time, reminder_time, place_name, place_name_stripped,
			content_class, content_class_stripped, last_edited_by, classifications, creator_id, last_editor_id,
			shared_with_business, conflict_source_note_guid, note_title_quality)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(note_local_id) DO UPDATE SET
			subject_date=excluded.subject_date, latitude=excluded.latitude, longitude=excluded.longitude,
			altitude=excluded.altitude, author=excluded.author, author_stripped=excluded.author_stripped,
			source=excluded.source, source_stripped=excluded.source_stripped, source_url=excluded.source_url,
			source_application=excluded.source_application,
			source_application_stripped=excluded.source_application_stripped, share_date=excluded.share_date,
			reminder_order=excluded.reminder_order, reminder_done_time=excluded.reminder_done_time,
			reminder_time=excluded.reminder_time, place_name=excluded.place_name,
			place_name_stripped=excluded.place_name_stripped, content_class=excluded.content_class,
			content_class_stripped=excluded.content_class_stripped, last_edited_by=excluded.last_edited_by,
			classifications=excluded.classifications, creator_id=excluded.creator_id,
			last_editor_id=excluded.last_editor_id, shared_with_business=excluded.shared_with_business,
			conflict_source_note_guid=excluded.conflict_source_note_guid,
			note_title_quality=excluded.note_title_quality
	`,
		noteLocalID, nullTime(a.SubjectDate), nullFloat64(a.Latitude), nullFloat64(a.Longitude), nullFloat64(a.Altitude),
		nullString(a.Author), authorStripped, nullString(a.Source), sourceStripped, nullString(a.SourceURL),
		nullString(a.SourceApplication), sourceAppStripped, nullTime(a.ShareDate), nullInt64(a.ReminderOrder),
		nullTime(a.ReminderDoneTime), nullTime(a.ReminderTime), nullString(a.PlaceName), placeStripped,
		nullString(a.ContentClass), classStripped, nullString(a.LastEditedBy), classifications,
		nullInt32(a.CreatorID), nullInt32(a.LastEditorID), a.SharedWithBusiness, nullString(a.ConflictSourceNoteGuid),
		nullInt32(a.NoteTitleQuality),
	)
	if err != nil {
		return wrapDBError("putNote: attributes", err)
	}
	return replaceApplicationData(ctx, scope, "note_attributes_app_data_keys", "note_attributes_app_data_map", "note_local_id", noteLocalID, a.ApplicationData)
}

func putOrDeleteNoteLimits(ctx context.Context, scope *TxScope, noteLocalID string, l *types.NoteLimits) error {
	if l == nil {
		_, err := scope.Exec(ctx, `DELETE FROM note_limits WHERE note_local_id = ?`, noteLocalID)
		return wrapDBError("putNote: limits", err)
	}
	_, err := scope.Exec(ctx, `
		INSERT INTO note_limits (note_local_id, note_resource_count_max, upload_limit, resource_size_max,
			note_size_max, uploaded)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(note_local_id) DO UPDATE SET
			note_resource_count_max=excluded.note_resource_count_max, upload_limit=excluded.upload_limit,
			resource_size_max=excluded.resource_size_max, note_size_max=excluded.note_size_max,
			uploaded=excluded.uploaded
	`, noteLocalID, nullInt32(l.NoteResourceCountMax), nullInt64(l.UploadLimit), nullInt64(l.ResourceSizeMax),
		nullInt64(l.NoteSizeMax), nullInt64(l.Uploaded))
	return wrapDBError("putNote: limits", err)
}

func putOrDeleteNoteRestrictions(ctx context.Context, scope *TxScope, noteLocalID string, r *types.NoteRestrictions) error {
	if r == nil {
		_, err := scope.Exec(ctx, `DELETE FROM note_restrictions WHERE note_local_id = ?`, noteLocalID)
		return wrapDBError("putNote: restrictions", err)
	}
	_, err := scope.Exec(ctx, `
		INSERT INTO note_restrictions (note_local_id, no_update_title, no_update_content, no_email, no_share,
			no_share_publicly)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(note_local_id) DO UPDATE SET
			no_update_title=excluded.no_update_title, no_update_content=excluded.no_update_content,
			no_email=excluded.no_email, no_share=excluded.no_share, no_share_publicly=excluded.no_share_publicly
	`, noteLocalID, r.NoUpdateTitle, r.NoUpdateContent, r.NoEmail, r.NoShare, r.NoSharePublicly)
	return wrapDBError("putNote: restrictions", err)
}

func replaceSharedNotes(ctx context.Context, scope *TxScope, noteLocalID string, shared []types.SharedNote) error {
	if _, err := scope.Exec(ctx, `DELETE FROM shared_notes WHERE note_local_id = ?`, noteLocalID); err != nil {
		return wrapDBError("putNote: shared notes", err)
	}
	for i, sn := range shared {
		_, err := scope.Exec(ctx, `
			INSERT INTO shared_notes (note_local_id, sharer_user_id, recipient_identity_id, privilege, created,
				updated, assignment_timestamp, sort_order)
			VALUES (?,?,?,?,?,?,?,?)
		`, noteLocalID, nullInt32(sn.SharerUserID), nullInt64(sn.RecipientIdentityID), nullPrivilege(sn.Privilege),
			nullTime(sn.Created), nullTime(sn.Updated), nullTime(sn.AssignmentTimestamp), i)
		if err != nil {
			return wrapDBError("putNote: shared notes", err)
		}
	}
	return nil
}

func replaceNoteTags(ctx context.Context, scope *TxScope, noteLocalID string, tagLocalIDs []string, tagGuids []string) error {
	if _, err := scope.Exec(ctx, `DELETE FROM note_tags WHERE note_local_id = ?`, noteLocalID); err != nil {
		return wrapDBError("putNote: tags", err)
	}
	for i, tagLocalID := range tagLocalIDs {
		var guid any
		if i < len(tagGuids) {
			guid = tagGuids[i]
		}
		if _, err := scope.Exec(ctx, `INSERT INTO note_tags (note_local_id, tag_local_id, tag_guid, sort_order) VALUES (?,?,?,?)`,
			noteLocalID, tagLocalID, guid, i); err != nil {
			return wrapDBError("putNote: tags", err)
		}
	}
	return nil
}

func replaceNoteResources(ctx context.Context, scope *TxScope, noteLocalID string, resources []types.Resource, withBinaryData bool) error {
	if _, err := scope.Exec(ctx, `DELETE FROM resources WHERE note_local_id = ?`, noteLocalID); err != nil {
		return wrapDBError("putNote: resources", err)
	}
	for i := range resources {
		r := resources[i]
		r.NoteLocalID = noteLocalID
		r.IndexInNote = i
		if r.LocalID == "" {
			r.LocalID = idgen.NewLocalID()
		}
		if err := putResourceWithinScope(ctx, scope, &r, withBinaryData); err != nil {
			return err
		}
	}
	return nil
}

// putResourceWithinScope is PutResource's insert body, factored out so
// replaceNoteResources can write resources inside the note's own
// transaction scope rather than opening a nested one.
func putResourceWithinScope(ctx context.Context, scope *TxScope, r *types.Resource, withBinaryData bool) error {
	var mimeStripped string
	if r.Mime != nil {
		mimeStripped = search.StripDiacritics(*r.Mime)
	}
	var recoStripped string
	if r.RecognitionData != nil {
		recoStripped = search.StripDiacritics(string(r.RecognitionData.Body))
	}

	if withBinaryData {
		data := newResourceDataCols(r.Data)
		alt := newResourceDataCols(r.AlternateData)
		reco := newResourceDataCols(r.RecognitionData)
		_, err := scope.Exec(ctx, `
			INSERT INTO resources (local_id, guid, note_local_id, note_guid, data_body, data_size, data_md5,
				alt_data_body, alt_data_size, alt_data_md5, reco_data_body, reco_data_size, reco_data_md5,
				reco_stripped, mime, mime_stripped, width, height, update_sequence_number, index_in_note,
				locally_modified)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		`, r.LocalID, nullString(r.Guid), r.NoteLocalID, nullString(r.NoteGuid), data.body, data.size, data.md5,
			alt.body, alt.size, alt.md5, reco.body, reco.size, reco.md5, recoStripped, nullString(r.Mime),
			mimeStripped, nullInt16(r.Width), nullInt16(r.Height), nullInt32(r.UpdateSequenceNumber),
			r.IndexInNote, r.LocallyModified)
		if err != nil {
			return wrapDBError("putNote: resources", err)
		}
	} else {
		_, err := scope.Exec(ctx, `
			INSERT INTO resources (local_id, guid, note_local_id, note_guid, mime, mime_stripped, width, height,
				update_sequence_number, index_in_note, locally_modified)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
		`, r.LocalID, nullString(r.Guid), r.NoteLocalID, nullString(r.NoteGuid), nullString(r.Mime), mimeStripped,
			nullInt16(r.Width), nullInt16(r.Height), nullInt32(r.UpdateSequenceNumber), r.IndexInNote, r.LocallyModified)
		if err != nil {
			return wrapDBError("putNote: resources", err)
		}
	}
	if r.Attributes == nil {
		return nil
	}
	_, err := scope.Exec(ctx, `
		INSERT INTO resource_attributes (resource_local_id, source_url, timestamp, latitude, longitude, altitude,
			camera_make, camera_model, client_will_index, reco_type, file_name, attachment)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`, r.LocalID, nullString(r.Attributes.SourceURL), nullInt64(r.Attributes.Timestamp),
		nullFloat64(r.Attributes.Latitude), nullFloat64(r.Attributes.Longitude), nullFloat64(r.Attributes.Altitude),
		nullString(r.Attributes.CameraMake), nullString(r.Attributes.CameraModel), r.Attributes.ClientWillIndex,
		nullString(r.Attributes.RecoType), nullString(r.Attributes.FileName), r.Attributes.Attachment)
	if err != nil {
		return wrapDBError("putNote: resources", err)
	}
	return replaceApplicationData(ctx, scope, "resource_attributes_app_data_keys", "resource_attributes_app_data_map",
		"resource_local_id", r.LocalID, r.Attributes.ApplicationData)
}

const noteSelectSQL = `SELECT local_id, guid, notebook_local_id, notebook_guid, title, content, content_hash,
	content_length, created, updated, deleted, active, update_sequence_number, locally_modified,
	locally_favorited, local_only FROM notes`

func scanNote(row rowScanner) (*types.Note, error) {
	var n types.Note
	var guid, notebookGuid, title, content sql.NullString
	var created, updated, deleted sql.NullTime
	if err := row.Scan(&n.LocalID, &guid, &n.NotebookLocalID, &notebookGuid, &title, &content, &n.ContentHash,
		&n.ContentLength, &created, &updated, &deleted, &n.Active, &n.UpdateSequenceNumber, &n.LocallyModified,
		&n.LocallyFavorited, &n.LocalOnly); err != nil {
		return nil, err
	}
	n.Guid = fromNullString(guid)
	n.NotebookGuid = fromNullString(notebookGuid)
	n.Title = fromNullString(title)
	n.Content = fromNullString(content)
	n.Created = fromNullTime(created)
	n.Updated = fromNullTime(updated)
	n.Deleted = fromNullTime(deleted)
	return &n, nil
}

// FindNoteByLocalID fetches a note by local id, optionally hydrating its
// tags and resources per opts.
func (h *NoteHandler) FindNoteByLocalID(ctx context.Context, localID string, opts types.FetchNoteOptions) (*types.Note, error) {
	row := h.pool.DB().QueryRowContext(ctx, noteSelectSQL+" WHERE local_id = ?", localID)
	n, err := scanNote(row)
	if err != nil {
		return nil, wrapDBError("findNote", err)
	}
	if err := h.hydrate(ctx, n, opts); err != nil {
		return nil, err
	}
	return n, nil
}

// FindNoteByGuid fetches a note by guid.
func (h *NoteHandler) FindNoteByGuid(ctx context.Context, guid string, opts types.FetchNoteOptions) (*types.Note, error) {
	row := h.pool.DB().QueryRowContext(ctx, noteSelectSQL+" WHERE guid = ?", guid)
	n, err := scanNote(row)
	if err != nil {
		return nil, wrapDBError("findNote", err)
	}
	if err := h.hydrate(ctx, n, opts); err != nil {
		return nil, err
	}
	return n, nil
}

func (h *NoteHandler) hydrate(ctx context.Context, n *types.Note, opts types.FetchNoteOptions) error {
	attrs, err := h.findNoteAttributes(ctx, n.LocalID)
	if err != nil {
		return err
	}
	n.Attributes = attrs

	tagRows, err := h.pool.DB().QueryContext(ctx, `SELECT tag_local_id, tag_guid FROM note_tags WHERE note_local_id = ? ORDER BY sort_order`, n.LocalID)
	if err != nil {
		return wrapDBError("findNote: tags", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var tagLocalID string
		var tagGuid sql.NullString
		if err := tagRows.Scan(&tagLocalID, &tagGuid); err != nil {
			return wrapDBError("findNote: tags", err)
		}
		n.TagLocalIDs = append(n.TagLocalIDs, tagLocalID)
		if tagGuid.Valid {
			n.TagGuids = append(n.TagGuids, tagGuid.String)
		}
	}
	if err := tagRows.Err(); err != nil {
		return wrapDBError("findNote: tags", err)
	}

	if opts.WithResourceMetadata {
		rh := &ResourceHandler{pool: h.pool}
		resources, err := rh.ListResourcesByNote(ctx, n.LocalID, types.FetchResourceOptions{WithBinaryData: opts.WithResourceBinaryData})
		if err != nil {
			return err
		}
		for _, r := range resources {
			n.Resources = append(n.Resources, *r)
		}
	}
	return nil
}

func (h *NoteHandler) findNoteAttributes(ctx context.Context, noteLocalID string) (*types.NoteAttributes, error) {
	row := h.pool.DB().QueryRowContext(ctx, `
		SELECT subject_date, latitude, longitude, altitude, author, source, source_url, source_application,
			share_date, reminder_order, reminder_done_time, reminder_time, place_name, content_class,
			last_edited_by, classifications, creator_id, last_editor_id, shared_with_business,
			conflict_source_note_guid, note_title_quality
		FROM note_attributes WHERE note_local_id = ?`, noteLocalID)

	var a types.NoteAttributes
	var author, source, sourceURL, sourceApp, placeName, contentClass, lastEditedBy, conflictGuid sql.NullString
	var classifications sql.NullString
	var subjectDate, shareDate, reminderDoneTime, reminderTime sql.NullTime
	var lat, lon, alt sql.NullFloat64
	var reminderOrder sql.NullInt64
	var creatorID, lastEditorID, noteTitleQuality sql.NullInt64

	err := row.Scan(&subjectDate, &lat, &lon, &alt, &author, &source, &sourceURL, &sourceApp, &shareDate,
		&reminderOrder, &reminderDoneTime, &reminderTime, &placeName, &contentClass, &lastEditedBy,
		&classifications, &creatorID, &lastEditorID, &a.SharedWithBusiness, &conflictGuid, &noteTitleQuality)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("findNote: attributes", err)
	}
	a.SubjectDate = fromNullTime(subjectDate)
	a.Latitude = fromNullFloat64(lat)
	a.Longitude = fromNullFloat64(lon)
	a.Altitude = fromNullFloat64(alt)
	a.Author = fromNullString(author)
	a.Source = fromNullString(source)
	a.SourceURL = fromNullString(sourceURL)
	a.SourceApplication = fromNullString(sourceApp)
	a.ShareDate = fromNullTime(shareDate)
	a.ReminderOrder = fromNullInt64(reminderOrder)
	a.ReminderDoneTime = fromNullTime(reminderDoneTime)
	a.ReminderTime = fromNullTime(reminderTime)
	a.PlaceName = fromNullString(placeName)
	a.ContentClass = fromNullString(contentClass)
	a.LastEditedBy = fromNullString(lastEditedBy)
	a.CreatorID = fromNullInt32(creatorID)
	a.LastEditorID = fromNullInt32(lastEditorID)
	a.ConflictSourceNoteGuid = fromNullString(conflictGuid)
	a.NoteTitleQuality = fromNullInt32(noteTitleQuality)
	a.Classifications, err = decodeStringMap(classifications)
	if err != nil {
		return nil, err
	}
	appData, err := loadApplicationData(ctx, h.pool, "note_attributes_app_data_keys", "note_attributes_app_data_map", "note_local_id", noteLocalID)
	if err != nil {
		return nil, err
	}
	a.ApplicationData = appData
	return &a, nil
}

// ListNoteLocalIDsByNotebook returns the local ids of every note in
// notebookLocalID, used by cascading expunge and sync bookkeeping.
func (h *NoteHandler) ListNoteLocalIDsByNotebook(ctx context.Context, notebookLocalID string) ([]string, error) {
	return h.queryNoteLocalIDs(ctx, `SELECT local_id FROM notes WHERE notebook_local_id = ?`, notebookLocalID)
}

// ListNoteLocalIDsByTag returns the local ids of every note carrying
// tagLocalID.
func (h *NoteHandler) ListNoteLocalIDsByTag(ctx context.Context, tagLocalID string) ([]string, error) {
	return h.queryNoteLocalIDs(ctx, `
		SELECT notes.local_id FROM notes
		JOIN note_tags ON note_tags.note_local_id = notes.local_id
		WHERE note_tags.tag_local_id = ?`, tagLocalID)
}

// ListNoteLocalIDsByNotebookAndTag returns the local ids of every note in
// one of notebookLocalIDs carrying one of tagLocalIDs.
func (h *NoteHandler) ListNoteLocalIDsByNotebookAndTag(ctx context.Context, notebookLocalIDs, tagLocalIDs []string) ([]string, error) {
	if len(notebookLocalIDs) == 0 || len(tagLocalIDs) == 0 {
		return nil, nil
	}
	notebookPlaceholders := make([]string, len(notebookLocalIDs))
	args := make([]any, 0, len(notebookLocalIDs)+len(tagLocalIDs))
	for i, id := range notebookLocalIDs {
		notebookPlaceholders[i] = "?"
		args = append(args, id)
	}
	tagPlaceholders := make([]string, len(tagLocalIDs))
	for i, id := range tagLocalIDs {
		tagPlaceholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT notes.local_id FROM notes
		JOIN note_tags ON note_tags.note_local_id = notes.local_id
		WHERE notes.notebook_local_id IN (%s) AND note_tags.tag_local_id IN (%s)`,
		joinComma(notebookPlaceholders), joinComma(tagPlaceholders))
	return h.queryNoteLocalIDs(ctx, query, args...)
}

// ListNoteLocalIDsByLocalIDs filters localIDs down to those that actually
// exist, preserving the caller's input order.
func (h *NoteHandler) ListNoteLocalIDsByLocalIDs(ctx context.Context, localIDs []string) ([]string, error) {
	if len(localIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(localIDs))
	args := make([]any, len(localIDs))
	for i, id := range localIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := "SELECT local_id FROM notes WHERE local_id IN (" + joinComma(placeholders) + ")"
	rows, err := h.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listNoteLocalIdsByLocalIds", err)
	}
	defer rows.Close()
	exists := make(map[string]bool, len(localIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("listNoteLocalIdsByLocalIds", err)
		}
		exists[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("listNoteLocalIdsByLocalIds", err)
	}
	out := make([]string, 0, len(localIDs))
	for _, id := range localIDs {
		if exists[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (h *NoteHandler) queryNoteLocalIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := h.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listNoteLocalIds", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("listNoteLocalIds", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountNotes returns the number of notes matching countOpts's
// included/excluded-by-deletion-state filter, across every notebook
// (noteCount() in spec.md's naming).
func (h *NoteHandler) CountNotes(ctx context.Context, countOpts types.NoteCountOptions) (int, error) {
	return h.countNotesWhere(ctx, []string{countStateClause(countOpts)}, nil)
}

// CountNotesByNotebook returns the number of notes in notebookLocalID
// matching countOpts (noteCountPerNotebookLocalId).
func (h *NoteHandler) CountNotesByNotebook(ctx context.Context, notebookLocalID string, countOpts types.NoteCountOptions) (int, error) {
	clauses := []string{countStateClause(countOpts), "notebook_local_id = ?"}
	return h.countNotesWhere(ctx, clauses, []any{notebookLocalID})
}

// CountNotesByTag returns the number of notes carrying tagLocalID and
// matching countOpts (noteCountPerTagLocalId).
func (h *NoteHandler) CountNotesByTag(ctx context.Context, tagLocalID string, countOpts types.NoteCountOptions) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM notes
		JOIN note_tags ON note_tags.note_local_id = notes.local_id
		WHERE %s AND note_tags.tag_local_id = ?`, countStateClause(countOpts))
	var n int
	if err := h.pool.DB().QueryRowContext(ctx, query, tagLocalID).Scan(&n); err != nil {
		return 0, wrapDBError("countNotesByTag", err)
	}
	return n, nil
}

// CountNotesByNotebookAndTag returns the number of notes in
// notebookLocalID carrying tagLocalID and matching countOpts
// (noteCountPerNotebookAndTagLocalIds).
func (h *NoteHandler) CountNotesByNotebookAndTag(ctx context.Context, notebookLocalID, tagLocalID string, countOpts types.NoteCountOptions) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM notes
		JOIN note_tags ON note_tags.note_local_id = notes.local_id
		WHERE %s AND notes.notebook_local_id = ? AND note_tags.tag_local_id = ?`, countStateClause(countOpts))
	var n int
	if err := h.pool.DB().QueryRowContext(ctx, query, notebookLocalID, tagLocalID).Scan(&n); err != nil {
		return 0, wrapDBError("countNotesByNotebookAndTag", err)
	}
	return n, nil
}

// CountNotesByTags returns, for each tag local id in tagLocalIDs, the
// number of notes carrying it and matching countOpts (noteCountsPerTags).
func (h *NoteHandler) CountNotesByTags(ctx context.Context, tagLocalIDs []string, countOpts types.NoteCountOptions) (map[string]int, error) {
	out := make(map[string]int, len(tagLocalIDs))
	for _, tagLocalID := range tagLocalIDs {
		n, err := h.CountNotesByTag(ctx, tagLocalID, countOpts)
		if err != nil {
			return nil, err
		}
		out[tagLocalID] = n
	}
	return out, nil
}

func (h *NoteHandler) countNotesWhere(ctx context.Context, clauses []string, args []any) (int, error) {
	query := "SELECT COUNT(*) FROM notes WHERE " + joinAnd(clauses)
	var n int
	if err := h.pool.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrapDBError("countNotes", err)
	}
	return n, nil
}

func countStateClause(opts types.NoteCountOptions) string {
	includeNonDeleted := opts&types.NoteCountIncludeNonDeleted != 0
	includeDeleted := opts&types.NoteCountIncludeDeleted != 0
	switch {
	case includeNonDeleted && includeDeleted:
		return "1=1"
	case includeDeleted:
		return "deleted IS NOT NULL"
	default:
		return "deleted IS NULL"
	}
}

// ExpungeNoteByLocalID deletes a note and (via ON DELETE CASCADE) its
// attributes/limits/restrictions/tags/resources.
func (h *NoteHandler) ExpungeNoteByLocalID(ctx context.Context, localID string) error {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		res, err := scope.Exec(ctx, `DELETE FROM notes WHERE local_id = ?`, localID)
		if err != nil {
			return wrapDBError("expungeNote", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return types.NotFoundf("expungeNote: %s", localID)
		}
		return nil
	})
}

// FindNotes runs a compiled search.Query against the notes table and
// returns matching local ids in creation order. The facade is responsible
// for calling search.Parse first; FindNotes never sees raw query text
// (spec.md §4.4).
func (h *NoteHandler) FindNotes(ctx context.Context, q *search.Query, limit, offset int) ([]string, error) {
	pred, err := search.Compile(q)
	if err != nil {
		return nil, types.InvalidArgumentf("findNotes: %s", err.Error())
	}

	query := "SELECT notes.local_id FROM notes"
	for _, join := range pred.Joins {
		query += " " + join
	}
	query += " WHERE " + pred.Where + " ORDER BY notes.created ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := h.pool.DB().QueryContext(ctx, query, pred.Args...)
	if err != nil {
		return nil, wrapDBError("findNotes", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("findNotes", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
