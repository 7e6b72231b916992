package sqlite

import (
	"context"
	"database/sql"

	"github.com/evernotelocal/qstore/internal/idgen"
	"github.com/evernotelocal/qstore/internal/search"
	"github.com/evernotelocal/qstore/internal/types"
)

// ResourceHandler implements spec.md §4.3.5. Resource.NoteLocalID is
// authoritative (the Open Question resolution recorded in SPEC_FULL.md
// §4.3.5 and DESIGN.md): callers must set it on every put, it is never
// derived from some other relation.
type ResourceHandler struct {
	pool *Pool
}

// NewResourceHandler constructs a handler bound to pool.
func NewResourceHandler(pool *Pool) *ResourceHandler {
	return &ResourceHandler{pool: pool}
}

// PutResource inserts or updates a resource. withBinaryData controls
// whether Data/AlternateData/RecognitionData bodies are written; when
// false, only metadata columns are touched (spec.md's
// updateNoteOptions.updateResourceBinaryData mirrors this at the note
// level). indexInNote, when non-nil, places the resource at that position
// within its note, shifting every sibling at or past that position one
// slot later (spec.md §4.3.12); nil leaves r.IndexInNote as the caller set
// it, untouched.
func (h *ResourceHandler) PutResource(ctx context.Context, r *types.Resource, withBinaryData bool, indexInNote *int) error {
	if r.LocalID == "" {
		r.LocalID = idgen.NewLocalID()
	}
	if err := idgen.RequireNonEmpty("noteLocalId", r.NoteLocalID); err != nil {
		return types.InvalidArgumentf("%s", err.Error())
	}

	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		if indexInNote != nil {
			if _, err := scope.Exec(ctx,
				`UPDATE resources SET index_in_note = index_in_note + 1
					WHERE note_local_id = ? AND index_in_note >= ? AND local_id != ?`,
				r.NoteLocalID, *indexInNote, r.LocalID); err != nil {
				return wrapDBError("putResource: shift siblings", err)
			}
			r.IndexInNote = *indexInNote
		}

		var reco ResourceDataCols
		var recoStripped string
		if r.RecognitionData != nil {
			reco = newResourceDataCols(r.RecognitionData)
			recoStripped = search.StripDiacritics(string(r.RecognitionData.Body))
		}
		var mimeStripped string
		if r.Mime != nil {
			mimeStripped = search.StripDiacritics(*r.Mime)
		}

		if withBinaryData {
			data := newResourceDataCols(r.Data)
			alt := newResourceDataCols(r.AlternateData)
			_, err = scope.Exec(ctx, `
				INSERT INTO resources (local_id, guid, note_local_id, note_guid, data_body, data_size, data_md5,
					alt_data_body, alt_data_size, alt_data_md5, reco_data_body, reco_data_size, reco_data_md5,
					reco_stripped, mime, mime_stripped, width, height, update_sequence_number, index_in_note,
					locally_modified)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT(local_id) DO UPDATE SET
					guid=excluded.guid, note_local_id=excluded.note_local_id, note_guid=excluded.note_guid,
					data_body=excluded.data_body, data_size=excluded.data_size, data_md5=excluded.data_md5,
					alt_data_body=excluded.alt_data_body, alt_data_size=excluded.alt_data_size,
					alt_data_md5=excluded.alt_data_md5, reco_data_body=excluded.reco_data_body,
					reco_data_size=excluded.reco_data_size, reco_data_md5=excluded.reco_data_md5,
					reco_stripped=excluded.reco_stripped, mime=excluded.mime, mime_stripped=excluded.mime_stripped,
					width=excluded.width, height=excluded.height,
					update_sequence_number=excluded.update_sequence_number, index_in_note=excluded.index_in_note,
					locally_modified=excluded.locally_modified
			`,
				r.LocalID, nullString(r.Guid), r.NoteLocalID, nullString(r.NoteGuid), data.body, data.size, data.md5,
				alt.body, alt.size, alt.md5, reco.body, reco.size, reco.md5, recoStripped,
				nullString(r.Mime), mimeStripped, nullInt16(r.Width), nullInt16(r.Height),
				nullInt32(r.UpdateSequenceNumber), r.IndexInNote, r.LocallyModified,
			)
		} else {
			_, err = scope.Exec(ctx, `
				INSERT INTO resources (local_id, guid, note_local_id, note_guid, mime, mime_stripped, width,
					height, update_sequence_number, index_in_note, locally_modified)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT(local_id) DO UPDATE SET
					guid=excluded.guid, note_local_id=excluded.note_local_id, note_guid=excluded.note_guid,
					mime=excluded.mime, mime_stripped=excluded.mime_stripped, width=excluded.width,
					height=excluded.height, update_sequence_number=excluded.update_sequence_number,
					index_in_note=excluded.index_in_note, locally_modified=excluded.locally_modified
			`,
				r.LocalID, nullString(r.Guid), r.NoteLocalID, nullString(r.NoteGuid), nullString(r.Mime),
				mimeStripped, nullInt16(r.Width), nullInt16(r.Height), nullInt32(r.UpdateSequenceNumber),
				r.IndexInNote, r.LocallyModified,
			)
		}
		if err != nil {
			return wrapDBError("putResource", err)
		}

		if r.Attributes == nil {
			if _, err := scope.Exec(ctx, `DELETE FROM resource_attributes WHERE resource_local_id = ?`, r.LocalID); err != nil {
				return wrapDBError("putResource: attributes", err)
			}
			return replaceApplicationData(ctx, scope, "resource_attributes_app_data_keys",
				"resource_attributes_app_data_map", "resource_local_id", r.LocalID, nil)
		}
		_, err := scope.Exec(ctx, `
			INSERT INTO resource_attributes (resource_local_id, source_url, timestamp, latitude, longitude,
				altitude, camera_make, camera_model, client_will_index, reco_type, file_name, attachment)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(resource_local_id) DO UPDATE SET
				source_url=excluded.source_url, timestamp=excluded.timestamp, latitude=excluded.latitude,
				longitude=excluded.longitude, altitude=excluded.altitude, camera_make=excluded.camera_make,
				camera_model=excluded.camera_model, client_will_index=excluded.client_will_index,
				reco_type=excluded.reco_type, file_name=excluded.file_name, attachment=excluded.attachment
		`,
			r.LocalID, nullString(r.Attributes.SourceURL), nullInt64(r.Attributes.Timestamp),
			nullFloat64(r.Attributes.Latitude), nullFloat64(r.Attributes.Longitude), nullFloat64(r.Attributes.Altitude),
			nullString(r.Attributes.CameraMake), nullString(r.Attributes.CameraModel), r.Attributes.ClientWillIndex,
			nullString(r.Attributes.RecoType), nullString(r.Attributes.FileName), r.Attributes.Attachment,
		)
		if err != nil {
			return wrapDBError("putResource: attributes", err)
		}
		return replaceApplicationData(ctx, scope, "resource_attributes_app_data_keys",
			"resource_attributes_app_data_map", "resource_local_id", r.LocalID, r.Attributes.ApplicationData)
	})
}

// ResourceDataCols is the (body, size, md5) triple shared by Data,
// AlternateData and RecognitionData.
type ResourceDataCols struct {
	body sql.NullString
	size sql.NullInt64
	md5  []byte
}

func newResourceDataCols(d *types.ResourceData) ResourceDataCols {
	if d == nil {
		return ResourceDataCols{}
	}
	return ResourceDataCols{
		body: sql.NullString{String: string(d.Body), Valid: true},
		size: sql.NullInt64{Int64: int64(d.Size), Valid: true},
		md5:  d.MD5,
	}
}

func nullInt16(p *int16) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

const resourceSelectSQL = `SELECT local_id, guid, note_local_id, note_guid, data_body, data_size, data_md5,
	alt_data_body, alt_data_size, alt_data_md5, reco_data_body, reco_data_size, reco_data_md5, mime, width,
	height, update_sequence_number, index_in_note, locally_modified FROM resources`

func scanResource(row rowScanner, withBinaryData bool) (*types.Resource, error) {
	var r types.Resource
	var guid, noteGuid, mime sql.NullString
	var dataBody, altBody, recoBody sql.NullString
	var dataSize, altSize, recoSize sql.NullInt64
	var dataMD5, altMD5, recoMD5 []byte
	var width, height sql.NullInt64

	if err := row.Scan(&r.LocalID, &guid, &r.NoteLocalID, &noteGuid, &dataBody, &dataSize, &dataMD5,
		&altBody, &altSize, &altMD5, &recoBody, &recoSize, &recoMD5, &mime, &width, &height,
		&r.UpdateSequenceNumber, &r.IndexInNote, &r.LocallyModified); err != nil {
		return nil, err
	}
	r.Guid = fromNullString(guid)
	r.NoteGuid = fromNullString(noteGuid)
	r.Mime = fromNullString(mime)
	if width.Valid {
		w := int16(width.Int64)
		r.Width = &w
	}
	if height.Valid {
		hgt := int16(height.Int64)
		r.Height = &hgt
	}
	if withBinaryData {
		r.Data = dataColsToResourceData(dataBody, dataSize, dataMD5)
		r.AlternateData = dataColsToResourceData(altBody, altSize, altMD5)
		r.RecognitionData = dataColsToResourceData(recoBody, recoSize, recoMD5)
	}
	return &r, nil
}

func dataColsToResourceData(body sql.NullString, size sql.NullInt64, md5 []byte) *types.ResourceData {
	if !body.Valid && !size.Valid && len(md5) == 0 {
		return nil
	}
	return &types.ResourceData{Body: []byte(body.String), Size: int32(size.Int64), MD5: md5}
}

// FindResourceByLocalID fetches a resource by local id.
func (h *ResourceHandler) FindResourceByLocalID(ctx context.Context, localID string, opts types.FetchResourceOptions) (*types.Resource, error) {
	row := h.pool.DB().QueryRowContext(ctx, resourceSelectSQL+" WHERE local_id = ?", localID)
	r, err := scanResource(row, opts.WithBinaryData)
	if err != nil {
		return nil, wrapDBError("findResource", err)
	}
	attrs, err := h.findResourceAttributes(ctx, localID)
	if err != nil {
		return nil, err
	}
	r.Attributes = attrs
	return r, nil
}

// FindResourceByGuid fetches a resource by guid.
func (h *ResourceHandler) FindResourceByGuid(ctx context.Context, guid string, opts types.FetchResourceOptions) (*types.Resource, error) {
	row := h.pool.DB().QueryRowContext(ctx, resourceSelectSQL+" WHERE guid = ?", guid)
	r, err := scanResource(row, opts.WithBinaryData)
	if err != nil {
		return nil, wrapDBError("findResource", err)
	}
	attrs, err := h.findResourceAttributes(ctx, r.LocalID)
	if err != nil {
		return nil, err
	}
	r.Attributes = attrs
	return r, nil
}

func (h *ResourceHandler) findResourceAttributes(ctx context.Context, resourceLocalID string) (*types.ResourceAttributes, error) {
	row := h.pool.DB().QueryRowContext(ctx, `
		SELECT source_url, timestamp, latitude, longitude, altitude, camera_make, camera_model,
			client_will_index, reco_type, file_name, attachment
		FROM resource_attributes WHERE resource_local_id = ?`, resourceLocalID)
	var a types.ResourceAttributes
	var sourceURL, cameraMake, cameraModel, recoType, fileName sql.NullString
	var timestamp sql.NullInt64
	var lat, lon, alt sql.NullFloat64
	err := row.Scan(&sourceURL, &timestamp, &lat, &lon, &alt, &cameraMake, &cameraModel, &a.ClientWillIndex,
		&recoType, &fileName, &a.Attachment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("findResource: attributes", err)
	}
	a.SourceURL = fromNullString(sourceURL)
	a.Timestamp = fromNullInt64(timestamp)
	a.Latitude = fromNullFloat64(lat)
	a.Longitude = fromNullFloat64(lon)
	a.Altitude = fromNullFloat64(alt)
	a.CameraMake = fromNullString(cameraMake)
	a.CameraModel = fromNullString(cameraModel)
	a.RecoType = fromNullString(recoType)
	a.FileName = fromNullString(fileName)

	appData, err := loadApplicationData(ctx, h.pool, "resource_attributes_app_data_keys",
		"resource_attributes_app_data_map", "resource_local_id", resourceLocalID)
	if err != nil {
		return nil, err
	}
	a.ApplicationData = appData
	return &a, nil
}

// ListResourcesByNote returns every resource attached to noteLocalID,
// ordered by IndexInNote.
func (h *ResourceHandler) ListResourcesByNote(ctx context.Context, noteLocalID string, opts types.FetchResourceOptions) ([]*types.Resource, error) {
	rows, err := h.pool.DB().QueryContext(ctx, resourceSelectSQL+" WHERE note_local_id = ? ORDER BY index_in_note", noteLocalID)
	if err != nil {
		return nil, wrapDBError("listResourcesByNote", err)
	}
	defer rows.Close()

	var out []*types.Resource
	for rows.Next() {
		r, err := scanResource(rows, opts.WithBinaryData)
		if err != nil {
			return nil, wrapDBError("listResourcesByNote", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("listResourcesByNote", err)
	}
	for _, r := range out {
		attrs, err := h.findResourceAttributes(ctx, r.LocalID)
		if err != nil {
			return nil, err
		}
		r.Attributes = attrs
	}
	return out, nil
}

// CountResourcesByNote returns the number of resources attached to a note.
func (h *ResourceHandler) CountResourcesByNote(ctx context.Context, noteLocalID string) (int, error) {
	var n int
	if err := h.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE note_local_id = ?`, noteLocalID).Scan(&n); err != nil {
		return 0, wrapDBError("countResourcesByNote", err)
	}
	return n, nil
}

// ExpungeResourceByLocalID deletes a resource by local id.
func (h *ResourceHandler) ExpungeResourceByLocalID(ctx context.Context, localID string) error {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		res, err := scope.Exec(ctx, `DELETE FROM resources WHERE local_id = ?`, localID)
		if err != nil {
			return wrapDBError("expungeResource", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return types.NotFoundf("expungeResource: %s", localID)
		}
		return nil
	})
}
