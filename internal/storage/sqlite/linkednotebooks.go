package sqlite

import (
	"context"
	"database/sql"

	"github.com/evernotelocal/qstore/internal/types"
)

// LinkedNotebookHandler implements spec.md §4.3.11: linked notebooks are
// keyed purely by guid, with no separate local-id concept at the public
// API surface.
type LinkedNotebookHandler struct {
	pool *Pool
}

// NewLinkedNotebookHandler constructs a handler bound to pool.
func NewLinkedNotebookHandler(pool *Pool) *LinkedNotebookHandler {
	return &LinkedNotebookHandler{pool: pool}
}

// PutLinkedNotebook inserts or updates a linked notebook by guid.
func (h *LinkedNotebookHandler) PutLinkedNotebook(ctx context.Context, ln *types.LinkedNotebook) error {
	if ln.Guid == "" {
		return types.InvalidArgumentf("putLinkedNotebook: guid must not be empty")
	}
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		_, err := scope.Exec(ctx, `
			INSERT INTO linked_notebooks (guid, update_sequence_number, share_name, username, shard_id,
				shared_notebook_global_id, uri, note_store_url, web_api_url_prefix, stack, business_id,
				locally_modified)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(guid) DO UPDATE SET
				update_sequence_number=excluded.update_sequence_number, share_name=excluded.share_name,
				username=excluded.username, shard_id=excluded.shard_id,
				shared_notebook_global_id=excluded.shared_notebook_global_id, uri=excluded.uri,
				note_store_url=excluded.note_store_url, web_api_url_prefix=excluded.web_api_url_prefix,
				stack=excluded.stack, business_id=excluded.business_id, locally_modified=excluded.locally_modified
		`,
			ln.Guid, nullInt32(ln.UpdateSequenceNumber), nullString(ln.ShareName), nullString(ln.Username),
			nullString(ln.ShardID), nullString(ln.SharedNotebookGlobalID), nullString(ln.Uri),
			nullString(ln.NoteStoreUrl), nullString(ln.WebApiUrlPrefix), nullString(ln.Stack),
			nullInt32(ln.BusinessID), ln.LocallyModified,
		)
		if err != nil {
			return wrapDBError("putLinkedNotebook", err)
		}
		return nil
	})
}

const linkedNotebookSelectSQL = `SELECT guid, update_sequence_number, share_name, username, shard_id,
	shared_notebook_global_id, uri, note_store_url, web_api_url_prefix, stack, business_id, locally_modified
	FROM linked_notebooks`

func scanLinkedNotebook(row rowScanner) (*types.LinkedNotebook, error) {
	var ln types.LinkedNotebook
	var shareName, username, shardID, sngID, uri, noteStoreURL, webAPIPrefix, stack sql.NullString
	var businessID sql.NullInt64
	if err := row.Scan(&ln.Guid, &ln.UpdateSequenceNumber, &shareName, &username, &shardID, &sngID, &uri,
		&noteStoreURL, &webAPIPrefix, &stack, &businessID, &ln.LocallyModified); err != nil {
		return nil, err
	}
	ln.ShareName = fromNullString(shareName)
	ln.Username = fromNullString(username)
	ln.ShardID = fromNullString(shardID)
	ln.SharedNotebookGlobalID = fromNullString(sngID)
	ln.Uri = fromNullString(uri)
	ln.NoteStoreUrl = fromNullString(noteStoreURL)
	ln.WebApiUrlPrefix = fromNullString(webAPIPrefix)
	ln.Stack = fromNullString(stack)
	ln.BusinessID = fromNullInt32(businessID)
	return &ln, nil
}

// FindLinkedNotebookByGuid fetches a linked notebook by guid.
func (h *LinkedNotebookHandler) FindLinkedNotebookByGuid(ctx context.Context, guid string) (*types.LinkedNotebook, error) {
	row := h.pool.DB().QueryRowContext(ctx, linkedNotebookSelectSQL+" WHERE guid = ?", guid)
	ln, err := scanLinkedNotebook(row)
	if err != nil {
		return nil, wrapDBError("findLinkedNotebook", err)
	}
	return ln, nil
}

// ListLinkedNotebooks returns every linked notebook, ordered by guid.
func (h *LinkedNotebookHandler) ListLinkedNotebooks(ctx context.Context, limit, offset int) ([]*types.LinkedNotebook, error) {
	query := linkedNotebookSelectSQL + " ORDER BY guid"
	var args []any
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := h.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listLinkedNotebooks", err)
	}
	defer rows.Close()

	var out []*types.LinkedNotebook
	for rows.Next() {
		ln, err := scanLinkedNotebook(rows)
		if err != nil {
			return nil, wrapDBError("listLinkedNotebooks", err)
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

// CountLinkedNotebooks returns the total number of linked notebooks.
func (h *LinkedNotebookHandler) CountLinkedNotebooks(ctx context.Context) (int, error) {
	var n int
	if err := h.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM linked_notebooks`).Scan(&n); err != nil {
		return 0, wrapDBError("countLinkedNotebooks", err)
	}
	return n, nil
}

// ExpungeLinkedNotebookByGuid cascades to every notebook (and transitively
// every note/resource/tag) owned by this linked notebook via ON DELETE
// CASCADE foreign keys declared in schema.go.
func (h *LinkedNotebookHandler) ExpungeLinkedNotebookByGuid(ctx context.Context, guid string) error {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		res, err := scope.Exec(ctx, `DELETE FROM linked_notebooks WHERE guid = ?`, guid)
		if err != nil {
			return wrapDBError("expungeLinkedNotebook", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return types.NotFoundf("expungeLinkedNotebook: %s", guid)
		}
		return nil
	})
}
