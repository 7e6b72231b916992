package sqlite

import (
	"context"

	"github.com/evernotelocal/qstore/internal/types"
)

// SyncInfoHandler implements spec.md §4.5: the highest update-sequence-number
// across whichever set of entity tables a sync scope names. Grounded on the
// teacher's multi-table aggregation style in queries_search.go, generalized
// from "all issues across repos" to "all entities across notebooks".
type SyncInfoHandler struct {
	pool *Pool
}

// NewSyncInfoHandler constructs a handler bound to pool.
func NewSyncInfoHandler(pool *Pool) *SyncInfoHandler {
	return &SyncInfoHandler{pool: pool}
}

// HighestUSN returns the maximum update_sequence_number across the tables
// named by scope. notebooks and tags carry linked_notebook_guid directly;
// notes and resources only carry it transitively through notebooks, so
// those two are scoped via a join rather than a direct WHERE.
func (h *SyncInfoHandler) HighestUSN(ctx context.Context, scope types.SyncScope, linkedNotebookGuid string) (int32, error) {
	var selects []string
	var args []any

	switch scope {
	case types.SyncScopeWithinUserOwnContent:
		selects = append(selects,
			"SELECT MAX(update_sequence_number) AS x FROM notebooks WHERE linked_notebook_guid IS NULL",
			"SELECT MAX(update_sequence_number) AS x FROM tags WHERE linked_notebook_guid IS NULL",
			"SELECT MAX(n.update_sequence_number) AS x FROM notes n JOIN notebooks nb ON nb.local_id = n.notebook_local_id WHERE nb.linked_notebook_guid IS NULL",
			"SELECT MAX(r.update_sequence_number) AS x FROM resources r JOIN notes n ON n.local_id = r.note_local_id JOIN notebooks nb ON nb.local_id = n.notebook_local_id WHERE nb.linked_notebook_guid IS NULL",
			"SELECT MAX(update_sequence_number) AS x FROM saved_searches",
		)

	case types.SyncScopeWithinUserOwnContentAndLinkedNotebooks:
		selects = append(selects,
			"SELECT MAX(update_sequence_number) AS x FROM notebooks",
			"SELECT MAX(update_sequence_number) AS x FROM tags",
			"SELECT MAX(update_sequence_number) AS x FROM notes",
			"SELECT MAX(update_sequence_number) AS x FROM resources",
			"SELECT MAX(update_sequence_number) AS x FROM saved_searches",
			"SELECT MAX(update_sequence_number) AS x FROM linked_notebooks",
		)

	case types.SyncScopeWithinLinkedNotebook:
		if linkedNotebookGuid == "" {
			return 0, types.InvalidArgumentf("linkedNotebookGuid must not be empty for SyncScopeWithinLinkedNotebook")
		}
		selects = append(selects, "SELECT update_sequence_number AS x FROM linked_notebooks WHERE guid = ?")
		args = append(args, linkedNotebookGuid)
		selects = append(selects, "SELECT MAX(update_sequence_number) AS x FROM notebooks WHERE linked_notebook_guid = ?")
		args = append(args, linkedNotebookGuid)
		selects = append(selects, "SELECT MAX(update_sequence_number) AS x FROM tags WHERE linked_notebook_guid = ?")
		args = append(args, linkedNotebookGuid)
		selects = append(selects, "SELECT MAX(n.update_sequence_number) AS x FROM notes n JOIN notebooks nb ON nb.local_id = n.notebook_local_id WHERE nb.linked_notebook_guid = ?")
		args = append(args, linkedNotebookGuid)
		selects = append(selects, "SELECT MAX(r.update_sequence_number) AS x FROM resources r JOIN notes n ON n.local_id = r.note_local_id JOIN notebooks nb ON nb.local_id = n.notebook_local_id WHERE nb.linked_notebook_guid = ?")
		args = append(args, linkedNotebookGuid)

	default:
		return 0, types.InvalidArgumentf("unknown sync scope %d", scope)
	}

	query := "SELECT MAX(x) FROM (" + joinUnionAll(selects) + ")"
	var max_ sqlNullInt32
	if err := h.pool.DB().QueryRowContext(ctx, query, args...).Scan(&max_); err != nil {
		return 0, wrapDBError("highestUSN", err)
	}
	if !max_.valid {
		return 0, nil
	}
	return max_.v, nil
}

func joinUnionAll(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " UNION ALL "
		}
		out += p
	}
	return out
}

// sqlNullInt32 is a local nullable int32 scan target for the MAX(x)
// aggregate, which returns NULL when a scope's tables are all empty.
type sqlNullInt32 struct {
	v     int32
	valid bool
}

func (n *sqlNullInt32) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	switch v := src.(type) {
	case int64:
		n.v = int32(v)
	case int32:
		n.v = v
	default:
		n.v = 0
	}
	n.valid = true
	return nil
}
