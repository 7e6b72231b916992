package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evernotelocal/qstore/internal/idgen"
	"github.com/evernotelocal/qstore/internal/search"
	"github.com/evernotelocal/qstore/internal/types"
)

// TagHandler implements every tag operation in spec.md §4.3.4: the tag
// parent relation forms a forest (invariant 4), so PutTag checks for cycles
// before committing, and ExpungeTag cascades to descendants.
type TagHandler struct {
	pool *Pool
}

// NewTagHandler constructs a handler bound to pool.
func NewTagHandler(pool *Pool) *TagHandler {
	return &TagHandler{pool: pool}
}

// PutTag inserts or updates a tag. Per the Open Question resolution in
// SPEC_FULL.md §4.3.4, a parentGuid that does not yet resolve to a known
// tag local id is accepted and stored with an empty parent_tag_local_id;
// backfillDanglingParents then resolves any tag whose parentGuid matches
// this tag's own guid.
func (h *TagHandler) PutTag(ctx context.Context, tag *types.Tag) error {
	if tag.LocalID == "" {
		tag.LocalID = idgen.NewLocalID()
	}
	if err := types.ValidateName("tag", tag.Name, types.MinNameLength, types.MaxNameLength); err != nil {
		return types.InvalidArgumentf("%s", err.Error())
	}

	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		if tag.ParentTagLocalID != nil {
			cyclic, err := wouldCycle(ctx, scope, tag.LocalID, *tag.ParentTagLocalID)
			if err != nil {
				return err
			}
			if cyclic {
				return fmt.Errorf("putTag: %s: %w: %w", tag.LocalID, types.ErrCycle, types.ErrInvalidArgument)
			}
		}

		stripped := search.StripDiacritics(tag.Name)
		_, err := scope.Exec(ctx, `
			INSERT INTO tags (local_id, guid, name, name_stripped, update_sequence_number,
				parent_tag_local_id, parent_guid, linked_notebook_guid, locally_modified,
				locally_favorited, local_only)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(local_id) DO UPDATE SET
				guid=excluded.guid, name=excluded.name, name_stripped=excluded.name_stripped,
				update_sequence_number=excluded.update_sequence_number,
				parent_tag_local_id=excluded.parent_tag_local_id, parent_guid=excluded.parent_guid,
				linked_notebook_guid=excluded.linked_notebook_guid, locally_modified=excluded.locally_modified,
				locally_favorited=excluded.locally_favorited, local_only=excluded.local_only
		`,
			tag.LocalID, nullString(tag.Guid), tag.Name, stripped, nullInt32(tag.UpdateSequenceNumber),
			nullString(tag.ParentTagLocalID), nullString(tag.ParentGuid), nullString(tag.LinkedNotebookGuid),
			tag.LocallyModified, tag.LocallyFavorited, tag.LocalOnly,
		)
		if err != nil {
			return wrapDBError("putTag", err)
		}

		if tag.Guid != nil {
			if err := backfillDanglingParents(ctx, scope, *tag.Guid, tag.LocalID); err != nil {
				return err
			}
		}
		return nil
	})
}

// wouldCycle reports whether setting childLocalID's parent to
// candidateParentLocalID would create a cycle: true if candidateParentLocalID
// is childLocalID itself or a descendant of it.
func wouldCycle(ctx context.Context, scope *TxScope, childLocalID, candidateParentLocalID string) (bool, error) {
	if childLocalID == candidateParentLocalID {
		return true, nil
	}
	current := candidateParentLocalID
	for depth := 0; depth < 10_000; depth++ {
		var parent sql.NullString
		err := scope.QueryRow(ctx, `SELECT parent_tag_local_id FROM tags WHERE local_id = ?`, current).Scan(&parent)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, wrapDBError("putTag: cycle check", err)
		}
		if !parent.Valid {
			return false, nil
		}
		if parent.String == childLocalID {
			return true, nil
		}
		current = parent.String
	}
	return false, fmt.Errorf("sqlite: putTag: tag hierarchy exceeds maximum depth")
}

// backfillDanglingParents resolves every tag whose parent_guid matches guid
// but whose parent_tag_local_id is still unset, now that localID is known
// to be the tag guid resolves to.
func backfillDanglingParents(ctx context.Context, scope *TxScope, guid, localID string) error {
	_, err := scope.Exec(ctx,
		`UPDATE tags SET parent_tag_local_id = ? WHERE parent_guid = ? AND parent_tag_local_id IS NULL`,
		localID, guid)
	if err != nil {
		return wrapDBError("putTag: backfill dangling parents", err)
	}
	return nil
}

const tagSelectSQL = `SELECT local_id, guid, name, update_sequence_number, parent_tag_local_id,
	parent_guid, linked_notebook_guid, locally_modified, locally_favorited, local_only FROM tags`

func scanTag(row rowScanner) (*types.Tag, error) {
	var tag types.Tag
	var guid, parentGuid, linkedGuid sql.NullString
	if err := row.Scan(&tag.LocalID, &guid, &tag.Name, &tag.UpdateSequenceNumber, &tag.ParentTagLocalID,
		&parentGuid, &linkedGuid, &tag.LocallyModified, &tag.LocallyFavorited, &tag.LocalOnly); err != nil {
		return nil, err
	}
	tag.Guid = fromNullString(guid)
	tag.ParentGuid = fromNullString(parentGuid)
	tag.LinkedNotebookGuid = fromNullString(linkedGuid)
	return &tag, nil
}

// FindTagByLocalID fetches a tag by its local id.
func (h *TagHandler) FindTagByLocalID(ctx context.Context, localID string) (*types.Tag, error) {
	row := h.pool.DB().QueryRowContext(ctx, tagSelectSQL+" WHERE local_id = ?", localID)
	tag, err := scanTag(row)
	if err != nil {
		return nil, wrapDBError("findTag", err)
	}
	return tag, nil
}

// FindTagByGuid fetches a tag by its server guid.
func (h *TagHandler) FindTagByGuid(ctx context.Context, guid string) (*types.Tag, error) {
	row := h.pool.DB().QueryRowContext(ctx, tagSelectSQL+" WHERE guid = ?", guid)
	tag, err := scanTag(row)
	if err != nil {
		return nil, wrapDBError("findTag", err)
	}
	return tag, nil
}

// FindTagByName fetches a tag by (name, linkedNotebookGuid); pass an empty
// linkedNotebookGuid for the user-own scope.
func (h *TagHandler) FindTagByName(ctx context.Context, name, linkedNotebookGuid string) (*types.Tag, error) {
	stripped := search.StripDiacritics(name)
	var row *sql.Row
	if linkedNotebookGuid == "" {
		row = h.pool.DB().QueryRowContext(ctx, tagSelectSQL+" WHERE name_stripped = ? AND linked_notebook_guid IS NULL", stripped)
	} else {
		row = h.pool.DB().QueryRowContext(ctx, tagSelectSQL+" WHERE name_stripped = ? AND linked_notebook_guid = ?", stripped, linkedNotebookGuid)
	}
	tag, err := scanTag(row)
	if err != nil {
		return nil, wrapDBError("findTag", err)
	}
	return tag, nil
}

// buildTagListFilter and tagOrderColumn factor out ListTags'/ListTagGuids'
// shared WHERE/ORDER BY construction.
func buildTagListFilter(opts types.ListOptions[types.TagOrder]) (string, []any) {
	var clauses []string
	var args []any
	switch opts.Affiliation {
	case types.AffiliationUser:
		clauses = append(clauses, "linked_notebook_guid IS NULL")
	case types.AffiliationAnyLinkedNotebook:
		clauses = append(clauses, "linked_notebook_guid IS NOT NULL")
	case types.AffiliationParticularLinkedNotebooks:
		if len(opts.LinkedNotebookGuids) > 0 {
			placeholders := make([]string, len(opts.LinkedNotebookGuids))
			for i, g := range opts.LinkedNotebookGuids {
				placeholders[i] = "?"
				args = append(args, g)
			}
			clauses = append(clauses, "linked_notebook_guid IN ("+joinComma(placeholders)+")")
		}
	}
	if opts.LocallyModifiedFilter != types.TriStateEither {
		clauses = append(clauses, boolFilterClause("locally_modified", opts.LocallyModifiedFilter))
	}
	if opts.LocallyFavoritedFilter != types.TriStateEither {
		clauses = append(clauses, boolFilterClause("locally_favorited", opts.LocallyFavoritedFilter))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return joinAnd(clauses), args
}

func tagOrderColumn(order types.TagOrder, dir types.OrderDirection) string {
	col := "local_id"
	switch order {
	case types.TagOrderByUpdateSequenceNumber:
		col = "update_sequence_number"
	case types.TagOrderByName:
		col = "name_stripped"
	}
	if dir == types.OrderDescending {
		return col + " DESC"
	}
	return col + " ASC"
}

// ListTags returns tags matching opts.
func (h *TagHandler) ListTags(ctx context.Context, opts types.ListOptions[types.TagOrder]) ([]*types.Tag, error) {
	where, args := buildTagListFilter(opts)
	query := tagSelectSQL
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + tagOrderColumn(opts.Order, opts.Direction)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := h.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listTags", err)
	}
	defer rows.Close()

	var out []*types.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, wrapDBError("listTags", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// ListTagGuids returns the guids of tags matching opts, in the same order
// ListTags would return them. A tag with no guid (never synced) is skipped.
func (h *TagHandler) ListTagGuids(ctx context.Context, opts types.ListOptions[types.TagOrder]) ([]string, error) {
	where, args := buildTagListFilter(opts)
	query := "SELECT guid FROM tags"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + tagOrderColumn(opts.Order, opts.Direction)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := h.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listTagGuids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var guid sql.NullString
		if err := rows.Scan(&guid); err != nil {
			return nil, wrapDBError("listTagGuids", err)
		}
		if guid.Valid {
			out = append(out, guid.String)
		}
	}
	return out, rows.Err()
}

// CountTags returns the number of tags matching the given affiliation.
func (h *TagHandler) CountTags(ctx context.Context, affiliation types.Affiliation, linkedNotebookGuids []string) (int, error) {
	opts := types.ListOptions[types.TagOrder]{Affiliation: affiliation, LinkedNotebookGuids: linkedNotebookGuids}
	tags, err := h.ListTags(ctx, opts)
	if err != nil {
		return 0, err
	}
	return len(tags), nil
}

// ExpungeTagByLocalID recursively expunges localID and every descendant tag
// (spec.md §3: tag expunge cascades to descendants), then strips the tag
// from every note that referenced it.
// ExpungeTagByLocalID deletes the tag and every descendant tag (the forest
// invariant means a parent's removal must remove its whole subtree), and
// returns the descendant local ids removed alongside it.
func (h *TagHandler) ExpungeTagByLocalID(ctx context.Context, localID string) ([]string, error) {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var descendants []string
	err = withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		var err error
		descendants, err = collectDescendants(ctx, scope, localID)
		if err != nil {
			return err
		}
		victims := append(append([]string{}, descendants...), localID)

		for _, id := range victims {
			if _, err := scope.Exec(ctx, `DELETE FROM note_tags WHERE tag_local_id = ?`, id); err != nil {
				return wrapDBError("expungeTag: note_tags", err)
			}
			res, err := scope.Exec(ctx, `DELETE FROM tags WHERE local_id = ?`, id)
			if err != nil {
				return wrapDBError("expungeTag", err)
			}
			if id == localID {
				if n, _ := res.RowsAffected(); n == 0 {
					return types.NotFoundf("expungeTag: %s", localID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return descendants, nil
}

func collectDescendants(ctx context.Context, scope *TxScope, rootLocalID string) ([]string, error) {
	var descendants []string
	frontier := []string{rootLocalID}
	for len(frontier) > 0 {
		var next []string
		for _, parent := range frontier {
			rows, err := scope.Query(ctx, `SELECT local_id FROM tags WHERE parent_tag_local_id = ?`, parent)
			if err != nil {
				return nil, wrapDBError("expungeTag: descendants", err)
			}
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return nil, wrapDBError("expungeTag: descendants", err)
				}
				next = append(next, id)
				descendants = append(descendants, id)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, wrapDBError("expungeTag: descendants", err)
			}
			rows.Close()
		}
		frontier = next
	}
	return descendants, nil
}
