package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evernotelocal/qstore/internal/idgen"
	"github.com/evernotelocal/qstore/internal/search"
	"github.com/evernotelocal/qstore/internal/types"
)

// SavedSearchHandler implements spec.md §4.3.6. Unlike notebooks and tags,
// saved search name uniqueness is global, not scoped by linked notebook
// (types.SavedSearch doc comment), so the name_stripped column carries a
// plain UNIQUE rather than a composite one.
type SavedSearchHandler struct {
	pool *Pool
}

// NewSavedSearchHandler constructs a handler bound to pool.
func NewSavedSearchHandler(pool *Pool) *SavedSearchHandler {
	return &SavedSearchHandler{pool: pool}
}

// PutSavedSearch inserts or updates a saved search by local id. The query
// text itself is not validated here -- spec.md §4.4 ties syntax validation
// to search.Parse, invoked by the facade before a search is ever executed,
// not at storage time, so a malformed query can still be saved and
// corrected later.
func (h *SavedSearchHandler) PutSavedSearch(ctx context.Context, s *types.SavedSearch) error {
	if s.LocalID == "" {
		s.LocalID = idgen.NewLocalID()
	}
	if err := types.ValidateName("saved search", s.Name, types.MinNameLength, types.MaxNameLength); err != nil {
		return types.InvalidArgumentf("%s", err.Error())
	}

	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		stripped := search.StripDiacritics(s.Name)
		var scope_ types.SavedSearchScope
		hasScope := s.Scope != nil
		if hasScope {
			scope_ = *s.Scope
		}
		_, err := scope.Exec(ctx, `
			INSERT INTO saved_searches (local_id, guid, name, name_stripped, query, format,
				update_sequence_number, scope_include_account, scope_include_personal_linked,
				scope_include_business_linked, has_scope, locally_modified, locally_favorited, local_only)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(local_id) DO UPDATE SET
				guid=excluded.guid, name=excluded.name, name_stripped=excluded.name_stripped,
				query=excluded.query, format=excluded.format, update_sequence_number=excluded.update_sequence_number,
				scope_include_account=excluded.scope_include_account,
				scope_include_personal_linked=excluded.scope_include_personal_linked,
				scope_include_business_linked=excluded.scope_include_business_linked, has_scope=excluded.has_scope,
				locally_modified=excluded.locally_modified, locally_favorited=excluded.locally_favorited,
				local_only=excluded.local_only
		`,
			s.LocalID, nullString(s.Guid), s.Name, stripped, s.Query, nullInt32(s.Format),
			nullInt32(s.UpdateSequenceNumber), scope_.IncludeAccount, scope_.IncludePersonalLinkedNotebooks,
			scope_.IncludeBusinessLinkedNotebooks, hasScope, s.LocallyModified, s.LocallyFavorited, s.LocalOnly,
		)
		return wrapDBError("putSavedSearch", err)
	})
}

const savedSearchSelectSQL = `SELECT local_id, guid, name, query, format, update_sequence_number,
	scope_include_account, scope_include_personal_linked, scope_include_business_linked, has_scope,
	locally_modified, locally_favorited, local_only FROM saved_searches`

func scanSavedSearch(row rowScanner) (*types.SavedSearch, error) {
	var s types.SavedSearch
	var guid sql.NullString
	var format, usn sql.NullInt64
	var includeAccount, includePersonal, includeBusiness, hasScope bool
	if err := row.Scan(&s.LocalID, &guid, &s.Name, &s.Query, &format, &usn, &includeAccount, &includePersonal,
		&includeBusiness, &hasScope, &s.LocallyModified, &s.LocallyFavorited, &s.LocalOnly); err != nil {
		return nil, err
	}
	s.Guid = fromNullString(guid)
	s.Format = fromNullInt32(format)
	s.UpdateSequenceNumber = fromNullInt32(usn)
	if hasScope {
		s.Scope = &types.SavedSearchScope{
			IncludeAccount: includeAccount, IncludePersonalLinkedNotebooks: includePersonal,
			IncludeBusinessLinkedNotebooks: includeBusiness,
		}
	}
	return &s, nil
}

// FindSavedSearchByLocalID fetches a saved search by local id.
func (h *SavedSearchHandler) FindSavedSearchByLocalID(ctx context.Context, localID string) (*types.SavedSearch, error) {
	row := h.pool.DB().QueryRowContext(ctx, savedSearchSelectSQL+" WHERE local_id = ?", localID)
	s, err := scanSavedSearch(row)
	if err != nil {
		return nil, wrapDBError("findSavedSearch", err)
	}
	return s, nil
}

// FindSavedSearchByGuid fetches a saved search by guid.
func (h *SavedSearchHandler) FindSavedSearchByGuid(ctx context.Context, guid string) (*types.SavedSearch, error) {
	row := h.pool.DB().QueryRowContext(ctx, savedSearchSelectSQL+" WHERE guid = ?", guid)
	s, err := scanSavedSearch(row)
	if err != nil {
		return nil, wrapDBError("findSavedSearch", err)
	}
	return s, nil
}

// FindSavedSearchByName fetches a saved search by its globally-unique name.
func (h *SavedSearchHandler) FindSavedSearchByName(ctx context.Context, name string) (*types.SavedSearch, error) {
	stripped := search.StripDiacritics(name)
	row := h.pool.DB().QueryRowContext(ctx, savedSearchSelectSQL+" WHERE name_stripped = ?", stripped)
	s, err := scanSavedSearch(row)
	if err != nil {
		return nil, wrapDBError("findSavedSearch", err)
	}
	return s, nil
}

// buildSavedSearchListFilter and savedSearchOrderColumn factor out
// ListSavedSearches'/ListSavedSearchGuids' shared WHERE/ORDER BY construction.
func buildSavedSearchListFilter(opts types.SavedSearchListOptions) string {
	var clauses []string
	if opts.LocallyModifiedFilter != types.TriStateEither {
		clauses = append(clauses, boolFilterClause("locally_modified", opts.LocallyModifiedFilter))
	}
	if opts.LocallyFavoritedFilter != types.TriStateEither {
		clauses = append(clauses, boolFilterClause("locally_favorited", opts.LocallyFavoritedFilter))
	}
	return joinAnd(clauses)
}

func savedSearchOrderColumn(order types.SavedSearchOrder, dir types.OrderDirection) string {
	col := "local_id"
	switch order {
	case types.SavedSearchOrderByUpdateSequenceNumber:
		col = "update_sequence_number"
	case types.SavedSearchOrderByName:
		col = "name_stripped"
	}
	if dir == types.OrderDescending {
		return col + " DESC"
	}
	return col + " ASC"
}

// ListSavedSearches returns saved searches matching opts.
func (h *SavedSearchHandler) ListSavedSearches(ctx context.Context, opts types.SavedSearchListOptions) ([]*types.SavedSearch, error) {
	where := buildSavedSearchListFilter(opts)
	query := savedSearchSelectSQL
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + savedSearchOrderColumn(opts.Order, opts.Direction)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := h.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, wrapDBError("listSavedSearches", err)
	}
	defer rows.Close()

	var out []*types.SavedSearch
	for rows.Next() {
		s, err := scanSavedSearch(rows)
		if err != nil {
			return nil, wrapDBError("listSavedSearches", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSavedSearchGuids returns the guids of saved searches matching opts, in
// the same order ListSavedSearches would return them. A saved search with no
// guid (never synced) is skipped.
func (h *SavedSearchHandler) ListSavedSearchGuids(ctx context.Context, opts types.SavedSearchListOptions) ([]string, error) {
	where := buildSavedSearchListFilter(opts)
	query := "SELECT guid FROM saved_searches"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + savedSearchOrderColumn(opts.Order, opts.Direction)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := h.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, wrapDBError("listSavedSearchGuids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var guid sql.NullString
		if err := rows.Scan(&guid); err != nil {
			return nil, wrapDBError("listSavedSearchGuids", err)
		}
		if guid.Valid {
			out = append(out, guid.String)
		}
	}
	return out, rows.Err()
}

// CountSavedSearches returns the total number of saved searches.
func (h *SavedSearchHandler) CountSavedSearches(ctx context.Context) (int, error) {
	var n int
	if err := h.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_searches`).Scan(&n); err != nil {
		return 0, wrapDBError("countSavedSearches", err)
	}
	return n, nil
}

// ExpungeSavedSearchByLocalID deletes a saved search by local id.
func (h *SavedSearchHandler) ExpungeSavedSearchByLocalID(ctx context.Context, localID string) error {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		res, err := scope.Exec(ctx, `DELETE FROM saved_searches WHERE local_id = ?`, localID)
		if err != nil {
			return wrapDBError("expungeSavedSearch", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return types.NotFoundf("expungeSavedSearch: %s", localID)
		}
		return nil
	})
}
