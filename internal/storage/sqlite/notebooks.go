package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evernotelocal/qstore/internal/idgen"
	"github.com/evernotelocal/qstore/internal/search"
	"github.com/evernotelocal/qstore/internal/types"
)

// NotebookHandler implements every notebook operation named in spec.md
// §4.3.2, grounded on the teacher's internal/storage/sqlite/dirty.go
// withTx-per-operation layout generalized from a single table to a
// table-plus-sub-block write.
type NotebookHandler struct {
	pool *Pool
}

// NewNotebookHandler constructs a handler bound to pool.
func NewNotebookHandler(pool *Pool) *NotebookHandler {
	return &NotebookHandler{pool: pool}
}

// PutNotebook inserts or updates a notebook by local id, enforcing
// (name, linkedNotebookGuid-or-empty) uniqueness and the single-default
// invariant (spec.md §3 invariants 2, 9).
func (h *NotebookHandler) PutNotebook(ctx context.Context, nb *types.Notebook) error {
	if nb.LocalID == "" {
		nb.LocalID = idgen.NewLocalID()
	}
	if err := types.ValidateName("notebook", nb.Name, types.MinNameLength, types.MaxNameLength); err != nil {
		return types.InvalidArgumentf("%s", err.Error())
	}

	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		if nb.Default {
			if _, err := scope.Exec(ctx, `UPDATE notebooks SET is_default = 0 WHERE local_id != ?`, nb.LocalID); err != nil {
				return wrapDBError("putNotebook: clear default", err)
			}
		}

		stripped := search.StripDiacritics(nb.Name)
		var pub Publishing
		if nb.Publishing != nil {
			pub = Publishing{
				URI: nb.Publishing.URI, Order: nb.Publishing.Order,
				Ascending: nb.Publishing.Ascending, PublicDescription: nb.Publishing.PublicDescription,
			}
		}
		var biz BusinessNotebook
		if nb.BusinessNotebook != nil {
			biz = BusinessNotebook{Notebook: nb.BusinessNotebook.Notebook, Recommended: nb.BusinessNotebook.Recommended}
		}
		var contactID sql.NullInt64
		if nb.Contact != nil {
			contactID = sql.NullInt64{Int64: int64(nb.Contact.ID), Valid: true}
		}
		var recipient NotebookRecipientSettings
		if nb.RecipientSettings != nil {
			recipient = NotebookRecipientSettings{
				ReminderNotifyEmail: nb.RecipientSettings.ReminderNotifyEmail,
				ReminderNotifyInApp: nb.RecipientSettings.ReminderNotifyInApp,
				InMyList:            nb.RecipientSettings.InMyList,
				Stack:               nb.RecipientSettings.Stack,
			}
		}
		restrictions, err := encodeNotebookRestrictions(nb.Restrictions)
		if err != nil {
			return err
		}

		_, err = scope.Exec(ctx, `
			INSERT INTO notebooks (
				local_id, guid, name, name_stripped, update_sequence_number, created, updated,
				is_default, published, publishing_uri, publishing_order, publishing_ascending,
				publishing_public_description, stack, business_notebook_name, business_notebook_recommended,
				contact_user_id, restrictions, recipient_reminder_notify_email, recipient_reminder_notify_in_app,
				recipient_in_my_list, recipient_stack, linked_notebook_guid,
				locally_modified, locally_favorited, local_only
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(local_id) DO UPDATE SET
				guid=excluded.guid, name=excluded.name, name_stripped=excluded.name_stripped,
				update_sequence_number=excluded.update_sequence_number, created=excluded.created,
				updated=excluded.updated, is_default=excluded.is_default, published=excluded.published,
				publishing_uri=excluded.publishing_uri, publishing_order=excluded.publishing_order,
				publishing_ascending=excluded.publishing_ascending,
				publishing_public_description=excluded.publishing_public_description, stack=excluded.stack,
				business_notebook_name=excluded.business_notebook_name,
				business_notebook_recommended=excluded.business_notebook_recommended,
				contact_user_id=excluded.contact_user_id, restrictions=excluded.restrictions,
				recipient_reminder_notify_email=excluded.recipient_reminder_notify_email,
				recipient_reminder_notify_in_app=excluded.recipient_reminder_notify_in_app,
				recipient_in_my_list=excluded.recipient_in_my_list, recipient_stack=excluded.recipient_stack,
				linked_notebook_guid=excluded.linked_notebook_guid, locally_modified=excluded.locally_modified,
				locally_favorited=excluded.locally_favorited, local_only=excluded.local_only
		`,
			nb.LocalID, nullString(nb.Guid), nb.Name, stripped, nullInt32(nb.UpdateSequenceNumber), nullTime(nb.Created), nullTime(nb.Updated),
			nb.Default, nb.Published, nullString(pub.URI), nullInt32(pub.Order), pub.Ascending,
			nullString(pub.PublicDescription), nullString(nb.Stack), nullString(biz.Notebook), biz.Recommended,
			contactID, restrictions, nullBool(recipient.ReminderNotifyEmail), nullBool(recipient.ReminderNotifyInApp),
			nullBool(recipient.InMyList), nullString(recipient.Stack), nullString(nb.LinkedNotebookGuid),
			nb.LocallyModified, nb.LocallyFavorited, nb.LocalOnly,
		)
		if err != nil {
			return wrapDBError("putNotebook", err)
		}

		if err := replaceSharedNotebooks(ctx, scope, nb.LocalID, nb.SharedNotebooks); err != nil {
			return err
		}
		return nil
	})
}

// Publishing/BusinessNotebook/NotebookRecipientSettings are local value
// shims so PutNotebook can default a nil sub-block to its zero value
// without repeating nil-checks at every field access.
type Publishing struct {
	URI               *string
	Order             *int32
	Ascending         bool
	PublicDescription *string
}
type BusinessNotebook struct {
	Notebook    *string
	Recommended bool
}
type NotebookRecipientSettings struct {
	ReminderNotifyEmail *bool
	ReminderNotifyInApp *bool
	InMyList             *bool
	Stack                *string
}

func encodeNotebookRestrictions(r *types.NotebookRestrictions) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	return encodeJSON(r)
}

func decodeNotebookRestrictions(n sql.NullString) (*types.NotebookRestrictions, error) {
	if !n.Valid {
		return nil, nil
	}
	var r types.NotebookRestrictions
	if err := decodeJSON(n, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func replaceSharedNotebooks(ctx context.Context, scope *TxScope, notebookLocalID string, shared []types.SharedNotebook) error {
	if _, err := scope.Exec(ctx, `DELETE FROM shared_notebooks WHERE notebook_local_id = ?`, notebookLocalID); err != nil {
		return wrapDBError("putNotebook: replace shared notebooks", err)
	}
	for i, sn := range shared {
		_, err := scope.Exec(ctx, `
			INSERT INTO shared_notebooks (
				notebook_local_id, notebook_guid, email, notebook_modifiable, privilege,
				sharer_user_id, recipient_username, recipient_user_id, created, updated,
				assignment_timestamp, sort_order
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		`,
			notebookLocalID, sn.NotebookGuid, nullString(sn.Email), nullBool(sn.NotebookModifiable),
			nullPrivilege(sn.Privilege), nullInt32(sn.SharerUserID), nullString(sn.RecipientUsername),
			nullInt32(sn.RecipientUserID), nullTime(sn.Created), nullTime(sn.Updated),
			nullTime(sn.AssignmentTimestamp), i,
		)
		if err != nil {
			return wrapDBError("putNotebook: insert shared notebook", err)
		}
	}
	return nil
}

func nullPrivilege(p *types.SharedNotebookPrivilegeLevel) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// FindNotebookByLocalID fetches a notebook by its local id.
func (h *NotebookHandler) FindNotebookByLocalID(ctx context.Context, localID string) (*types.Notebook, error) {
	return h.find(ctx, "local_id = ?", localID)
}

// FindNotebookByGuid fetches a notebook by its server guid.
func (h *NotebookHandler) FindNotebookByGuid(ctx context.Context, guid string) (*types.Notebook, error) {
	return h.find(ctx, "guid = ?", guid)
}

// FindDefaultNotebook fetches the single notebook with Default set.
func (h *NotebookHandler) FindDefaultNotebook(ctx context.Context) (*types.Notebook, error) {
	return h.find(ctx, "is_default = 1")
}

// FindNotebookByName fetches a notebook by (name, linkedNotebookGuid); pass
// an empty linkedNotebookGuid for the user-own scope.
func (h *NotebookHandler) FindNotebookByName(ctx context.Context, name, linkedNotebookGuid string) (*types.Notebook, error) {
	stripped := search.StripDiacritics(name)
	if linkedNotebookGuid == "" {
		return h.find(ctx, "name_stripped = ? AND linked_notebook_guid IS NULL", stripped)
	}
	return h.find(ctx, "name_stripped = ? AND linked_notebook_guid = ?", stripped, linkedNotebookGuid)
}

func (h *NotebookHandler) find(ctx context.Context, where string, args ...any) (*types.Notebook, error) {
	row := h.pool.DB().QueryRowContext(ctx, notebookSelectSQL+" WHERE "+where, args...)
	nb, err := scanNotebook(row)
	if err != nil {
		return nil, wrapDBError("findNotebook", err)
	}
	if err := h.hydrateSharedNotebooks(ctx, nb); err != nil {
		return nil, err
	}
	return nb, nil
}

const notebookSelectSQL = `SELECT
	local_id, guid, name, update_sequence_number, created, updated, is_default, published,
	publishing_uri, publishing_order, publishing_ascending, publishing_public_description,
	stack, business_notebook_name, business_notebook_recommended, contact_user_id, restrictions,
	recipient_reminder_notify_email, recipient_reminder_notify_in_app, recipient_in_my_list,
	recipient_stack, linked_notebook_guid, locally_modified, locally_favorited, local_only
	FROM notebooks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotebook(row rowScanner) (*types.Notebook, error) {
	var nb types.Notebook
	var guid, stack, pubURI, pubDesc, bizName, restrictions, recipStack, linkedGuid sql.NullString
	var pubOrder sql.NullInt64
	var pubAscending, bizRecommended sql.NullBool
	var contactID sql.NullInt64
	var recipEmail, recipInApp, recipInMyList sql.NullBool
	var created, updated sql.NullTime

	if err := row.Scan(
		&nb.LocalID, &guid, &nb.Name, &nb.UpdateSequenceNumber, &created, &updated, &nb.Default, &nb.Published,
		&pubURI, &pubOrder, &pubAscending, &pubDesc, &stack, &bizName, &bizRecommended, &contactID, &restrictions,
		&recipEmail, &recipInApp, &recipInMyList, &recipStack, &linkedGuid,
		&nb.LocallyModified, &nb.LocallyFavorited, &nb.LocalOnly,
	); err != nil {
		return nil, err
	}

	nb.Guid = fromNullString(guid)
	nb.Stack = fromNullString(stack)
	nb.Created = fromNullTime(created)
	nb.Updated = fromNullTime(updated)
	nb.LinkedNotebookGuid = fromNullString(linkedGuid)

	if pubURI.Valid || pubDesc.Valid || pubOrder.Valid {
		nb.Publishing = &types.Publishing{
			URI: fromNullString(pubURI), Order: fromNullInt32(pubOrder),
			Ascending: pubAscending.Bool, PublicDescription: fromNullString(pubDesc),
		}
	}
	if bizName.Valid {
		nb.BusinessNotebook = &types.BusinessNotebook{Notebook: fromNullString(bizName), Recommended: bizRecommended.Bool}
	}
	if contactID.Valid {
		nb.Contact = &types.User{ID: int32(contactID.Int64)}
	}
	r, err := decodeNotebookRestrictions(restrictions)
	if err != nil {
		return nil, err
	}
	nb.Restrictions = r
	if recipEmail.Valid || recipInApp.Valid || recipInMyList.Valid || recipStack.Valid {
		nb.RecipientSettings = &types.NotebookRecipientSettings{
			ReminderNotifyEmail: fromNullBool(recipEmail), ReminderNotifyInApp: fromNullBool(recipInApp),
			InMyList: fromNullBool(recipInMyList), Stack: fromNullString(recipStack),
		}
	}
	return &nb, nil
}

func (h *NotebookHandler) hydrateSharedNotebooks(ctx context.Context, nb *types.Notebook) error {
	rows, err := h.pool.DB().QueryContext(ctx, `
		SELECT notebook_guid, email, notebook_modifiable, privilege, sharer_user_id, recipient_username,
			recipient_user_id, created, updated, assignment_timestamp
		FROM shared_notebooks WHERE notebook_local_id = ? ORDER BY sort_order`, nb.LocalID)
	if err != nil {
		return wrapDBError("findNotebook: shared notebooks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sn types.SharedNotebook
		var guid, email, recipUsername sql.NullString
		var modifiable sql.NullBool
		var privilege, sharerID, recipID sql.NullInt64
		var created, updated, assignment sql.NullTime
		if err := rows.Scan(&guid, &email, &modifiable, &privilege, &sharerID, &recipUsername, &recipID, &created, &updated, &assignment); err != nil {
			return wrapDBError("findNotebook: shared notebooks", err)
		}
		sn.NotebookGuid = guid.String
		sn.Email = fromNullString(email)
		sn.NotebookModifiable = fromNullBool(modifiable)
		if privilege.Valid {
			p := types.SharedNotebookPrivilegeLevel(privilege.Int64)
			sn.Privilege = &p
		}
		sn.SharerUserID = fromNullInt32(sharerID)
		sn.RecipientUsername = fromNullString(recipUsername)
		sn.RecipientUserID = fromNullInt32(recipID)
		sn.Created = fromNullTime(created)
		sn.Updated = fromNullTime(updated)
		sn.AssignmentTimestamp = fromNullTime(assignment)
		nb.SharedNotebooks = append(nb.SharedNotebooks, sn)
	}
	return rows.Err()
}

// ListNotebooks returns notebooks matching opts.
func (h *NotebookHandler) ListNotebooks(ctx context.Context, opts types.ListOptions[types.NotebookOrder]) ([]*types.Notebook, error) {
	where, args := buildNotebookListFilter(opts)
	order := notebookOrderColumn(opts.Order, opts.Direction)
	query := notebookSelectSQL
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + order
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := h.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listNotebooks", err)
	}
	defer rows.Close()

	var out []*types.Notebook
	for rows.Next() {
		nb, err := scanNotebook(rows)
		if err != nil {
			return nil, wrapDBError("listNotebooks", err)
		}
		out = append(out, nb)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("listNotebooks", err)
	}
	for _, nb := range out {
		if err := h.hydrateSharedNotebooks(ctx, nb); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListNotebookGuids returns the guids of notebooks matching opts, in the
// same order ListNotebooks would return them. A notebook with no guid
// (never synced) is skipped.
func (h *NotebookHandler) ListNotebookGuids(ctx context.Context, opts types.ListOptions[types.NotebookOrder]) ([]string, error) {
	where, args := buildNotebookListFilter(opts)
	order := notebookOrderColumn(opts.Order, opts.Direction)
	query := "SELECT guid FROM notebooks"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + order
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := h.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("listNotebookGuids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var guid sql.NullString
		if err := rows.Scan(&guid); err != nil {
			return nil, wrapDBError("listNotebookGuids", err)
		}
		if guid.Valid {
			out = append(out, guid.String)
		}
	}
	return out, rows.Err()
}

func buildNotebookListFilter(opts types.ListOptions[types.NotebookOrder]) (string, []any) {
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
		return "", nil
	}
	return joinAnd(clauses), args
}

func boolFilterClause(col string, t types.TriState) string {
	if t == types.TriStateInclude {
		return col + " = 1"
	}
	return col + " = 0"
}

func notebookOrderColumn(order types.NotebookOrder, dir types.OrderDirection) string {
	col := "local_id"
	switch order {
	case types.NotebookOrderByUpdateSequenceNumber:
		col = "update_sequence_number"
	case types.NotebookOrderByName:
		col = "name_stripped"
	case types.NotebookOrderByCreationTimestamp:
		col = "created"
	case types.NotebookOrderByModificationTimestamp:
		col = "updated"
	}
	if dir == types.OrderDescending {
		return col + " DESC"
	}
	return col + " ASC"
}

// CountNotebooks returns the number of notebooks matching opts's affiliation.
func (h *NotebookHandler) CountNotebooks(ctx context.Context, affiliation types.Affiliation, linkedNotebookGuids []string) (int, error) {
	where, args := buildNotebookListFilter(types.ListOptions[types.NotebookOrder]{Affiliation: affiliation, LinkedNotebookGuids: linkedNotebookGuids})
	query := "SELECT COUNT(*) FROM notebooks"
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := h.pool.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrapDBError("countNotebooks", err)
	}
	return n, nil
}

// ExpungeNotebookByLocalID cascades to its notes and their resources
// (spec.md §3 invariant: notebook expunge cascades).
func (h *NotebookHandler) ExpungeNotebookByLocalID(ctx context.Context, localID string) error {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		res, err := scope.Exec(ctx, `DELETE FROM notebooks WHERE local_id = ?`, localID)
		if err != nil {
			return wrapDBError("expungeNotebook", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return types.NotFoundf("expungeNotebook: %s", localID)
		}
		return nil
	})
}

// ExpungeNotebookByName resolves the Open Question documented in
// SPEC_FULL.md §4.3: an empty linkedNotebookGuid forces the user-own
// scope; callers wanting to search both scopes unambiguously must look up
// the local id first via FindNotebookByName and expunge by id.
func (h *NotebookHandler) ExpungeNotebookByName(ctx context.Context, name, linkedNotebookGuid string) error {
	nb, err := h.FindNotebookByName(ctx, name, linkedNotebookGuid)
	if err != nil {
		return err
	}
	return h.ExpungeNotebookByLocalID(ctx, nb.LocalID)
}

func joinComma(parts []string) string { return joinSep(parts, ", ") }
func joinAnd(parts []string) string   { return joinSep(parts, " AND ") }

func joinSep(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
