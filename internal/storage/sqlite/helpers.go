package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evernotelocal/qstore/internal/types"
)

// nullString/nullInt64/etc. convert Go's *T optional fields to
// database/sql's driver-friendly Null* wrappers on the way in, mirroring
// the teacher's queries_helpers.go parse/format pair but generalized to
// every optional scalar kind the entity tables use.

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullInt32(p *int32) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat64(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func fromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func fromNullInt32(n sql.NullInt64) *int32 {
	if !n.Valid {
		return nil
	}
	v := int32(n.Int64)
	return &v
}

func fromNullFloat64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func fromNullBool(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

func fromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

// encodeStringSlice/decodeStringSlice persist a []string as a JSON array,
// matching the teacher's formatJSONStringArray/parseJSONStringArray helpers
// for columns (viewedPromotions, recentMailedAddresses, ...) that have no
// natural relational home of their own.
func encodeStringSlice(ss []string) (sql.NullString, error) {
	if len(ss) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("sqlite: encode string slice: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeStringSlice(n sql.NullString) ([]string, error) {
	if !n.Valid || n.String == "" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(n.String), &ss); err != nil {
		return nil, fmt.Errorf("sqlite: decode string slice: %w", err)
	}
	return ss, nil
}

// encodeStringMap/decodeStringMap persist a map[string]string as JSON, used
// for the Classifications field and similar free-form maps.
func encodeStringMap(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("sqlite: encode string map: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeStringMap(n sql.NullString) (map[string]string, error) {
	if !n.Valid || n.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(n.String), &m); err != nil {
		return nil, fmt.Errorf("sqlite: decode string map: %w", err)
	}
	return m, nil
}

// encodeJSON/decodeJSON persist any sub-block struct (restrictions, limits)
// as an opaque JSON blob in a single column, rather than a handful of
// individually-named boolean columns -- these blocks are read back whole
// and never queried by field, so a normalized column-per-field layout would
// add schema surface with no query benefit.
func encodeJSON(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("sqlite: encode json: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeJSON(n sql.NullString, v any) error {
	if !n.Valid || n.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(n.String), v); err != nil {
		return fmt.Errorf("sqlite: decode json: %w", err)
	}
	return nil
}

// replaceApplicationData replaces the keys-table and map-table rows for one
// owner (a note or a resource) with the contents of m, implementing
// qevercloud's LazyMap semantics: Keys always lists every known key, and
// FullMap additionally carries values for the subset the client chose to
// fetch. keysTable/mapTable/ownerCol parametrize this over
// note_attributes_app_data_* and resource_attributes_app_data_* without
// duplicating the replace-in-place logic.
func replaceApplicationData(ctx context.Context, scope *TxScope, keysTable, mapTable, ownerCol, ownerID string, m *types.FullMap) error {
	if _, err := scope.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, keysTable, ownerCol), ownerID); err != nil {
		return fmt.Errorf("sqlite: replace application data keys: %w", err)
	}
	if _, err := scope.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, mapTable, ownerCol), ownerID); err != nil {
		return fmt.Errorf("sqlite: replace application data map: %w", err)
	}
	if m == nil {
		return nil
	}
	for _, k := range m.Keys {
		if _, err := scope.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s, key) VALUES (?, ?)`, keysTable, ownerCol), ownerID, k); err != nil {
			return fmt.Errorf("sqlite: insert application data key: %w", err)
		}
	}
	if m.HasFullMap {
		for k, v := range m.FullMap {
			if _, err := scope.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s, key, value) VALUES (?, ?, ?)`, mapTable, ownerCol), ownerID, k, v); err != nil {
				return fmt.Errorf("sqlite: insert application data entry: %w", err)
			}
		}
	}
	return nil
}

func loadApplicationData(ctx context.Context, pool *Pool, keysTable, mapTable, ownerCol, ownerID string) (*types.FullMap, error) {
	rows, err := pool.DB().QueryContext(ctx, fmt.Sprintf(`SELECT key FROM %s WHERE %s = ?`, keysTable, ownerCol), ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load application data keys: %w", err)
	}
	var m types.FullMap
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: load application data keys: %w", err)
		}
		m.Keys = append(m.Keys, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(m.Keys) == 0 {
		return nil, nil
	}

	valueRows, err := pool.DB().QueryContext(ctx, fmt.Sprintf(`SELECT key, value FROM %s WHERE %s = ?`, mapTable, ownerCol), ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load application data map: %w", err)
	}
	defer valueRows.Close()
	m.FullMap = map[string]string{}
	for valueRows.Next() {
		var k, v string
		if err := valueRows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite: load application data map: %w", err)
		}
		m.FullMap[k] = v
		m.HasFullMap = true
	}
	return &m, valueRows.Err()
}

// withTx runs fn inside a TxScope of the given kind, committing (or ending,
// for TxSelection) on success, rolling back (or ending, for TxSelection) on
// error, and always rolling back before re-panicking on a panic. Mirrors
// the teacher's withTx helper in internal/storage/sqlite/dirty.go, adapted
// to TxScope's three BEGIN forms instead of database/sql's single
// *sql.Tx.
func withTx(ctx context.Context, conn *sql.Conn, kind TxKind, fn func(*TxScope) error) (err error) {
	scope, err := Begin(ctx, conn, kind)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = scope.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(scope); err != nil {
		if kind == TxSelection {
			_ = scope.End(ctx)
		} else {
			_ = scope.Rollback(ctx)
		}
		return err
	}

	if kind == TxSelection {
		return scope.End(ctx)
	}
	return scope.Commit(ctx)
}
