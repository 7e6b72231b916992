package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evernotelocal/qstore/internal/types"
)

// CurrentSchemaVersion is the schema version this build of the engine
// writes and expects to find. An on-disk database at a different version
// fails to open with types.ErrSchemaVersion (spec.md §4 "Schema version").
const CurrentSchemaVersion = 1

// schemaStatements holds every CREATE TABLE / CREATE INDEX the engine
// needs, applied in order inside a single exclusive transaction the first
// time a database file is opened. Diacritic-folded "_stripped" shadow
// columns back the note-search compiler's LIKE predicates (internal/search,
// spec.md §4.4 invariant 10); they are maintained by the entity handlers at
// write time, never recomputed by a trigger, so every write path funnels
// through search.StripDiacritics.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		email TEXT,
		name TEXT,
		timezone TEXT,
		privilege INTEGER,
		service_level INTEGER,
		created DATETIME,
		updated DATETIME,
		deleted DATETIME,
		active INTEGER,
		shard_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS user_attributes (
		user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		default_location_name TEXT,
		default_latitude REAL,
		default_longitude REAL,
		preactivation_done INTEGER NOT NULL DEFAULT 0,
		viewed_promotions TEXT,
		incoming_email_address TEXT,
		recent_mailed_addresses TEXT,
		comments TEXT,
		date_agreed_to_tos DATETIME,
		max_referrals INTEGER,
		referral_count INTEGER,
		referer_code TEXT,
		sent_email_date DATETIME,
		sent_email_count INTEGER NOT NULL DEFAULT 0,
		daily_email_limit INTEGER NOT NULL DEFAULT 0,
		email_opt_out_date DATETIME,
		partner_email_opt_in_date DATETIME,
		preferred_language TEXT,
		preferred_country TEXT,
		clip_full_page INTEGER NOT NULL DEFAULT 0,
		twitter_user_name TEXT,
		twitter_id TEXT,
		group_name TEXT,
		recognition_language TEXT,
		referral_proof TEXT,
		educational_discount INTEGER NOT NULL DEFAULT 0,
		business_address TEXT,
		hide_sponsor_billing INTEGER NOT NULL DEFAULT 0,
		tax_exempt INTEGER NOT NULL DEFAULT 0,
		use_email_auto_filing INTEGER NOT NULL DEFAULT 0,
		reminder_email_config INTEGER,
		email_address_last_confirmed DATETIME,
		password_updated DATETIME,
		salesforce_push_enabled INTEGER NOT NULL DEFAULT 0,
		should_log_client_event INTEGER NOT NULL DEFAULT 0,
		classifications TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS user_accounting (
		user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		upload_limit_end DATETIME,
		upload_limit_next_month INTEGER NOT NULL DEFAULT 0,
		premium_service_status INTEGER,
		premium_order_number TEXT,
		premium_commerce_service TEXT,
		premium_service_start DATETIME,
		premium_service_sku TEXT,
		last_successful_charge DATETIME,
		last_failed_charge DATETIME,
		last_failed_charge_reason TEXT,
		next_payment_due DATETIME,
		premium_lock_until DATETIME,
		updated DATETIME,
		premium_subscription_number TEXT,
		last_requested_charge DATETIME,
		currency TEXT,
		unit_price INTEGER,
		business_id INTEGER,
		business_name TEXT,
		business_role INTEGER,
		unit_discount INTEGER,
		next_charge_date DATETIME,
		available_points INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS user_business_info (
		user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		business_id INTEGER,
		business_name TEXT,
		role INTEGER,
		email TEXT,
		updated DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS user_account_limits (
		user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		user_mail_limit_daily INTEGER,
		note_size_max INTEGER,
		resource_size_max INTEGER,
		user_linked_notebook_max INTEGER,
		upload_limit INTEGER,
		user_note_count_max INTEGER,
		user_notebook_count_max INTEGER,
		user_tag_count_max INTEGER,
		note_tag_count_max INTEGER,
		user_saved_searches_max INTEGER,
		note_resource_count_max INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS linked_notebooks (
		guid TEXT PRIMARY KEY,
		update_sequence_number INTEGER,
		share_name TEXT,
		username TEXT,
		shard_id TEXT,
		shared_notebook_global_id TEXT,
		uri TEXT,
		note_store_url TEXT,
		web_api_url_prefix TEXT,
		stack TEXT,
		business_id INTEGER,
		locally_modified INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS notebooks (
		local_id TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		name TEXT NOT NULL,
		name_stripped TEXT NOT NULL,
		update_sequence_number INTEGER,
		created DATETIME,
		updated DATETIME,
		is_default INTEGER NOT NULL DEFAULT 0,
		published INTEGER NOT NULL DEFAULT 0,
		publishing_uri TEXT,
		publishing_order INTEGER,
		publishing_ascending INTEGER NOT NULL DEFAULT 0,
		publishing_public_description TEXT,
		stack TEXT,
		business_notebook_name TEXT,
		business_notebook_recommended INTEGER NOT NULL DEFAULT 0,
		contact_user_id INTEGER,
		restrictions TEXT,
		recipient_reminder_notify_email INTEGER,
		recipient_reminder_notify_in_app INTEGER,
		recipient_in_my_list INTEGER,
		recipient_stack TEXT,
		linked_notebook_guid TEXT REFERENCES linked_notebooks(guid) ON DELETE CASCADE,
		locally_modified INTEGER NOT NULL DEFAULT 0,
		locally_favorited INTEGER NOT NULL DEFAULT 0,
		local_only INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notebooks_linked_notebook ON notebooks(linked_notebook_guid)`,
	// A table-level UNIQUE(name_stripped, linked_notebook_guid) would not
	// enforce uniqueness among user-own notebooks, since SQLite treats each
	// NULL linked_notebook_guid as distinct from every other. Partial
	// indexes split the user-own scope (NULL) from the per-linked-notebook
	// scope so both are actually unique.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_notebooks_name_unique_user ON notebooks(name_stripped) WHERE linked_notebook_guid IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_notebooks_name_unique_linked ON notebooks(name_stripped, linked_notebook_guid) WHERE linked_notebook_guid IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS shared_notebooks (
		id INTEGER PRIMARY KEY,
		notebook_local_id TEXT NOT NULL REFERENCES notebooks(local_id) ON DELETE CASCADE,
		notebook_guid TEXT,
		email TEXT,
		notebook_modifiable INTEGER,
		privilege INTEGER,
		sharer_user_id INTEGER,
		recipient_username TEXT,
		recipient_user_id INTEGER,
		created DATETIME,
		updated DATETIME,
		assignment_timestamp DATETIME,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shared_notebooks_notebook ON shared_notebooks(notebook_local_id)`,

	`CREATE TABLE IF NOT EXISTS tags (
		local_id TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		name TEXT NOT NULL,
		name_stripped TEXT NOT NULL,
		update_sequence_number INTEGER,
		parent_tag_local_id TEXT REFERENCES tags(local_id) ON DELETE SET NULL,
		parent_guid TEXT,
		linked_notebook_guid TEXT REFERENCES linked_notebooks(guid) ON DELETE CASCADE,
		locally_modified INTEGER NOT NULL DEFAULT 0,
		locally_favorited INTEGER NOT NULL DEFAULT 0,
		local_only INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tags_parent ON tags(parent_tag_local_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tags_linked_notebook ON tags(linked_notebook_guid)`,
	// See the matching comment on the notebooks table: NULL linked_notebook_guid
	// values must be folded into one uniqueness scope via a partial index.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_unique_user ON tags(name_stripped) WHERE linked_notebook_guid IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_unique_linked ON tags(name_stripped, linked_notebook_guid) WHERE linked_notebook_guid IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS notes (
		local_id TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		notebook_local_id TEXT NOT NULL REFERENCES notebooks(local_id) ON DELETE CASCADE,
		notebook_guid TEXT,
		title TEXT,
		title_stripped TEXT NOT NULL DEFAULT '',
		content TEXT,
		content_stripped TEXT NOT NULL DEFAULT '',
		content_hash BLOB,
		content_length INTEGER,
		created DATETIME,
		updated DATETIME,
		deleted DATETIME,
		active INTEGER NOT NULL DEFAULT 1,
		update_sequence_number INTEGER,
		locally_modified INTEGER NOT NULL DEFAULT 0,
		locally_favorited INTEGER NOT NULL DEFAULT 0,
		local_only INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_notebook ON notes(notebook_local_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_active_deleted ON notes(active, deleted)`,

	`CREATE TABLE IF NOT EXISTS note_attributes (
		note_local_id TEXT PRIMARY KEY REFERENCES notes(local_id) ON DELETE CASCADE,
		subject_date DATETIME,
		latitude REAL,
		longitude REAL,
		altitude REAL,
		author TEXT,
		author_stripped TEXT,
		source TEXT,
		source_stripped TEXT,
		source_url TEXT,
		source_application TEXT,
		source_application_stripped TEXT,
		share_date DATETIME,
		reminder_order INTEGER,
		reminder_done_time DATETIME,
		reminder_time DATETIME,
		place_name TEXT,
		place_name_stripped TEXT,
		content_class TEXT,
		content_class_stripped TEXT,
		last_edited_by TEXT,
		classifications TEXT,
		creator_id INTEGER,
		last_editor_id INTEGER,
		shared_with_business INTEGER NOT NULL DEFAULT 0,
		conflict_source_note_guid TEXT,
		note_title_quality INTEGER,
		todo INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS note_attributes_app_data_keys (
		note_local_id TEXT NOT NULL REFERENCES notes(local_id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		PRIMARY KEY (note_local_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS note_attributes_app_data_map (
		note_local_id TEXT NOT NULL REFERENCES notes(local_id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (note_local_id, key)
	)`,

	`CREATE TABLE IF NOT EXISTS note_limits (
		note_local_id TEXT PRIMARY KEY REFERENCES notes(local_id) ON DELETE CASCADE,
		note_resource_count_max INTEGER,
		upload_limit INTEGER,
		resource_size_max INTEGER,
		note_size_max INTEGER,
		uploaded INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS note_restrictions (
		note_local_id TEXT PRIMARY KEY REFERENCES notes(local_id) ON DELETE CASCADE,
		no_update_title INTEGER NOT NULL DEFAULT 0,
		no_update_content INTEGER NOT NULL DEFAULT 0,
		no_email INTEGER NOT NULL DEFAULT 0,
		no_share INTEGER NOT NULL DEFAULT 0,
		no_share_publicly INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS note_tags (
		note_local_id TEXT NOT NULL REFERENCES notes(local_id) ON DELETE CASCADE,
		tag_local_id TEXT NOT NULL,
		tag_guid TEXT,
		sort_order INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (note_local_id, tag_local_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag_local_id)`,

	`CREATE TABLE IF NOT EXISTS shared_notes (
		id INTEGER PRIMARY KEY,
		note_local_id TEXT NOT NULL REFERENCES notes(local_id) ON DELETE CASCADE,
		sharer_user_id INTEGER,
		recipient_identity_id INTEGER,
		privilege INTEGER,
		created DATETIME,
		updated DATETIME,
		assignment_timestamp DATETIME,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shared_notes_note ON shared_notes(note_local_id)`,

	`CREATE TABLE IF NOT EXISTS resources (
		local_id TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		note_local_id TEXT NOT NULL REFERENCES notes(local_id) ON DELETE CASCADE,
		note_guid TEXT,
		data_body BLOB,
		data_size INTEGER,
		data_md5 BLOB,
		data_file_path TEXT,
		alt_data_body BLOB,
		alt_data_size INTEGER,
		alt_data_md5 BLOB,
		alt_data_file_path TEXT,
		reco_data_body BLOB,
		reco_data_size INTEGER,
		reco_data_md5 BLOB,
		reco_stripped TEXT,
		mime TEXT,
		mime_stripped TEXT,
		width INTEGER,
		height INTEGER,
		update_sequence_number INTEGER,
		index_in_note INTEGER NOT NULL DEFAULT 0,
		locally_modified INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resources_note ON resources(note_local_id)`,

	`CREATE TABLE IF NOT EXISTS resource_attributes (
		resource_local_id TEXT PRIMARY KEY REFERENCES resources(local_id) ON DELETE CASCADE,
		source_url TEXT,
		timestamp INTEGER,
		latitude REAL,
		longitude REAL,
		altitude REAL,
		camera_make TEXT,
		camera_model TEXT,
		client_will_index INTEGER NOT NULL DEFAULT 0,
		reco_type TEXT,
		file_name TEXT,
		attachment INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS resource_attributes_app_data_keys (
		resource_local_id TEXT NOT NULL REFERENCES resources(local_id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		PRIMARY KEY (resource_local_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS resource_attributes_app_data_map (
		resource_local_id TEXT NOT NULL REFERENCES resources(local_id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (resource_local_id, key)
	)`,

	`CREATE TABLE IF NOT EXISTS saved_searches (
		local_id TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		name TEXT NOT NULL,
		name_stripped TEXT NOT NULL UNIQUE,
		query TEXT NOT NULL,
		format INTEGER,
		update_sequence_number INTEGER,
		scope_include_account INTEGER NOT NULL DEFAULT 0,
		scope_include_personal_linked INTEGER NOT NULL DEFAULT 0,
		scope_include_business_linked INTEGER NOT NULL DEFAULT 0,
		has_scope INTEGER NOT NULL DEFAULT 0,
		locally_modified INTEGER NOT NULL DEFAULT 0,
		locally_favorited INTEGER NOT NULL DEFAULT 0,
		local_only INTEGER NOT NULL DEFAULT 0
	)`,
}

// Migrate applies the schema to conn if it is not already current, and
// records CurrentSchemaVersion in the version table. It runs inside a
// single exclusive transaction: either the whole schema lands, or none of
// it does.
func Migrate(ctx context.Context, pool *Pool) error {
	conn, err := pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxExclusive, func(scope *TxScope) error {
		// Every statement is CREATE [TABLE|INDEX] IF NOT EXISTS, so running
		// them against an already-current database is a harmless no-op;
		// this sidesteps needing to special-case "version table absent" on
		// a brand new file versus "version table present" on a reopen.
		for _, stmt := range schemaStatements {
			if _, err := scope.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("sqlite: apply schema: %w", types.DatabaseRequestf("migrate", err))
			}
		}

		var current int
		err := scope.QueryRow(ctx, `SELECT schema_version FROM version WHERE id = 1`).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			_, err = scope.Exec(ctx, `INSERT INTO version (id, schema_version) VALUES (1, ?)`, CurrentSchemaVersion)
			if err != nil {
				return fmt.Errorf("sqlite: record schema version: %w", types.DatabaseRequestf("migrate", err))
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("sqlite: read schema version: %w", types.DatabaseRequestf("migrate", err))
		}
		if current != CurrentSchemaVersion {
			return fmt.Errorf("sqlite: on-disk schema version %d, engine expects %d: %w",
				current, CurrentSchemaVersion, types.ErrSchemaVersion)
		}
		return nil
	})
}
