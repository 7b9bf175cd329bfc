package database

import (
	"context"
	"fmt"
)

// Schema DDL is written in the portable subset both backends accept: uuid
// string keys, TEXT/NUMERIC/TIMESTAMPTZ column types (SQLite treats unknown
// type names as affinities), and no serial columns. This removes any need
// for dialect translation at query time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		head_user_id TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		department_id TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT,
		user_agent TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		old_values TEXT,
		new_values TEXT,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		company_name TEXT NOT NULL UNIQUE,
		contact_name TEXT,
		contact_phone TEXT,
		industry TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		department_id TEXT NOT NULL,
		position TEXT,
		phone TEXT,
		hired_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS partners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_email TEXT,
		contact_phone TEXT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		severity TEXT NOT NULL,
		sender_id TEXT,
		link TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_recipients (
		notification_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		is_acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
		acknowledged_at TIMESTAMPTZ,
		PRIMARY KEY (notification_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notification_attachments (
		id TEXT PRIMARY KEY,
		notification_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		storage_path TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS petty_cash_ledgers (
		id TEXT PRIMARY KEY,
		department_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		title TEXT NOT NULL,
		starting_balance NUMERIC NOT NULL,
		closing_balance NUMERIC NOT NULL,
		dept_head_status TEXT NOT NULL,
		admin_status TEXT NOT NULL,
		approval_status TEXT NOT NULL,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS petty_cash_transactions (
		id TEXT PRIMARY KEY,
		ledger_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		balance NUMERIC NOT NULL,
		description TEXT,
		seq BIGINT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		department_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		name TEXT NOT NULL,
		purchase_price NUMERIC NOT NULL,
		depreciation_rate NUMERIC NOT NULL,
		date_acquired TIMESTAMPTZ NOT NULL,
		dept_head_status TEXT NOT NULL,
		admin_status TEXT NOT NULL,
		approval_status TEXT NOT NULL,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS asset_depreciation (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		snapshot_date TIMESTAMPTZ NOT NULL,
		accumulated NUMERIC NOT NULL,
		book_value NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS progress_reports (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		summary TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS target_progress (
		id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		report_id TEXT NOT NULL UNIQUE,
		amount NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS certificates (
		id TEXT PRIMARY KEY,
		recipient_name TEXT NOT NULL,
		program_title TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		status TEXT NOT NULL,
		storage_path TEXT,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_recipients_user ON notification_recipients (user_id, is_read)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_parent ON notifications (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_ledger ON petty_cash_transactions (ledger_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_target_progress_target ON target_progress (target_id)`,
}

// EnsureSchema creates missing tables and indexes. Existing objects are left
// untouched; partial schemas from older deployments degrade per-route rather
// than failing boot.
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
