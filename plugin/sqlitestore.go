package plugin

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed settings_schema.sql
var settingsSchema string

// SQLiteSettingsStore persists plugin settings documents to a SQLite
// database. WAL mode keeps reads concurrent with writes.
type SQLiteSettingsStore struct {
	db *sql.DB
}

// NewSQLiteSettingsStore opens (or creates) a SQLite settings store.
func NewSQLiteSettingsStore(dsn string) (*SQLiteSettingsStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("settingsstore: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("settingsstore: set WAL mode: %w", err)
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("settingsstore: create schema: %w", err)
	}

	return &SQLiteSettingsStore{db: db}, nil
}

// PluginSettings returns the stored settings document for a plugin.
func (s *SQLiteSettingsStore) PluginSettings(pluginID string) (string, bool) {
	var doc string
	err := s.db.QueryRow(
		`SELECT settings FROM plugin_settings WHERE plugin_id = ?`, pluginID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) || err != nil {
		return "", false
	}
	return doc, true
}

// PutPluginSettings stores (or replaces) a plugin's settings document.
func (s *SQLiteSettingsStore) PutPluginSettings(pluginID, doc string) error {
	_, err := s.db.Exec(
		`INSERT INTO plugin_settings (plugin_id, settings, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(plugin_id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at`,
		pluginID, doc, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("settingsstore: put: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteSettingsStore) Close() error {
	return s.db.Close()
}

var _ SettingsStore = (*SQLiteSettingsStore)(nil)
