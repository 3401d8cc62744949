package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS analyses (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT,        -- external user id, NULL for anonymous sessions
        type TEXT NOT NULL,
        image_url TEXT,
        result TEXT NOT NULL,
        score REAL,
        feedback TEXT,
        metadata TEXT NOT NULL DEFAULT '{}',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_analyses_user_type ON analyses (user_id, type, created_at);

    CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods
func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, externalUserID, passwordHash string) (*User, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO users (external_user_id, password_hash) VALUES (?, ?)", externalUserID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(ctx, id)
}

func (s *SQLiteStore) getUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Analysis methods

// CreateAnalysis inserts rec, assigning its ID and CreatedAt.
func (s *SQLiteStore) CreateAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Metadata == "" {
		rec.Metadata = "{}"
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO analyses (id, user_id, type, image_url, result, score, feedback, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare analysis insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, rec.ID, rec.UserID, rec.Type, rec.ImageURL, rec.Result, rec.Score, rec.Feedback, rec.Metadata, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute analysis insert: %w", err)
	}
	return nil
}

const analysisColumns = "id, user_id, type, image_url, result, score, feedback, metadata, created_at"

// GetAnalysis returns the record owned by userID, or nil when it does not exist.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, id, userID string) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	err := sqlscan.Get(ctx, s.db, &rec, "SELECT "+analysisColumns+" FROM analyses WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &rec, nil
}

// ListAnalyses returns the user's records of one type, newest first.
func (s *SQLiteStore) ListAnalyses(ctx context.Context, userID, analysisType string) ([]AnalysisRecord, error) {
	var recs []AnalysisRecord
	err := sqlscan.Select(ctx, s.db, &recs, "SELECT "+analysisColumns+" FROM analyses WHERE user_id = ? AND type = ? ORDER BY created_at DESC", userID, analysisType)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	return recs, nil
}

// SetAnalysisMetadataField sets one top-level key of the record's metadata object.
func (s *SQLiteStore) SetAnalysisMetadataField(ctx context.Context, id, key, value string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE analyses SET metadata = json_set(metadata, '$.' || ?, ?) WHERE id = ?", key, value, id)
	if err != nil {
		return fmt.Errorf("failed to update analysis metadata: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("analysis %s not found, metadata not updated", id)
	}
	return nil
}

// Setting methods
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a single key; SQLite makes the single-row write atomic.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}

// SettingsKV exposes the settings table as a plain key-value store.
type SettingsKV struct {
	store *SQLiteStore
}

func (s *SQLiteStore) SettingsKV() *SettingsKV {
	return &SettingsKV{store: s}
}

func (kv *SettingsKV) Get(ctx context.Context, key string) (string, bool, error) {
	return kv.store.GetSetting(ctx, key)
}

func (kv *SettingsKV) Set(ctx context.Context, key, value string) error {
	return kv.store.SetSetting(ctx, key, value)
}
