package journal

import (
	"context"
	"database/sql"
	"errors"
)

// Session keys. The identity survives restarts; the tracker reads the
// email at startup and the password handler clears the forced flag.
const (
	KeyEmail               = "email"
	KeyFullName            = "full_name"
	KeyForcePasswordChange = "force_password_change"
)

// SessionStore is a durable key-value store for the agent's identity.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM session_kv WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, key, value)
	return err
}

// ForcePasswordChange reads the forced-change flag; absent means false.
func (s *SessionStore) ForcePasswordChange(ctx context.Context) (bool, error) {
	v, err := s.Get(ctx, KeyForcePasswordChange)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true", nil
}
