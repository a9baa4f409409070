package db

import (
	"database/sql"
	"time"
)

// GetSession returns the stored agent session id for a chat, or "" when the
// chat has none yet.
func (db *DB) GetSession(chatID int64) (string, error) {
	var sessionID string
	err := db.QueryRow(`SELECT session_id FROM sessions WHERE chat_id = ?`, chatID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return sessionID, err
}

// PutSession stores the agent session for a chat, replacing any previous one.
func (db *DB) PutSession(chatID int64, sessionID string) error {
	_, err := db.Exec(`
		INSERT INTO sessions (chat_id, session_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			session_id = excluded.session_id,
			created_at = excluded.created_at
	`, chatID, sessionID, time.Now().UTC())
	return err
}

// DeleteSession forgets the chat's session so the next message starts fresh.
func (db *DB) DeleteSession(chatID int64) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE chat_id = ?`, chatID)
	return err
}
