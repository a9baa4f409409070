package db

import (
	"database/sql"
	"time"
)

type Chat struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// TouchChat records that the bot saw activity from a chat, creating the row
// on first contact. Empty username/first name never overwrite known values.
func (db *DB) TouchChat(id int64, username, firstName string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO chats (id, username, first_name, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username   = CASE WHEN excluded.username != '' THEN excluded.username ELSE chats.username END,
			first_name = CASE WHEN excluded.first_name != '' THEN excluded.first_name ELSE chats.first_name END,
			last_seen  = excluded.last_seen
	`, id, username, firstName, now, now)
	return err
}

func (db *DB) GetChat(id int64) (*Chat, error) {
	c := &Chat{}
	err := db.QueryRow(`
		SELECT id, username, first_name, first_seen, last_seen
		FROM chats WHERE id = ?
	`, id).Scan(&c.ID, &c.Username, &c.FirstName, &c.FirstSeen, &c.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}
