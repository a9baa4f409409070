package db

import "time"

// Message directions in the transcript.
const (
	DirectionIn  = "in"  // user -> agent
	DirectionOut = "out" // agent -> user
)

type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chatId"`
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// InsertMessage appends a relayed message to the chat transcript.
func (db *DB) InsertMessage(chatID int64, direction, content string) error {
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, direction, content, created_at)
		VALUES (?, ?, ?, ?)
	`, chatID, direction, content, time.Now().UTC())
	return err
}

// RecentMessages returns up to limit transcript entries for a chat in
// chronological order.
func (db *DB) RecentMessages(chatID int64, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, chat_id, direction, content, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Direction, &m.Content, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, m)
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
