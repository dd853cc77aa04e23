package model

import "time"

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message is append-only; text may carry an opaque
// [file:<id>:<name>:<mime>] token interpreted by the front end.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	Sender         string    `gorm:"size:8;not null" json:"sender"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	CreatedAt      time.Time `json:"timestamp"`
}
