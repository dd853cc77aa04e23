package model

import "time"

// Conversation is one chat thread between a user and a single agent.
// DifyConversationID is empty until the upstream assigns one on the
// first turn; UserID is fixed at creation and never reassigned.
type Conversation struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null;index" json:"user_id"`
	AgentID            string    `gorm:"size:32;not null" json:"agent_id"`
	AgentName          string    `gorm:"size:128;not null" json:"agent_name"`
	DifyConversationID string    `gorm:"size:64" json:"dify_conversation_id"`
	Title              string    `gorm:"size:64;not null" json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
