package model

import "time"

const (
	ChatOutcomeOK            = "ok"
	ChatOutcomeUpstreamError = "upstream_error"
)

// ChatEvent is an audit record of one chat turn, published to the
// event queue after the turn completes and persisted asynchronously.
type ChatEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	ConversationID uint      `gorm:"index" json:"conversation_id"`
	AgentID        string    `gorm:"size:32;not null" json:"agent_id"`
	Outcome        string    `gorm:"size:16;not null" json:"outcome"`
	LatencyMS      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
