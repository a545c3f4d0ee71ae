package mq

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelProfileReindex = "talent.profile.reindex"
	ChannelResumeParse    = "talent.resume.parse"
	ChannelMessageSent    = "communication.message.sent"
)

// ProfileReindexEvent asks the indexer to refresh one profile's search
// document.
type ProfileReindexEvent struct {
	ProfileID  uuid.UUID `json:"profile_id"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ResumeParseEvent announces a newly stored resume.
type ResumeParseEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	ObjectKey  string    `json:"object_key"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MessageSentEvent announces a stored direct message to its recipients.
type MessageSentEvent struct {
	MessageID      uuid.UUID   `json:"message_id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	Recipients     []uuid.UUID `json:"recipients"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
