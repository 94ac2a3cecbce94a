package domain

import "time"

// PostTrigger описывает источник публикации меню.
type PostTrigger string

const (
	// TriggerScheduled: публикация по расписанию.
	TriggerScheduled PostTrigger = "scheduled"
	// TriggerManual: публикация по команде пользователя.
	TriggerManual PostTrigger = "manual"
)

// PostedEvent публикуется после успешной отправки меню.
type PostedEvent struct {
	ID        string      `json:"event_id"`
	Date      string      `json:"date"`
	Trigger   PostTrigger `json:"trigger"`
	ChannelID string      `json:"channel_id"`
	MessageID string      `json:"message_id"`
	PostedAt  time.Time   `json:"posted_at"`
}
