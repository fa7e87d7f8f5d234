package models

import "time"

const MaxMessageTextLen = 5000

type Message struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	ChatID   uint       `gorm:"not null;index" json:"chat_id"`
	SenderID uint       `gorm:"not null;index" json:"sender_id"`
	Text     string     `gorm:"size:5000" json:"text"`
	SentAt   time.Time  `json:"sent_at"`
	EditedAt *time.Time `json:"edited_at,omitempty"`
	IsRead   bool       `json:"is_read"`
	ReadAt   *time.Time `json:"read_at,omitempty"`

	Attachments []AttachmentRow `gorm:"constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

func (m *Message) MarkAsRead(at time.Time) {
	m.IsRead = true
	m.ReadAt = &at
}
