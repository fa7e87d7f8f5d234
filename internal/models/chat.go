// Package models holds the persistent entities. Chats own participants and
// messages; deleting a chat cascades through both down to attachments.
package models

import "time"

type ChatType string

const (
	ChatGroup   ChatType = "group"
	ChatPrivate ChatType = "private"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin || r == RoleOwner
}

const MaxChatNameLen = 100

type Chat struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	Name      string   `gorm:"size:100;not null" json:"name"`
	Type      ChatType `gorm:"size:16;not null;index" json:"type"`
	AvatarURL string   `gorm:"size:2048" json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Participants []Participant `gorm:"constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Messages     []Message     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Participant links a user to a chat with a role. The unique index on
// (chat_id, user_id) is what makes duplicate-add races lose at commit time.
type Participant struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	ChatID   uint      `gorm:"not null;uniqueIndex:idx_chat_user" json:"chat_id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_chat_user" json:"user_id"`
	Role     Role      `gorm:"size:16;not null" json:"role"`
	JoinedAt time.Time `json:"joined_at"`
	IsMuted  bool      `json:"is_muted"`
}
