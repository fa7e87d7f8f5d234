// Package events defines the realtime event vocabulary and the sinks they
// flow to. Delivery is best-effort, at-most-once: a mutation commits first,
// then its event is emitted, and an emission failure never surfaces back to
// the mutation.
package events

import (
	"time"

	"github.com/Julfy0228/WebMessenger/internal/models"
)

type Type string

const (
	TypeMessageSent          Type = "MessageSent"
	TypeMessageEdited        Type = "MessageEdited"
	TypeMessageDeleted       Type = "MessageDeleted"
	TypeParticipantAdded     Type = "ParticipantAdded"
	TypeRoleChanged          Type = "RoleChanged"
	TypeOwnershipTransferred Type = "OwnershipTransferred"
	TypeUserKicked           Type = "UserKicked"
	TypeChatDeleted          Type = "ChatDeleted"
	TypeChatAvatarUpdated    Type = "ChatAvatarUpdated"
	TypeChatCreated          Type = "ChatCreated"
	TypeUserOnline           Type = "UserOnline"
	TypeUserOffline          Type = "UserOffline"
)

type Event struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload"`
}

// Broadcaster fans an event out to its audience. Implementations must not
// block the caller and must swallow delivery failures.
type Broadcaster interface {
	// ToChat delivers to sessions subscribed to the chat's group.
	ToChat(chatID uint, ev Event)
	// ToAll delivers to every connected session.
	ToAll(ev Event)
}

// Multi tees events to several sinks (e.g. the websocket hub and the Kafka
// journal).
func Multi(sinks ...Broadcaster) Broadcaster { return multi(sinks) }

type multi []Broadcaster

func (m multi) ToChat(chatID uint, ev Event) {
	for _, s := range m {
		s.ToChat(chatID, ev)
	}
}

func (m multi) ToAll(ev Event) {
	for _, s := range m {
		s.ToAll(ev)
	}
}

type MessageEditedPayload struct {
	MessageID uint      `json:"message_id"`
	Text      string    `json:"text"`
	EditedAt  time.Time `json:"edited_at"`
}

type MessageDeletedPayload struct {
	MessageID uint `json:"message_id"`
}

type ParticipantAddedPayload struct {
	ChatID uint        `json:"chat_id"`
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
}

type ChatIDPayload struct {
	ChatID uint `json:"chat_id"`
}

type UserKickedPayload struct {
	ChatID uint `json:"chat_id"`
	UserID uint `json:"user_id"`
}

type ChatAvatarUpdatedPayload struct {
	ChatID    uint   `json:"chat_id"`
	AvatarURL string `json:"avatar_url"`
}

type ChatCreatedPayload struct {
	ChatID uint   `json:"chat_id"`
	Name   string `json:"name"`
}

type PresencePayload struct {
	UserID uint      `json:"user_id"`
	At     time.Time `json:"at"`
}

func MessageSent(view models.MessageView) Event {
	return Event{Type: TypeMessageSent, Payload: view}
}

func MessageEdited(messageID uint, text string, editedAt time.Time) Event {
	return Event{Type: TypeMessageEdited, Payload: MessageEditedPayload{MessageID: messageID, Text: text, EditedAt: editedAt}}
}

func MessageDeleted(messageID uint) Event {
	return Event{Type: TypeMessageDeleted, Payload: MessageDeletedPayload{MessageID: messageID}}
}

func ParticipantAdded(chatID, userID uint, role models.Role) Event {
	return Event{Type: TypeParticipantAdded, Payload: ParticipantAddedPayload{ChatID: chatID, UserID: userID, Role: role}}
}

func RoleChanged(chatID uint) Event {
	return Event{Type: TypeRoleChanged, Payload: ChatIDPayload{ChatID: chatID}}
}

func OwnershipTransferred(chatID uint) Event {
	return Event{Type: TypeOwnershipTransferred, Payload: ChatIDPayload{ChatID: chatID}}
}

func UserKicked(chatID, userID uint) Event {
	return Event{Type: TypeUserKicked, Payload: UserKickedPayload{ChatID: chatID, UserID: userID}}
}

func ChatDeleted(chatID uint) Event {
	return Event{Type: TypeChatDeleted, Payload: ChatIDPayload{ChatID: chatID}}
}

func ChatAvatarUpdated(chatID uint, url string) Event {
	return Event{Type: TypeChatAvatarUpdated, Payload: ChatAvatarUpdatedPayload{ChatID: chatID, AvatarURL: url}}
}

func ChatCreated(chatID uint, name string) Event {
	return Event{Type: TypeChatCreated, Payload: ChatCreatedPayload{ChatID: chatID, Name: name}}
}

func UserOnline(userID uint, at time.Time) Event {
	return Event{Type: TypeUserOnline, Payload: PresencePayload{UserID: userID, At: at}}
}

func UserOffline(userID uint, at time.Time) Event {
	return Event{Type: TypeUserOffline, Payload: PresencePayload{UserID: userID, At: at}}
}
