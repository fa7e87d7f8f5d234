// Package service implements the chat lifecycle manager and the
// message/attachment pipeline. Every mutation authorizes against current
// membership state, applies inside the repository's transaction boundary,
// and only then announces the change through the broadcaster.
package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
	"github.com/Julfy0228/WebMessenger/internal/auth"
	"github.com/Julfy0228/WebMessenger/internal/events"
	"github.com/Julfy0228/WebMessenger/internal/models"
	"github.com/Julfy0228/WebMessenger/internal/repository"
	"github.com/Julfy0228/WebMessenger/internal/storage"
)

type ChatService struct {
	chats       repository.ChatRepository
	messages    repository.MessageRepository
	broadcaster events.Broadcaster
	blobs       storage.BlobStore
	log         *zap.SugaredLogger
}

func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	broadcaster events.Broadcaster,
	blobs storage.BlobStore,
	log *zap.SugaredLogger,
) *ChatService {
	return &ChatService{chats: chats, messages: messages, broadcaster: broadcaster, blobs: blobs, log: log}
}

// CreateChat creates a group or private chat with the caller as Owner.
// Creating a private chat with a user you already share a private chat with
// returns the existing chat unchanged, so the call is idempotent per
// unordered user pair.
func (s *ChatService) CreateChat(callerID uint, name string, chatType models.ChatType, participantIDs []uint) (*models.Chat, error) {
	if name == "" || len(name) > models.MaxChatNameLen {
		return nil, fmt.Errorf("%w: chat name must be 1-%d characters", apperr.ErrBadRequest, models.MaxChatNameLen)
	}
	if chatType != models.ChatGroup && chatType != models.ChatPrivate {
		return nil, fmt.Errorf("%w: unknown chat type %q", apperr.ErrBadRequest, chatType)
	}

	others := dedupe(participantIDs, callerID)

	if chatType == models.ChatPrivate {
		if len(participantIDs) == 1 && participantIDs[0] == callerID {
			return nil, fmt.Errorf("%w: cannot create a private chat with yourself", apperr.ErrBadRequest)
		}
		if len(others) != 1 {
			return nil, fmt.Errorf("%w: a private chat requires exactly one other participant", apperr.ErrBadRequest)
		}
		if existing, err := s.chats.FindPrivateChatBetween(callerID, others[0]); err == nil {
			return existing, nil
		} else if !apperr.IsNotFound(err) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	chat := &models.Chat{Name: name, Type: chatType, CreatedAt: now}
	participants := []models.Participant{
		{UserID: callerID, Role: models.RoleOwner, JoinedAt: now},
	}
	for _, id := range others {
		participants = append(participants, models.Participant{UserID: id, Role: models.RoleMember, JoinedAt: now})
	}
	if err := s.chats.CreateChat(chat, participants); err != nil {
		return nil, err
	}

	s.broadcaster.ToAll(events.ChatCreated(chat.ID, chat.Name))
	s.log.Infow("chat created", "chat_id", chat.ID, "type", chat.Type, "owner", callerID)
	return chat, nil
}

// GetChat is a public lookup: any caller may read chat details.
func (s *ChatService) GetChat(chatID uint) (*models.Chat, error) {
	return s.chats.GetChat(chatID)
}

// ChatSummary is a chat-list entry with a last-message preview.
type ChatSummary struct {
	Chat        models.Chat         `json:"chat"`
	LastMessage *LastMessagePreview `json:"last_message,omitempty"`
}

type LastMessagePreview struct {
	ID               uint      `json:"id"`
	SenderID         uint      `json:"sender_id"`
	Text             string    `json:"text"`
	SentAt           time.Time `json:"sent_at"`
	AttachmentsCount int64     `json:"attachments_count"`
}

func (s *ChatService) ListMyChats(callerID uint) ([]ChatSummary, error) {
	chats, err := s.chats.GetChatsForUser(callerID)
	if err != nil {
		return nil, err
	}
	out := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := ChatSummary{Chat: chat}
		last, count, err := s.messages.LastMessage(chat.ID)
		if err == nil {
			summary.LastMessage = &LastMessagePreview{
				ID:               last.ID,
				SenderID:         last.SenderID,
				Text:             last.Text,
				SentAt:           last.SentAt,
				AttachmentsCount: count,
			}
		} else if !apperr.IsNotFound(err) {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// AddParticipant adds a user to a group chat as Member or Admin. Owner is
// never assignable here; ownership moves only via TransferOwnership.
func (s *ChatService) AddParticipant(callerID, chatID, userID uint, role models.Role) error {
	if role == "" {
		role = models.RoleMember
	}
	if role == models.RoleOwner {
		return fmt.Errorf("%w: the owner role can only be granted through ownership transfer", apperr.ErrBadRequest)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", apperr.ErrBadRequest, role)
	}
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat.Type == models.ChatPrivate {
		return fmt.Errorf("%w: participants cannot be added to a private chat", apperr.ErrBadRequest)
	}
	caller, err := s.callerParticipant(chatID, callerID)
	if err != nil {
		return err
	}
	if !auth.CanPerform(auth.ActionAddParticipant, caller.Role, "", false) {
		return fmt.Errorf("%w: only the owner or an admin can add participants", apperr.ErrForbidden)
	}
	if _, err := s.chats.GetParticipant(chatID, userID); err == nil {
		return fmt.Errorf("%w: user is already a participant of this chat", apperr.ErrConflict)
	} else if !apperr.IsNotFound(err) {
		return err
	}

	p := &models.Participant{ChatID: chatID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	if err := s.chats.AddParticipant(p); err != nil {
		return err
	}
	s.broadcaster.ToChat(chatID, events.ParticipantAdded(chatID, userID, role))
	return nil
}

// KickParticipant removes a participant from a group chat.
func (s *ChatService) KickParticipant(callerID, chatID, targetID uint) error {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat.Type == models.ChatPrivate {
		return fmt.Errorf("%w: participants cannot be removed from a private chat", apperr.ErrBadRequest)
	}
	caller, err := s.callerParticipant(chatID, callerID)
	if err != nil {
		return err
	}
	target, err := s.targetParticipant(chatID, targetID)
	if err != nil {
		return err
	}
	if !auth.CanPerform(auth.ActionKickParticipant, caller.Role, target.Role, callerID == targetID) {
		if callerID == targetID {
			return fmt.Errorf("%w: you cannot kick yourself", apperr.ErrForbidden)
		}
		if caller.Role == models.RoleAdmin {
			return fmt.Errorf("%w: admins can only kick members", apperr.ErrForbidden)
		}
		return fmt.Errorf("%w: not enough permission to kick this participant", apperr.ErrForbidden)
	}
	if err := s.chats.RemoveParticipant(chatID, targetID); err != nil {
		return err
	}
	s.broadcaster.ToChat(chatID, events.UserKicked(chatID, targetID))
	return nil
}

// PromoteToAdmin raises a Member to Admin. Owner only; an Admin or the
// Owner is not an eligible target.
func (s *ChatService) PromoteToAdmin(callerID, chatID, targetID uint) error {
	return s.changeRole(callerID, chatID, targetID, auth.ActionPromoteToAdmin, models.RoleAdmin,
		"only the owner can promote participants",
		"only a member can be promoted to admin")
}

// DemoteFromAdmin lowers an Admin back to Member. Owner only.
func (s *ChatService) DemoteFromAdmin(callerID, chatID, targetID uint) error {
	return s.changeRole(callerID, chatID, targetID, auth.ActionDemoteFromAdmin, models.RoleMember,
		"only the owner can demote admins",
		"the target is not an admin")
}

func (s *ChatService) changeRole(callerID, chatID, targetID uint, action auth.Action, newRole models.Role, permMsg, eligibleMsg string) error {
	if _, err := s.chats.GetChat(chatID); err != nil {
		return err
	}
	caller, err := s.callerParticipant(chatID, callerID)
	if err != nil {
		return err
	}
	target, err := s.targetParticipant(chatID, targetID)
	if err != nil {
		return err
	}
	if !auth.CanPerform(action, caller.Role, target.Role, callerID == targetID) {
		if caller.Role != models.RoleOwner {
			return fmt.Errorf("%w: %s", apperr.ErrForbidden, permMsg)
		}
		return fmt.Errorf("%w: %s", apperr.ErrForbidden, eligibleMsg)
	}
	if err := s.chats.UpdateParticipantRole(chatID, targetID, newRole); err != nil {
		return err
	}
	s.broadcaster.ToChat(chatID, events.RoleChanged(chatID))
	return nil
}

// TransferOwnership atomically makes the target Owner and the caller Member.
func (s *ChatService) TransferOwnership(callerID, chatID, newOwnerID uint) error {
	if _, err := s.chats.GetChat(chatID); err != nil {
		return err
	}
	caller, err := s.callerParticipant(chatID, callerID)
	if err != nil {
		return err
	}
	if !auth.CanPerform(auth.ActionTransferOwnership, caller.Role, "", callerID == newOwnerID) {
		if caller.Role != models.RoleOwner {
			return fmt.Errorf("%w: only the owner can transfer ownership", apperr.ErrForbidden)
		}
		return fmt.Errorf("%w: you are already the owner", apperr.ErrBadRequest)
	}
	if _, err := s.targetParticipant(chatID, newOwnerID); err != nil {
		return err
	}
	if err := s.chats.TransferOwnership(chatID, callerID, newOwnerID); err != nil {
		return err
	}
	s.broadcaster.ToChat(chatID, events.OwnershipTransferred(chatID))
	return nil
}

// DeleteChat removes the chat and everything it owns. Owner only.
func (s *ChatService) DeleteChat(callerID, chatID uint) error {
	if _, err := s.chats.GetChat(chatID); err != nil {
		return err
	}
	caller, err := s.callerParticipant(chatID, callerID)
	if err != nil {
		return err
	}
	if !auth.CanPerform(auth.ActionDeleteChat, caller.Role, "", false) {
		return fmt.Errorf("%w: only the owner can delete the chat", apperr.ErrForbidden)
	}
	if err := s.chats.DeleteChat(chatID); err != nil {
		return err
	}
	s.broadcaster.ToChat(chatID, events.ChatDeleted(chatID))
	s.log.Infow("chat deleted", "chat_id", chatID, "by", callerID)
	return nil
}

const maxAvatarDim = 512

// UpdateChatAvatar downscales the uploaded image, stores it through the blob
// store and persists the returned URL. Admin or Owner.
func (s *ChatService) UpdateChatAvatar(ctx context.Context, callerID, chatID uint, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: no file provided", apperr.ErrBadRequest)
	}
	if _, err := s.chats.GetChat(chatID); err != nil {
		return "", err
	}
	caller, err := s.callerParticipant(chatID, callerID)
	if err != nil {
		return "", err
	}
	if !auth.CanPerform(auth.ActionChangeChatAvatar, caller.Role, "", false) {
		return "", fmt.Errorf("%w: only the owner or an admin can change the chat avatar", apperr.ErrForbidden)
	}
	data, err = processAvatar(data, filename)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.Store(ctx, data, filename)
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	if err := s.chats.UpdateAvatar(chatID, url); err != nil {
		return "", err
	}
	s.broadcaster.ToChat(chatID, events.ChatAvatarUpdated(chatID, url))
	return url, nil
}

// IsParticipant reports whether the user currently belongs to the chat.
// Consulted by the realtime layer at group-join time.
func (s *ChatService) IsParticipant(chatID, userID uint) bool {
	_, err := s.chats.GetParticipant(chatID, userID)
	return err == nil
}

// callerParticipant loads the caller's membership row; absence means the
// caller has no standing in the chat at all.
func (s *ChatService) callerParticipant(chatID, callerID uint) (*models.Participant, error) {
	p, err := s.chats.GetParticipant(chatID, callerID)
	if apperr.IsNotFound(err) {
		return nil, fmt.Errorf("%w: you are not a participant of this chat", apperr.ErrForbidden)
	}
	return p, err
}

// targetParticipant loads the target's membership row; a missing target is
// NotFound, not Forbidden.
func (s *ChatService) targetParticipant(chatID, targetID uint) (*models.Participant, error) {
	p, err := s.chats.GetParticipant(chatID, targetID)
	if apperr.IsNotFound(err) {
		return nil, fmt.Errorf("%w: target user is not a participant of this chat", apperr.ErrNotFound)
	}
	return p, err
}

// processAvatar decodes the upload and fits oversized images into a
// maxAvatarDim square, keeping aspect ratio. Non-image uploads are rejected.
func processAvatar(data []byte, filename string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: avatar must be an image", apperr.ErrBadRequest)
	}
	b := img.Bounds()
	if b.Dx() > maxAvatarDim || b.Dy() > maxAvatarDim {
		img = imaging.Fit(img, maxAvatarDim, maxAvatarDim, imaging.Lanczos)
	}
	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		format = imaging.PNG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

func dedupe(ids []uint, exclude uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
