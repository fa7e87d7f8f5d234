package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
	"github.com/Julfy0228/WebMessenger/internal/auth"
	"github.com/Julfy0228/WebMessenger/internal/events"
	"github.com/Julfy0228/WebMessenger/internal/metrics"
	"github.com/Julfy0228/WebMessenger/internal/models"
	"github.com/Julfy0228/WebMessenger/internal/repository"
	"github.com/Julfy0228/WebMessenger/internal/storage"
)

type MessageService struct {
	chats       repository.ChatRepository
	messages    repository.MessageRepository
	broadcaster events.Broadcaster
	blobs       storage.BlobStore
	log         *zap.SugaredLogger
}

func NewMessageService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	broadcaster events.Broadcaster,
	blobs storage.BlobStore,
	log *zap.SugaredLogger,
) *MessageService {
	return &MessageService{chats: chats, messages: messages, broadcaster: broadcaster, blobs: blobs, log: log}
}

var dataURLPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// Send validates and persists a message with its attachments as one unit.
// Any invalid attachment rejects the whole message; there is never a
// partially attached message.
func (s *MessageService) Send(ctx context.Context, senderID, chatID uint, text string, specs []models.AttachmentSpec) (models.MessageView, error) {
	if len(text) > models.MaxMessageTextLen {
		return models.MessageView{}, fmt.Errorf("%w: message text exceeds %d characters", apperr.ErrBadRequest, models.MaxMessageTextLen)
	}
	if strings.TrimSpace(text) == "" && len(specs) == 0 {
		return models.MessageView{}, fmt.Errorf("%w: message needs text or at least one attachment", apperr.ErrBadRequest)
	}
	if _, err := s.chats.GetChat(chatID); err != nil {
		return models.MessageView{}, err
	}
	if _, err := s.chats.GetParticipant(chatID, senderID); err != nil {
		if apperr.IsNotFound(err) {
			return models.MessageView{}, fmt.Errorf("%w: you are not a participant of this chat", apperr.ErrForbidden)
		}
		return models.MessageView{}, err
	}

	rows := make([]models.AttachmentRow, 0, len(specs))
	for i, spec := range specs {
		spec, err := s.materialize(ctx, spec)
		if err != nil {
			return models.MessageView{}, fmt.Errorf("attachment %d: %w", i, err)
		}
		a, err := spec.Build()
		if err != nil {
			return models.MessageView{}, fmt.Errorf("attachment %d: %w", i, err)
		}
		rows = append(rows, models.ToRow(a))
	}

	msg := &models.Message{ChatID: chatID, SenderID: senderID, Text: text, SentAt: time.Now().UTC()}
	if err := s.messages.CreateWithAttachments(msg, rows); err != nil {
		return models.MessageView{}, err
	}
	view, err := models.NewMessageView(*msg)
	if err != nil {
		return models.MessageView{}, err
	}

	metrics.MessagesSent.Inc()
	s.broadcaster.ToChat(chatID, events.MessageSent(view))
	return view, nil
}

// Edit updates the text of the caller's own message; attachments are
// untouched.
func (s *MessageService) Edit(senderID, messageID uint, newText string) (models.MessageView, error) {
	if newText == "" || len(newText) > models.MaxMessageTextLen {
		return models.MessageView{}, fmt.Errorf("%w: message text must be 1-%d characters", apperr.ErrBadRequest, models.MaxMessageTextLen)
	}
	msg, err := s.messages.GetMessage(messageID)
	if err != nil {
		return models.MessageView{}, err
	}
	if !auth.CanPerform(auth.ActionEditMessage, "", "", msg.SenderID == senderID) {
		return models.MessageView{}, fmt.Errorf("%w: only the sender can edit a message", apperr.ErrForbidden)
	}
	editedAt := time.Now().UTC()
	if err := s.messages.UpdateText(messageID, newText, editedAt); err != nil {
		return models.MessageView{}, err
	}
	msg.Text = newText
	msg.EditedAt = &editedAt
	view, err := models.NewMessageView(*msg)
	if err != nil {
		return models.MessageView{}, err
	}
	s.broadcaster.ToChat(msg.ChatID, events.MessageEdited(messageID, newText, editedAt))
	return view, nil
}

// Delete removes a message. Allowed for the sender, or for an Admin/Owner
// of the message's chat. The sender keeps the right even after leaving the
// chat.
func (s *MessageService) Delete(callerID, messageID uint) error {
	msg, err := s.messages.GetMessage(messageID)
	if err != nil {
		return err
	}
	isSender := msg.SenderID == callerID
	var role models.Role
	if p, err := s.chats.GetParticipant(msg.ChatID, callerID); err == nil {
		role = p.Role
	} else if !apperr.IsNotFound(err) {
		return err
	}
	if !auth.CanPerform(auth.ActionDeleteMessage, role, "", isSender) {
		return fmt.Errorf("%w: not enough permission to delete this message", apperr.ErrForbidden)
	}
	if err := s.messages.Delete(messageID); err != nil {
		return err
	}
	s.broadcaster.ToChat(msg.ChatID, events.MessageDeleted(messageID))
	return nil
}

// List returns the chat's messages in send order. Participants only.
func (s *MessageService) List(callerID, chatID uint) ([]models.MessageView, error) {
	if _, err := s.chats.GetChat(chatID); err != nil {
		return nil, err
	}
	if _, err := s.chats.GetParticipant(chatID, callerID); err != nil {
		if apperr.IsNotFound(err) {
			return nil, fmt.Errorf("%w: you are not a participant of this chat", apperr.ErrForbidden)
		}
		return nil, err
	}
	msgs, err := s.messages.ListByChat(chatID)
	if err != nil {
		return nil, err
	}
	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v, err := models.NewMessageView(m)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// MarkRead flips the read flag. Participants only; not broadcast.
func (s *MessageService) MarkRead(callerID, messageID uint) error {
	msg, err := s.messages.GetMessage(messageID)
	if err != nil {
		return err
	}
	if _, err := s.chats.GetParticipant(msg.ChatID, callerID); err != nil {
		if apperr.IsNotFound(err) {
			return fmt.Errorf("%w: you are not a participant of this chat", apperr.ErrForbidden)
		}
		return err
	}
	return s.messages.MarkRead(messageID, time.Now().UTC())
}

// materialize turns an inline data: URL into a durable blob-store URL. A
// malformed inline payload rejects the attachment (and with it the whole
// message).
func (s *MessageService) materialize(ctx context.Context, spec models.AttachmentSpec) (models.AttachmentSpec, error) {
	if !strings.HasPrefix(spec.URL, "data:") {
		return spec, nil
	}
	m := dataURLPattern.FindStringSubmatch(spec.URL)
	if m == nil {
		return spec, fmt.Errorf("%w: malformed data url", apperr.ErrBadRequest)
	}
	payload, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return spec, fmt.Errorf("%w: invalid base64 payload", apperr.ErrBadRequest)
	}
	name := spec.Name
	if name == "" {
		name = "blob" + extensionFor(m[1])
	}
	url, err := s.blobs.Store(ctx, payload, name)
	if err != nil {
		return spec, fmt.Errorf("store attachment: %w", err)
	}
	spec.URL = url
	spec.Size = int64(len(payload))
	return spec, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	case "audio/mpeg":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
