package api

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
	"github.com/Julfy0228/WebMessenger/internal/identity"
	"github.com/Julfy0228/WebMessenger/internal/models"
	"github.com/Julfy0228/WebMessenger/internal/service"
)

type Handlers struct {
	chats    *service.ChatService
	messages *service.MessageService
	users    identity.Directory
	log      *zap.SugaredLogger
}

func NewHandlers(chats *service.ChatService, messages *service.MessageService, users identity.Directory, log *zap.SugaredLogger) *Handlers {
	return &Handlers{chats: chats, messages: messages, users: users, log: log}
}

type createChatRequest struct {
	Name           string          `json:"name"`
	Type           models.ChatType `json:"type"`
	ParticipantIDs []uint          `json:"participant_ids"`
}

type addParticipantRequest struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
}

type chatActionRequest struct {
	UserID uint `json:"user_id"`
}

type transferOwnerRequest struct {
	NewOwnerID uint `json:"new_owner_id"`
}

type sendMessageRequest struct {
	Text        string                  `json:"text"`
	Attachments []models.AttachmentSpec `json:"attachments"`
}

type editMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handlers) CreateChat(c *fiber.Ctx) error {
	var req createChatRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	chat, err := h.chats.CreateChat(callerID(c), req.Name, req.Type, req.ParticipantIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.chatResponse(c, chat))
}

func (h *Handlers) GetChat(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	chat, err := h.chats.GetChat(uint(id))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.chatResponse(c, chat))
}

func (h *Handlers) ListMyChats(c *fiber.Ctx) error {
	summaries, err := h.chats.ListMyChats(callerID(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]fiber.Map, 0, len(summaries))
	for _, s := range summaries {
		entry := fiber.Map{"chat": h.chatResponse(c, &s.Chat)}
		if s.LastMessage != nil {
			entry["last_message"] = s.LastMessage
		}
		out = append(out, entry)
	}
	return c.JSON(out)
}

func (h *Handlers) AddParticipant(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	var req addParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	if err := h.chats.AddParticipant(callerID(c), uint(id), req.UserID, req.Role); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"chat_id": id, "user_id": req.UserID})
}

func (h *Handlers) KickParticipant(c *fiber.Ctx) error {
	return h.chatAction(c, h.chats.KickParticipant)
}

func (h *Handlers) PromoteToAdmin(c *fiber.Ctx) error {
	return h.chatAction(c, h.chats.PromoteToAdmin)
}

func (h *Handlers) DemoteFromAdmin(c *fiber.Ctx) error {
	return h.chatAction(c, h.chats.DemoteFromAdmin)
}

func (h *Handlers) chatAction(c *fiber.Ctx, fn func(callerID, chatID, targetID uint) error) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	var req chatActionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	if err := fn(callerID(c), uint(id), req.UserID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) TransferOwnership(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	var req transferOwnerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	if err := h.chats.TransferOwnership(callerID(c), uint(id), req.NewOwnerID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) DeleteChat(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	if err := h.chats.DeleteChat(callerID(c), uint(id)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

func (h *Handlers) UpdateChatAvatar(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	url, err := h.chats.UpdateChatAvatar(c.Context(), callerID(c), uint(id), data, fh.Filename)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"avatar_url": url})
}

func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	view, err := h.messages.Send(c.Context(), callerID(c), uint(id), req.Text, req.Attachments)
	if err != nil {
		return respondError(c, err)
	}
	h.enrichMessage(c, &view)
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	views, err := h.messages.List(callerID(c), uint(id))
	if err != nil {
		return respondError(c, err)
	}
	for i := range views {
		h.enrichMessage(c, &views[i])
	}
	return c.JSON(views)
}

func (h *Handlers) EditMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	var req editMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.ErrBadRequest)
	}
	view, err := h.messages.Edit(callerID(c), uint(id), req.Text)
	if err != nil {
		return respondError(c, err)
	}
	h.enrichMessage(c, &view)
	return c.JSON(view)
}

func (h *Handlers) DeleteMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	if err := h.messages.Delete(callerID(c), uint(id)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted", "message_id": id})
}

func (h *Handlers) MarkMessageRead(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, apperr.ErrBadRequest)
	}
	if err := h.messages.MarkRead(callerID(c), uint(id)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

type participantResponse struct {
	UserID      uint        `json:"user_id"`
	UserName    string      `json:"user_name,omitempty"`
	DisplayName string      `json:"display_name,omitempty"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
	Role        models.Role `json:"role"`
	IsMuted     bool        `json:"is_muted"`
}

type chatResponse struct {
	ID           uint                  `json:"id"`
	Name         string                `json:"name"`
	Type         models.ChatType       `json:"type"`
	AvatarURL    string                `json:"avatar_url,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	Participants []participantResponse `json:"participants"`
}

// chatResponse enriches participants with user projections from the
// identity directory; unknown users fall back to the bare id.
func (h *Handlers) chatResponse(c *fiber.Ctx, chat *models.Chat) chatResponse {
	ids := make([]uint, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		ids = append(ids, p.UserID)
	}
	users, err := h.users.Lookup(c.Context(), ids)
	if err != nil {
		h.log.Warnw("identity lookup failed", "err", err)
		users = nil
	}
	resp := chatResponse{
		ID:        chat.ID,
		Name:      chat.Name,
		Type:      chat.Type,
		AvatarURL: chat.AvatarURL,
		CreatedAt: chat.CreatedAt,
	}
	for _, p := range chat.Participants {
		pr := participantResponse{UserID: p.UserID, Role: p.Role, IsMuted: p.IsMuted}
		if u, ok := users[p.UserID]; ok {
			pr.UserName = u.UserName
			pr.DisplayName = u.DisplayName
			pr.AvatarURL = u.AvatarURL
		}
		resp.Participants = append(resp.Participants, pr)
	}
	return resp
}

func (h *Handlers) enrichMessage(c *fiber.Ctx, view *models.MessageView) {
	users, err := h.users.Lookup(c.Context(), []uint{view.SenderID})
	if err != nil {
		return
	}
	if u, ok := users[view.SenderID]; ok {
		view.SenderName = u.UserName
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case apperr.IsUnauthenticated(err):
		status = fiber.StatusUnauthorized
	case apperr.IsNotFound(err):
		status = fiber.StatusNotFound
	case apperr.IsForbidden(err):
		status = fiber.StatusForbidden
	case apperr.IsConflict(err):
		status = fiber.StatusConflict
	case apperr.IsBadRequest(err):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
