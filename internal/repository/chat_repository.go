package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
	"github.com/Julfy0228/WebMessenger/internal/models"
)

// ChatRepository is the membership store: chats plus (chat, user, role)
// tuples.
type ChatRepository interface {
	CreateChat(chat *models.Chat, participants []models.Participant) error
	GetChat(id uint) (*models.Chat, error)
	GetChatsForUser(userID uint) ([]models.Chat, error)
	FindPrivateChatBetween(a, b uint) (*models.Chat, error)
	DeleteChat(id uint) error
	UpdateAvatar(chatID uint, url string) error

	GetParticipant(chatID, userID uint) (*models.Participant, error)
	AddParticipant(p *models.Participant) error
	RemoveParticipant(chatID, userID uint) error
	UpdateParticipantRole(chatID, userID uint, role models.Role) error
	TransferOwnership(chatID, fromUserID, toUserID uint) error
	CountOwners(chatID uint) (int64, error)
}

type SQLChatRepository struct {
	db *gorm.DB
}

func NewSQLChatRepository(db *gorm.DB) *SQLChatRepository {
	return &SQLChatRepository{db: db}
}

// CreateChat inserts the chat row and its initial participants as one
// transaction; the one-Owner invariant holds from the first commit.
func (r *SQLChatRepository) CreateChat(chat *models.Chat, participants []models.Participant) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return translate(err)
		}
		for i := range participants {
			participants[i].ChatID = chat.ID
			if err := tx.Create(&participants[i]).Error; err != nil {
				return translate(err)
			}
		}
		chat.Participants = participants
		return nil
	})
}

func (r *SQLChatRepository) GetChat(id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.Preload("Participants").First(&chat, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &chat, nil
}

func (r *SQLChatRepository) GetChatsForUser(userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.
		Joins("JOIN participants ON participants.chat_id = chats.id AND participants.user_id = ?", userID).
		Preload("Participants").
		Order("chats.created_at DESC").
		Find(&chats).Error
	return chats, translate(err)
}

// FindPrivateChatBetween returns the private chat containing both users, or
// ErrNotFound. The pair is unordered; at most one such chat can exist.
func (r *SQLChatRepository) FindPrivateChatBetween(a, b uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.
		Joins("JOIN participants p1 ON p1.chat_id = chats.id AND p1.user_id = ?", a).
		Joins("JOIN participants p2 ON p2.chat_id = chats.id AND p2.user_id = ?", b).
		Where("chats.type = ?", models.ChatPrivate).
		Preload("Participants").
		First(&chat).Error
	if err != nil {
		return nil, translate(err)
	}
	return &chat, nil
}

// DeleteChat cascades through participants, messages and attachments in one
// transaction.
func (r *SQLChatRepository) DeleteChat(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var messageIDs []uint
		if err := tx.Model(&models.Message{}).Where("chat_id = ?", id).Pluck("id", &messageIDs).Error; err != nil {
			return translate(err)
		}
		if len(messageIDs) > 0 {
			if err := tx.Where("message_id IN ?", messageIDs).Delete(&models.AttachmentRow{}).Error; err != nil {
				return translate(err)
			}
		}
		if err := tx.Where("chat_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("chat_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return translate(err)
		}
		res := tx.Delete(&models.Chat{}, id)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
}

func (r *SQLChatRepository) UpdateAvatar(chatID uint, url string) error {
	res := r.db.Model(&models.Chat{}).Where("id = ?", chatID).Update("avatar_url", url)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *SQLChatRepository) GetParticipant(chatID, userID uint) (*models.Participant, error) {
	var p models.Participant
	err := r.db.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *SQLChatRepository) AddParticipant(p *models.Participant) error {
	return translate(r.db.Create(p).Error)
}

func (r *SQLChatRepository) RemoveParticipant(chatID, userID uint) error {
	res := r.db.Where("chat_id = ? AND user_id = ?", chatID, userID).Delete(&models.Participant{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *SQLChatRepository) UpdateParticipantRole(chatID, userID uint, role models.Role) error {
	res := r.db.Model(&models.Participant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("role", role)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// TransferOwnership demotes the current owner and promotes the target in a
// single transaction. The owner check is re-done inside the transaction so a
// concurrent transfer cannot produce two owners.
func (r *SQLChatRepository) TransferOwnership(chatID, fromUserID, toUserID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var caller models.Participant
		if err := tx.Where("chat_id = ? AND user_id = ?", chatID, fromUserID).First(&caller).Error; err != nil {
			return translate(err)
		}
		if caller.Role != models.RoleOwner {
			return fmt.Errorf("%w: only the owner can transfer ownership", apperr.ErrForbidden)
		}
		var target models.Participant
		if err := tx.Where("chat_id = ? AND user_id = ?", chatID, toUserID).First(&target).Error; err != nil {
			return translate(err)
		}
		if err := tx.Model(&caller).Update("role", models.RoleMember).Error; err != nil {
			return translate(err)
		}
		return translate(tx.Model(&target).Update("role", models.RoleOwner).Error)
	})
}

func (r *SQLChatRepository) CountOwners(chatID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.Participant{}).
		Where("chat_id = ? AND role = ?", chatID, models.RoleOwner).
		Count(&n).Error
	return n, translate(err)
}
