package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
	"github.com/Julfy0228/WebMessenger/internal/models"
)

type MessageRepository interface {
	CreateWithAttachments(msg *models.Message, attachments []models.AttachmentRow) error
	GetMessage(id uint) (*models.Message, error)
	ListByChat(chatID uint) ([]models.Message, error)
	LastMessage(chatID uint) (*models.Message, int64, error)
	UpdateText(id uint, text string, editedAt time.Time) error
	MarkRead(id uint, at time.Time) error
	Delete(id uint) error
}

type SQLMessageRepository struct {
	db *gorm.DB
}

func NewSQLMessageRepository(db *gorm.DB) *SQLMessageRepository {
	return &SQLMessageRepository{db: db}
}

// CreateWithAttachments persists the message and its attachments as one
// unit. Attachment positions record submission order.
func (r *SQLMessageRepository) CreateWithAttachments(msg *models.Message, attachments []models.AttachmentRow) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return translate(err)
		}
		for i := range attachments {
			attachments[i].MessageID = msg.ID
			attachments[i].Position = i
			if err := tx.Create(&attachments[i]).Error; err != nil {
				return translate(err)
			}
		}
		msg.Attachments = attachments
		return nil
	})
}

func (r *SQLMessageRepository) GetMessage(id uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&msg, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (r *SQLMessageRepository) ListByChat(chatID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("chat_id = ?", chatID).Order("sent_at ASC, id ASC").Find(&msgs).Error
	return msgs, translate(err)
}

// LastMessage returns the newest message of a chat and its attachment count
// for chat-list previews.
func (r *SQLMessageRepository) LastMessage(chatID uint) (*models.Message, int64, error) {
	var msg models.Message
	err := r.db.Where("chat_id = ?", chatID).Order("sent_at DESC, id DESC").First(&msg).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	var n int64
	if err := r.db.Model(&models.AttachmentRow{}).Where("message_id = ?", msg.ID).Count(&n).Error; err != nil {
		return nil, 0, translate(err)
	}
	return &msg, n, nil
}

func (r *SQLMessageRepository) UpdateText(id uint, text string, editedAt time.Time) error {
	res := r.db.Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{"text": text, "edited_at": editedAt})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *SQLMessageRepository) MarkRead(id uint, at time.Time) error {
	res := r.db.Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Delete removes the message and its attachments together.
func (r *SQLMessageRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&models.AttachmentRow{}).Error; err != nil {
			return translate(err)
		}
		res := tx.Delete(&models.Message{}, id)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
}
