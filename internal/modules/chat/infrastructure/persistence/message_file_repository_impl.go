package persistence

import (
	"context"
	"time"

	"Mano/internal/modules/chat/domain/entity"
	"Mano/internal/modules/chat/domain/repository"

	"gorm.io/gorm"
)

type messageFileRepositoryImpl struct {
	db *gorm.DB
}

// NewMessageFileRepository 构造函数
func NewMessageFileRepository(db *gorm.DB) repository.MessageFileRepository {
	return &messageFileRepositoryImpl{db: db}
}

func (r *messageFileRepositoryImpl) Create(ctx context.Context, file *entity.MessageFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *messageFileRepositoryImpl) GetByFileId(ctx context.Context, userID, fileID string) (*entity.MessageFile, error) {
	var file entity.MessageFile
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND file_id = ?", userID, fileID).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *messageFileRepositoryImpl) ListByMessageId(ctx context.Context, userID, messageID string) ([]entity.MessageFile, error) {
	var files []entity.MessageFile
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Order("created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *messageFileRepositoryImpl) UpdateProcessing(ctx context.Context, fileID, status, extractedContent string) error {
	updates := map[string]interface{}{
		"processing_status": status,
		"updated_at":        time.Now(),
	}
	if extractedContent != "" {
		updates["extracted_content"] = extractedContent
	}
	return r.db.WithContext(ctx).
		Model(&entity.MessageFile{}).
		Where("file_id = ?", fileID).
		Updates(updates).Error
}
