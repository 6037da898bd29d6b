package repository

import (
	"context"

	"Mano/internal/modules/chat/domain/entity"
)

// MessageFileRepository 消息附件仓储
type MessageFileRepository interface {
	Create(ctx context.Context, file *entity.MessageFile) error
	GetByFileId(ctx context.Context, userID, fileID string) (*entity.MessageFile, error)
	ListByMessageId(ctx context.Context, userID, messageID string) ([]entity.MessageFile, error)
	UpdateProcessing(ctx context.Context, fileID, status, extractedContent string) error
}
