package persistence

import (
	"context"

	"Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/domain/vector"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationEmbeddingRepository(db *gorm.DB) repository.ConversationEmbeddingRepository {
	return &conversationEmbeddingRepositoryImpl{db: db}
}

func (r *conversationEmbeddingRepositoryImpl) CreateBatch(ctx context.Context, rows []vector.ConversationEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	// 重跑同一条消息时按 vector_id 幂等
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vector_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *conversationEmbeddingRepositoryImpl) DeleteByMessageId(ctx context.Context, userID, messageID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&vector.ConversationEmbedding{}).Error
}
