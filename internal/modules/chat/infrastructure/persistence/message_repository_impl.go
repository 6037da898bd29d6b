package persistence

import (
	"context"
	"time"

	"Mano/internal/modules/chat/domain/entity"
	"Mano/internal/modules/chat/domain/repository"

	"gorm.io/gorm"
)

type messageRepositoryImpl struct {
	db *gorm.DB
}

// NewMessageRepository 构造函数
func NewMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &messageRepositoryImpl{db: db}
}

func (r *messageRepositoryImpl) Create(ctx context.Context, msg *entity.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepositoryImpl) GetByMessageId(ctx context.Context, userID, messageID string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepositoryImpl) ListByPerson(ctx context.Context, userID, personID string, limit int) ([]entity.Message, error) {
	return r.listByTarget(ctx, userID, "person_id", personID, limit)
}

func (r *messageRepositoryImpl) ListByTopic(ctx context.Context, userID, topicID string, limit int) ([]entity.Message, error) {
	return r.listByTarget(ctx, userID, "topic_id", topicID, limit)
}

// listByTarget 取最近 limit 条再反转，保证结果按时间正序
func (r *messageRepositoryImpl) listByTarget(ctx context.Context, userID, column, targetID string, limit int) ([]entity.Message, error) {
	var msgs []entity.Message
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND "+column+" = ?", userID, targetID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepositoryImpl) FindRecentUserMessage(ctx context.Context, userID, personID, topicID, content string, since time.Time) (*entity.Message, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND is_user = ? AND content = ? AND created_at >= ?", userID, true, content, since)
	if personID != "" {
		q = q.Where("person_id = ?", personID)
	}
	if topicID != "" {
		q = q.Where("topic_id = ?", topicID)
	}
	var msg entity.Message
	err := q.Order("created_at DESC").First(&msg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}
