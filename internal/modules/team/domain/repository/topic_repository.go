package repository

import (
	"context"

	"Mano/internal/modules/team/domain/entity"
)

// TopicRepository 话题仓储
type TopicRepository interface {
	Create(ctx context.Context, topic *entity.Topic) error
	GetByTopicId(ctx context.Context, userID, topicID string) (*entity.Topic, error)
	ListByUserId(ctx context.Context, userID string) ([]entity.Topic, error)
	UpdateStatus(ctx context.Context, userID, topicID, status string) error
	// EnsureTopic 按 (user_id, title) 幂等获取或创建，返回落库的那一行
	EnsureTopic(ctx context.Context, topic *entity.Topic) (*entity.Topic, error)
	AddParticipants(ctx context.Context, topicID string, personIDs []string) error
	ListParticipants(ctx context.Context, topicID string) ([]string, error)
}
