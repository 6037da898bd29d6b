package repository

import (
	"context"
	"time"

	"Mano/internal/modules/ai/domain/vector"
)

// EmbedEventRepository 向量化 outbox 仓储
type EmbedEventRepository interface {
	// Enqueue 按 dedup_key 幂等入队
	Enqueue(ctx context.Context, ev *vector.EmbedEvent) error
	GetByID(ctx context.Context, id int64) (*vector.EmbedEvent, error)
	// ClaimForPublish 取一批待发布事件（pending 或到了重试时间的 failed）
	ClaimForPublish(ctx context.Context, now time.Time, limit int) ([]vector.EmbedEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkPublishFailed(ctx context.Context, id int64, nextRetryAt time.Time, errMsg string) error
}

// ConversationEmbeddingRepository 向量台账仓储
type ConversationEmbeddingRepository interface {
	CreateBatch(ctx context.Context, rows []vector.ConversationEmbedding) error
	DeleteByMessageId(ctx context.Context, userID, messageID string) error
}
