package repository

import (
	"context"
	"time"

	"Mano/internal/modules/chat/domain/entity"
)

// MessageRepository 消息仓储
type MessageRepository interface {
	Create(ctx context.Context, msg *entity.Message) error
	GetByMessageId(ctx context.Context, userID, messageID string) (*entity.Message, error)
	// ListByPerson 按时间正序加载某成员会话的历史
	ListByPerson(ctx context.Context, userID, personID string, limit int) ([]entity.Message, error)
	// ListByTopic 按时间正序加载某话题会话的历史
	ListByTopic(ctx context.Context, userID, topicID string, limit int) ([]entity.Message, error)
	// FindRecentUserMessage 在回看窗口内查找客户端乐观写入的用户消息，避免重复落库
	FindRecentUserMessage(ctx context.Context, userID, personID, topicID, content string, since time.Time) (*entity.Message, error)
}
