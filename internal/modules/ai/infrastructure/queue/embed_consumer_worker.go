package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"Mano/internal/modules/ai/application/service"
	"Mano/internal/modules/ai/infrastructure/mq"
	myredis "Mano/pkg/redis"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

// 消费侧去重标记的保留时长
const embedDedupTTL = 24 * time.Hour

// EmbedConsumerWorker 消费向量化事件并写入向量库。
// 处理失败返回 error 不提交位点，交给 Kafka 重投；重复投递靠 Redis SetNX 去重。
type EmbedConsumerWorker struct {
	consumer  mq.Consumer
	vectorSvc *service.VectorService
}

func NewEmbedConsumerWorker(consumer mq.Consumer, vectorSvc *service.VectorService) *EmbedConsumerWorker {
	return &EmbedConsumerWorker{
		consumer:  consumer,
		vectorSvc: vectorSvc,
	}
}

func (w *EmbedConsumerWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return errors.New("consumer is nil")
	}
	if w.vectorSvc == nil {
		return errors.New("vector service is nil")
	}
	return w.consumer.Run(ctx, w)
}

func (w *EmbedConsumerWorker) Handle(ctx context.Context, msg mq.Message) error {
	var payload service.EmbedPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		zlog.Warn("embed consumer invalid payload", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}
	if strings.TrimSpace(payload.UserID) == "" || strings.TrimSpace(payload.MessageID) == "" {
		zlog.Warn("embed consumer payload missing user_id/message_id", zap.String("topic", msg.Topic))
		return nil
	}

	dedupKey := strings.TrimSpace(msg.Headers["dedup_key"])
	if dedupKey != "" && myredis.IsConnected() {
		ok, err := myredis.SetNX(ctx, "mano:embed:done:"+dedupKey, 1, embedDedupTTL)
		if err == nil && !ok {
			return nil
		}
	}

	err := w.vectorSvc.StoreEmbedding(ctx, service.StoreEmbeddingRequest{
		UserID:      payload.UserID,
		PersonID:    payload.PersonID,
		TopicID:     payload.TopicID,
		MessageID:   payload.MessageID,
		MessageType: payload.MessageType,
		ContentType: payload.ContentType,
		Content:     payload.Content,
	})
	if err != nil {
		// 释放去重标记，让重投有机会成功
		if dedupKey != "" && myredis.IsConnected() {
			_, _ = myredis.Del(ctx, "mano:embed:done:"+dedupKey)
		}
		zlog.Warn("embed consumer store failed",
			zap.String("message_id", payload.MessageID),
			zap.String("user_id", payload.UserID),
			zap.Error(err))
		return err
	}
	return nil
}
