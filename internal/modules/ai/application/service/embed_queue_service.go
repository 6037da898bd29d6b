package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/domain/vector"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

// EmbedPayload outbox 与 Kafka 消息共用的载荷结构
type EmbedPayload struct {
	UserID      string `json:"user_id"`
	PersonID    string `json:"person_id,omitempty"`
	TopicID     string `json:"topic_id,omitempty"`
	MessageID   string `json:"message_id"`
	MessageType string `json:"message_type"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// EmbedQueueService 向量化任务入队。
// 正常路径写 outbox 由 relay 发往 Kafka；Kafka 未配置时退化为进程内异步处理。
type EmbedQueueService struct {
	eventRepo    repository.EmbedEventRepository
	vectorSvc    *VectorService
	kafkaEnabled bool
}

func NewEmbedQueueService(eventRepo repository.EmbedEventRepository, vectorSvc *VectorService, kafkaEnabled bool) *EmbedQueueService {
	return &EmbedQueueService{
		eventRepo:    eventRepo,
		vectorSvc:    vectorSvc,
		kafkaEnabled: kafkaEnabled,
	}
}

// Enqueue 幂等入队一条向量化任务；失败只记日志，不影响聊天主链路
func (s *EmbedQueueService) Enqueue(ctx context.Context, req StoreEmbeddingRequest) {
	if s == nil || strings.TrimSpace(req.Content) == "" {
		return
	}
	if req.UserID == "" || req.MessageID == "" {
		zlog.Warn("向量化入队缺少 userID/messageID", zap.String("messageID", req.MessageID))
		return
	}
	if req.MessageType == "" {
		req.MessageType = vector.MessageTypeUser
	}
	if req.ContentType == "" {
		req.ContentType = vector.ContentTypeMessage
	}

	payload := EmbedPayload{
		UserID:      req.UserID,
		PersonID:    req.PersonID,
		TopicID:     req.TopicID,
		MessageID:   req.MessageID,
		MessageType: req.MessageType,
		ContentType: req.ContentType,
		Content:     req.Content,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		zlog.Error("向量化载荷序列化失败", zap.String("messageID", req.MessageID), zap.Error(err))
		return
	}

	now := time.Now()
	ev := &vector.EmbedEvent{
		UserId:      req.UserID,
		PayloadJson: string(b),
		DedupKey:    embedDedupKey(req.UserID, req.MessageID, req.ContentType),
		Status:      vector.EmbedEventStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if s.eventRepo != nil {
		if err := s.eventRepo.Enqueue(ctx, ev); err != nil {
			zlog.Error("向量化任务入队失败", zap.String("messageID", req.MessageID), zap.Error(err))
			return
		}
		// OnConflict DoNothing 时主键不回填，说明是重复任务
		if ev.Id == 0 {
			return
		}
	}

	if !s.kafkaEnabled {
		s.processLocally(ev.Id, req)
	}
}

// processLocally Kafka 缺席时的进程内兜底，脱离请求生命周期执行
func (s *EmbedQueueService) processLocally(eventID int64, req StoreEmbeddingRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		err := s.vectorSvc.StoreEmbedding(ctx, req)
		if s.eventRepo != nil && eventID > 0 {
			if err != nil {
				_ = s.eventRepo.MarkPublishFailed(ctx, eventID, time.Now().Add(time.Minute), err.Error())
			} else {
				_ = s.eventRepo.MarkPublished(ctx, eventID)
			}
		}
		if err != nil {
			zlog.Warn("进程内向量化失败", zap.String("messageID", req.MessageID), zap.Error(err))
		}
	}()
}

func embedDedupKey(userID, messageID, contentType string) string {
	raw := strings.TrimSpace(userID) + "|" + strings.TrimSpace(messageID) + "|" + strings.TrimSpace(contentType)
	sum := sha256.Sum256([]byte(raw))
	return "emb_" + hex.EncodeToString(sum[:])
}
