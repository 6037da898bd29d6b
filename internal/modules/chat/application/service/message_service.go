package service

import (
	"context"
	"time"

	"Mano/internal/modules/chat/application/dto/request"
	"Mano/internal/modules/chat/application/dto/respond"
	"Mano/internal/modules/chat/domain/entity"
	"Mano/internal/modules/chat/domain/repository"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

// MessageService 会话历史查询服务
type MessageService interface {
	GetMessageList(ctx context.Context, userID string, req request.GetMessageListRequest) ([]respond.MessageItem, error)
	GetMessageFiles(ctx context.Context, userID string, req request.GetMessageFilesRequest) ([]respond.MessageFileItem, error)
}

type messageServiceImpl struct {
	msgRepo  repository.MessageRepository
	fileRepo repository.MessageFileRepository
}

// NewMessageService 构造函数
func NewMessageService(msgRepo repository.MessageRepository, fileRepo repository.MessageFileRepository) MessageService {
	return &messageServiceImpl{msgRepo: msgRepo, fileRepo: fileRepo}
}

func (s *messageServiceImpl) GetMessageList(ctx context.Context, userID string, req request.GetMessageListRequest) ([]respond.MessageItem, error) {
	if (req.PersonId == "") == (req.TopicId == "") {
		return nil, xerr.New(xerr.BadRequest, "exactly one of personId and topicId is required")
	}

	var (
		msgs []entity.Message
		err  error
	)
	if req.PersonId != "" {
		msgs, err = s.msgRepo.ListByPerson(ctx, userID, req.PersonId, req.Limit)
	} else {
		msgs, err = s.msgRepo.ListByTopic(ctx, userID, req.TopicId, req.Limit)
	}
	if err != nil {
		zlog.Error("list messages failed", zap.String("userID", userID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	items := make([]respond.MessageItem, 0, len(msgs))
	for i := range msgs {
		items = append(items, ToMessageItem(&msgs[i]))
	}
	return items, nil
}

func (s *messageServiceImpl) GetMessageFiles(ctx context.Context, userID string, req request.GetMessageFilesRequest) ([]respond.MessageFileItem, error) {
	files, err := s.fileRepo.ListByMessageId(ctx, userID, req.MessageId)
	if err != nil {
		zlog.Error("list message files failed", zap.String("messageID", req.MessageId), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	items := make([]respond.MessageFileItem, 0, len(files))
	for i := range files {
		f := &files[i]
		item := respond.MessageFileItem{
			FileId:           f.FileId,
			MessageId:        f.MessageId,
			OriginalName:     f.OriginalName,
			FileType:         f.FileType,
			ContentType:      f.ContentType,
			ProcessingStatus: f.ProcessingStatus,
		}
		if f.ProcessingStatus == entity.FileStatusCompleted {
			item.ExtractedContent = f.ExtractedContent
		}
		items = append(items, item)
	}
	return items, nil
}

// ToMessageItem 实体转响应 DTO
func ToMessageItem(m *entity.Message) respond.MessageItem {
	item := respond.MessageItem{
		MessageId: m.MessageId,
		Content:   m.Content,
		IsUser:    m.IsUser,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if m.PersonId.Valid {
		item.PersonId = m.PersonId.String
	}
	if m.TopicId.Valid {
		item.TopicId = m.TopicId.String
	}
	return item
}
