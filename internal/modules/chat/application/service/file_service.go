package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"Mano/internal/modules/chat/application/dto/respond"
	"Mano/internal/modules/chat/domain/entity"
	"Mano/internal/modules/chat/domain/repository"
	"Mano/pkg/util"
	"Mano/pkg/ws"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

// FileService 附件上传与异步文本提取
type FileService interface {
	// UploadFile 先落一条 pending 记录立即返回，文本提取由后台协程完成
	UploadFile(ctx context.Context, userID, messageID, originalName, contentType string, data []byte) (*respond.UploadFileRespond, error)
}

type fileServiceImpl struct {
	fileRepo repository.MessageFileRepository
	hub      *ws.Hub
}

// NewFileService 构造函数，hub 可为 nil（不广播）
func NewFileService(fileRepo repository.MessageFileRepository, hub *ws.Hub) FileService {
	return &fileServiceImpl{fileRepo: fileRepo, hub: hub}
}

func (s *fileServiceImpl) UploadFile(ctx context.Context, userID, messageID, originalName, contentType string, data []byte) (*respond.UploadFileRespond, error) {
	now := time.Now()
	file := entity.MessageFile{
		FileId:           util.GenerateID("F"),
		MessageId:        messageID,
		UserId:           userID,
		OriginalName:     originalName,
		FileType:         fileTypeOf(originalName),
		ContentType:      contentType,
		ProcessingStatus: entity.FileStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.fileRepo.Create(ctx, &file); err != nil {
		zlog.Error("create message file failed", zap.String("messageID", messageID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	// 提取不阻塞上传请求，独立协程自带日志通道
	go s.extract(file.FileId, userID, contentType, data)

	return &respond.UploadFileRespond{
		FileId:           file.FileId,
		MessageId:        file.MessageId,
		ProcessingStatus: file.ProcessingStatus,
	}, nil
}

func (s *fileServiceImpl) extract(fileID, userID, contentType string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.fileRepo.UpdateProcessing(ctx, fileID, entity.FileStatusProcessing, ""); err != nil {
		zlog.Error("mark file processing failed", zap.String("fileID", fileID), zap.Error(err))
		return
	}

	status := entity.FileStatusFailed
	content := ""
	if isTextContent(contentType, data) {
		content = string(data)
		status = entity.FileStatusCompleted
	}

	if err := s.fileRepo.UpdateProcessing(ctx, fileID, status, content); err != nil {
		zlog.Error("finish file processing failed", zap.String("fileID", fileID), zap.Error(err))
		return
	}

	if s.hub != nil {
		_ = s.hub.Broadcast(userID, ws.Event{
			Type: ws.EventFileProcessed,
			Data: map[string]string{"fileId": fileID, "status": status},
		})
	}
}

func isTextContent(contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "xml") ||
		strings.Contains(ct, "csv") {
		return utf8.Valid(data)
	}
	return false
}

func fileTypeOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
