package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"Mano/internal/modules/ai/application/dto/request"
	"Mano/internal/modules/ai/application/service"
	"Mano/internal/modules/ai/infrastructure/pipeline"
	"Mano/pkg/back"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatStreamHandler struct {
	chatSvc *service.ChatStreamService
}

func NewChatStreamHandler(chatSvc *service.ChatStreamService) *ChatStreamHandler {
	return &ChatStreamHandler{chatSvc: chatSvc}
}

// ChatStream POST /chat/stream
// 流开始前的失败走普通 JSON 错误响应；流开始后的失败只通过带内 error 帧传达。
func (h *ChatStreamHandler) ChatStream(c *gin.Context) {
	var req request.ChatStreamRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	userID := c.GetString("uuid")
	if userID == "" {
		back.Error(c, xerr.Unauthorized, xerr.ErrUnauthorized.Message)
		return
	}

	events, err := h.chatSvc.ChatStream(c.Request.Context(), &pipeline.ChatRequest{
		UserID:              userID,
		PersonID:            req.PersonId,
		Message:             req.Message,
		TopicID:             req.TopicId,
		HasFiles:            req.HasFiles,
		IsTopicConversation: req.IsTopicConversation,
		TopicTitle:          req.TopicTitle,
	})
	if err != nil {
		back.Result(c, nil, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	clientGone := c.Request.Context().Done()

	for evt := range events {
		b, mErr := json.Marshal(evt)
		if mErr != nil {
			zlog.Error("SSE 帧序列化失败", zap.Error(mErr))
			continue
		}
		select {
		case <-clientGone:
			// 客户端断开后只消费完通道让上游 goroutine 退出，不再写出
			continue
		default:
		}
		if _, wErr := fmt.Fprintf(c.Writer, "data: %s\n\n", b); wErr != nil {
			zlog.Warn("SSE 写出失败，客户端可能已断开", zap.Error(wErr))
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
