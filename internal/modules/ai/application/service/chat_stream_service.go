package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"Mano/internal/modules/ai/domain/vector"
	"Mano/internal/modules/ai/infrastructure/pipeline"
	"Mano/pkg/ws"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

// SSE 帧类型
const (
	StreamEventStart    = "start"
	StreamEventDelta    = "delta"
	StreamEventComplete = "complete"
	StreamEventError    = "error"
)

// StreamEvent 透传给客户端的一帧，JSON 键与前端契约保持一致
type StreamEvent struct {
	Type               string `json:"type"`
	UserMessageId      string `json:"userMessageId,omitempty"`
	Text               string `json:"text,omitempty"`
	AssistantMessageId string `json:"assistantMessageId,omitempty"`
	FullResponse       string `json:"fullResponse,omitempty"`
	Error              string `json:"error,omitempty"`
	ShouldRetry        *bool  `json:"shouldRetry,omitempty"`
}

// LLM 失败按错误类别映射成带表情前缀的用户文案
const (
	llmErrRateLimit = "🚦 I'm getting a lot of requests right now. Give me a moment and try again."
	llmErrServer    = "🔧 The AI service hit a problem on its end. Please try again shortly."
	llmErrAuth      = "🔑 There's a configuration problem with my AI access. Please contact support."
	llmErrUnknown   = "😕 Something unexpected went wrong. Please try again."
)

// ChatStreamService 执行一次流式聊天回合：
// 编排 pipeline、把模型增量原序转成事件流、结束后落库并异步触发向量化。
type ChatStreamService struct {
	pipe       *pipeline.ChatPipeline
	embedQueue *EmbedQueueService
	hub        *ws.Hub
}

func NewChatStreamService(pipe *pipeline.ChatPipeline, embedQueue *EmbedQueueService, hub *ws.Hub) *ChatStreamService {
	return &ChatStreamService{
		pipe:       pipe,
		embedQueue: embedQueue,
		hub:        hub,
	}
}

// ChatStream 启动一个聊天回合。
// 流开始前的失败通过返回值上抛（对应非 2xx 响应）；流开始后的失败只走带内 error 帧。
func (s *ChatStreamService) ChatStream(ctx context.Context, req *pipeline.ChatRequest) (<-chan StreamEvent, error) {
	sr, st, err := s.pipe.ExecuteStream(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 100)

	go func() {
		defer close(events)
		defer sr.Close()

		events <- StreamEvent{
			Type:          StreamEventStart,
			UserMessageId: st.UserMessage.MessageId,
		}

		var full strings.Builder
		for {
			msg, recvErr := sr.Recv()
			if recvErr == nil {
				if msg != nil && msg.Content != "" {
					full.WriteString(msg.Content)
					events <- StreamEvent{Type: StreamEventDelta, Text: msg.Content}
				}
				continue
			}
			if errors.Is(recvErr, io.EOF) {
				s.finishStream(ctx, req, st, full.String(), events)
			} else {
				s.failStream(ctx, req, st, recvErr, events)
			}
			return
		}
	}()

	return events, nil
}

func (s *ChatStreamService) finishStream(ctx context.Context, req *pipeline.ChatRequest, st *pipeline.ChatState, fullResponse string, events chan<- StreamEvent) {
	res, err := s.pipe.PersistStreamResult(ctx, st, fullResponse)
	if err != nil {
		zlog.Error("流式回复落库失败", zap.String("userID", req.UserID), zap.Error(err))
		retry := true
		events <- StreamEvent{
			Type:        StreamEventError,
			Error:       llmErrUnknown,
			ShouldRetry: &retry,
		}
		return
	}

	events <- StreamEvent{
		Type:               StreamEventComplete,
		AssistantMessageId: res.AssistantMessageID,
		FullResponse:       fullResponse,
	}

	s.notifyPersisted(req.UserID, res.AssistantMessageID)
	s.enqueueEmbeddings(req, res, fullResponse)
}

func (s *ChatStreamService) failStream(ctx context.Context, req *pipeline.ChatRequest, st *pipeline.ChatState, cause error, events chan<- StreamEvent) {
	friendly, shouldRetry := classifyLLMError(cause)
	zlog.Warn("LLM 流中断，转为带内错误帧",
		zap.String("userID", req.UserID),
		zap.Bool("shouldRetry", shouldRetry),
		zap.Error(cause))

	assistantMessageID := ""
	// 失败文案作为助手回复落库，让对话记录如实反映这次失败
	if res, err := s.pipe.PersistFailureResult(ctx, st, friendly); err != nil {
		zlog.Error("失败回复落库失败", zap.String("userID", req.UserID), zap.Error(err))
	} else {
		assistantMessageID = res.AssistantMessageID
	}

	events <- StreamEvent{
		Type:               StreamEventError,
		Error:              friendly,
		AssistantMessageId: assistantMessageID,
		ShouldRetry:        &shouldRetry,
	}
}

// enqueueEmbeddings 用户与助手两条消息各入一条向量化任务，脱离请求生命周期
func (s *ChatStreamService) enqueueEmbeddings(req *pipeline.ChatRequest, res *pipeline.ChatResult, fullResponse string) {
	if s.embedQueue == nil {
		return
	}

	bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.embedQueue.Enqueue(bg, StoreEmbeddingRequest{
		UserID:      req.UserID,
		PersonID:    res.PersonID,
		TopicID:     res.TopicID,
		MessageID:   res.UserMessageID,
		MessageType: vector.MessageTypeUser,
		ContentType: vector.ContentTypeMessage,
		Content:     req.Message,
	})
	s.embedQueue.Enqueue(bg, StoreEmbeddingRequest{
		UserID:      req.UserID,
		PersonID:    res.PersonID,
		TopicID:     res.TopicID,
		MessageID:   res.AssistantMessageID,
		MessageType: vector.MessageTypeAssistant,
		ContentType: vector.ContentTypeMessage,
		Content:     fullResponse,
	})
}

func (s *ChatStreamService) notifyPersisted(userID, messageID string) {
	if s.hub == nil || messageID == "" {
		return
	}
	s.hub.Broadcast(userID, ws.Event{
		Type: ws.EventMessagePersisted,
		Data: map[string]string{"messageId": messageID},
	})
}

// classifyLLMError 按错误文本归类；只有凭证类错误不建议重试
func classifyLLMError(err error) (friendly string, shouldRetry bool) {
	if err == nil {
		return llmErrUnknown, true
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return llmErrRateLimit, true
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication"):
		return llmErrAuth, false
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "internal server"):
		return llmErrServer, true
	default:
		return llmErrUnknown, true
	}
}
