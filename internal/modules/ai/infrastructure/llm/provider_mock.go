package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockChatModel 本地开发用的固定回复模型，按词切片模拟流式输出
type MockChatModel struct{}

func NewMockChatModel() *MockChatModel {
	return &MockChatModel{}
}

func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(mockReply(input), nil), nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	reply := mockReply(input)
	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer sw.Close()
		for _, word := range strings.SplitAfter(reply, " ") {
			if word == "" {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(word, nil), nil); closed {
				return
			}
		}
	}()
	return sr, nil
}

func mockReply(input []*schema.Message) string {
	question := ""
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			question = strings.TrimSpace(input[i].Content)
			break
		}
	}
	if question == "" {
		return "I'm here to help you think through your management challenges. What's on your mind?"
	}
	return "Thanks for sharing that. Let's break it down: what outcome would you like from this situation, and what have you already tried?"
}

var _ model.BaseChatModel = (*MockChatModel)(nil)
