package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Mano/internal/modules/ai/infrastructure/llm"
	"Mano/internal/modules/ai/infrastructure/pipeline"
	"Mano/internal/modules/ai/infrastructure/transform"
	chatEntity "Mano/internal/modules/chat/domain/entity"
	teamEntity "Mano/internal/modules/team/domain/entity"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ---- pipeline 依赖的最小替身 ----

type stubPersonRepo struct{}

func (stubPersonRepo) Create(ctx context.Context, person *teamEntity.Person) error { return nil }
func (stubPersonRepo) GetByPersonId(ctx context.Context, userID, personID string) (*teamEntity.Person, error) {
	return nil, gorm.ErrRecordNotFound
}
func (stubPersonRepo) ListByUserId(ctx context.Context, userID string) ([]teamEntity.Person, error) {
	return []teamEntity.Person{}, nil
}
func (stubPersonRepo) Update(ctx context.Context, person *teamEntity.Person) error { return nil }
func (stubPersonRepo) Delete(ctx context.Context, userID, personID string) error   { return nil }

type stubTopicRepo struct{}

func (stubTopicRepo) Create(ctx context.Context, topic *teamEntity.Topic) error { return nil }
func (stubTopicRepo) GetByTopicId(ctx context.Context, userID, topicID string) (*teamEntity.Topic, error) {
	return nil, gorm.ErrRecordNotFound
}
func (stubTopicRepo) ListByUserId(ctx context.Context, userID string) ([]teamEntity.Topic, error) {
	return []teamEntity.Topic{}, nil
}
func (stubTopicRepo) UpdateStatus(ctx context.Context, userID, topicID, status string) error {
	return nil
}
func (stubTopicRepo) EnsureTopic(ctx context.Context, topic *teamEntity.Topic) (*teamEntity.Topic, error) {
	return topic, nil
}
func (stubTopicRepo) AddParticipants(ctx context.Context, topicID string, personIDs []string) error {
	return nil
}
func (stubTopicRepo) ListParticipants(ctx context.Context, topicID string) ([]string, error) {
	return []string{}, nil
}

type capturingMessageRepo struct {
	mu      sync.Mutex
	created []chatEntity.Message
}

func (r *capturingMessageRepo) Create(ctx context.Context, msg *chatEntity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *msg)
	return nil
}

func (r *capturingMessageRepo) GetByMessageId(ctx context.Context, userID, messageID string) (*chatEntity.Message, error) {
	return nil, nil
}

func (r *capturingMessageRepo) ListByPerson(ctx context.Context, userID, personID string, limit int) ([]chatEntity.Message, error) {
	return []chatEntity.Message{}, nil
}

func (r *capturingMessageRepo) ListByTopic(ctx context.Context, userID, topicID string, limit int) ([]chatEntity.Message, error) {
	return []chatEntity.Message{}, nil
}

func (r *capturingMessageRepo) FindRecentUserMessage(ctx context.Context, userID, personID, topicID, content string, since time.Time) (*chatEntity.Message, error) {
	return nil, nil
}

func (r *capturingMessageRepo) snapshot() []chatEntity.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chatEntity.Message, len(r.created))
	copy(out, r.created)
	return out
}

type stubFileRepo struct{}

func (stubFileRepo) Create(ctx context.Context, file *chatEntity.MessageFile) error { return nil }
func (stubFileRepo) GetByFileId(ctx context.Context, userID, fileID string) (*chatEntity.MessageFile, error) {
	return nil, nil
}
func (stubFileRepo) ListByMessageId(ctx context.Context, userID, messageID string) ([]chatEntity.MessageFile, error) {
	return []chatEntity.MessageFile{}, nil
}
func (stubFileRepo) UpdateProcessing(ctx context.Context, fileID, status, extractedContent string) error {
	return nil
}

// errStreamModel 流开始后立刻失败的模型
type errStreamModel struct {
	err error
}

func (m *errStreamModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return nil, m.err
}

func (m *errStreamModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer sw.Close()
		sw.Send(nil, m.err)
	}()
	return sr, nil
}

func newStreamService(t *testing.T, chatModel model.BaseChatModel, embedQueue *EmbedQueueService) (*ChatStreamService, *capturingMessageRepo) {
	t.Helper()
	messages := &capturingMessageRepo{}
	builder := pipeline.NewContextBuilder(stubPersonRepo{}, stubTopicRepo{}, messages, transform.NewKeywordThemeExtractor(0, 0), nil, 50)
	pipe, err := pipeline.NewChatPipeline(stubPersonRepo{}, stubTopicRepo{}, messages, stubFileRepo{},
		builder, chatModel, llm.ChatModelMeta{Provider: "mock"}, 50, 0)
	require.NoError(t, err)
	return NewChatStreamService(pipe, embedQueue, nil), messages
}

func collectEvents(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close in time")
		}
	}
}

func TestChatStreamEventOrdering(t *testing.T) {
	embedRepo := newFakeEmbedEventRepo()
	embedQueue := NewEmbedQueueService(embedRepo, nil, true)
	svc, messages := newStreamService(t, llm.NewMockChatModel(), embedQueue)

	events, err := svc.ChatStream(context.Background(), &pipeline.ChatRequest{
		UserID:  "U1",
		Message: "How should I handle the next 1:1?",
	})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.GreaterOrEqual(t, len(got), 3)

	assert.Equal(t, StreamEventStart, got[0].Type)
	assert.NotEmpty(t, got[0].UserMessageId)

	last := got[len(got)-1]
	require.Equal(t, StreamEventComplete, last.Type)
	assert.NotEmpty(t, last.AssistantMessageId)

	// 增量按原序拼接必须等于完整回复
	var deltas string
	for _, ev := range got[1 : len(got)-1] {
		require.Equal(t, StreamEventDelta, ev.Type)
		deltas += ev.Text
	}
	assert.Equal(t, deltas, last.FullResponse)

	created := messages.snapshot()
	require.Len(t, created, 2)
	assert.True(t, created[0].IsUser)
	assert.False(t, created[1].IsUser)
	assert.Equal(t, last.FullResponse, created[1].Content)

	// 用户与助手两条消息各入一条向量化任务
	assert.Len(t, embedRepo.events, 2)
	assert.NotEqual(t, embedRepo.events[0].DedupKey, embedRepo.events[1].DedupKey)
}

func TestChatStreamPreStreamErrorReturned(t *testing.T) {
	svc, _ := newStreamService(t, llm.NewMockChatModel(), nil)

	events, err := svc.ChatStream(context.Background(), &pipeline.ChatRequest{UserID: "U1", Message: " "})
	require.Error(t, err)
	assert.Nil(t, events)
}

func TestChatStreamLLMFailureEmitsErrorFrame(t *testing.T) {
	svc, messages := newStreamService(t, &errStreamModel{err: errors.New("429 Too Many Requests")}, nil)

	events, err := svc.ChatStream(context.Background(), &pipeline.ChatRequest{UserID: "U1", Message: "hello"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, StreamEventStart, got[0].Type)

	errFrame := got[1]
	require.Equal(t, StreamEventError, errFrame.Type)
	assert.Equal(t, llmErrRateLimit, errFrame.Error)
	require.NotNil(t, errFrame.ShouldRetry)
	assert.True(t, *errFrame.ShouldRetry)
	assert.NotEmpty(t, errFrame.AssistantMessageId)

	// 失败文案作为助手回复落库
	created := messages.snapshot()
	require.Len(t, created, 2)
	assert.False(t, created[1].IsUser)
	assert.Equal(t, llmErrRateLimit, created[1].Content)
}

func TestChatStreamAuthFailureNotRetryable(t *testing.T) {
	svc, _ := newStreamService(t, &errStreamModel{err: errors.New("invalid api key")}, nil)

	events, err := svc.ChatStream(context.Background(), &pipeline.ChatRequest{UserID: "U1", Message: "hello"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	errFrame := got[len(got)-1]
	require.Equal(t, StreamEventError, errFrame.Type)
	assert.Equal(t, llmErrAuth, errFrame.Error)
	require.NotNil(t, errFrame.ShouldRetry)
	assert.False(t, *errFrame.ShouldRetry)
}

func TestClassifyLLMError(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		wantMsg     string
		wantRetry   bool
	}{
		{"rate limit code", errors.New("status 429"), llmErrRateLimit, true},
		{"rate limit text", errors.New("Rate limit exceeded"), llmErrRateLimit, true},
		{"too many requests", errors.New("too many requests, slow down"), llmErrRateLimit, true},
		{"unauthorized", errors.New("401 Unauthorized"), llmErrAuth, false},
		{"forbidden", errors.New("403 forbidden"), llmErrAuth, false},
		{"bad api key", errors.New("incorrect API key provided"), llmErrAuth, false},
		{"server error", errors.New("500 internal server error"), llmErrServer, true},
		{"bad gateway", errors.New("502 bad gateway"), llmErrServer, true},
		{"overloaded", errors.New("model is overloaded"), llmErrServer, true},
		{"unknown", errors.New("connection reset by peer"), llmErrUnknown, true},
		{"nil", nil, llmErrUnknown, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, retry := classifyLLMError(tc.err)
			assert.Equal(t, tc.wantMsg, msg)
			assert.Equal(t, tc.wantRetry, retry)
		})
	}
}
