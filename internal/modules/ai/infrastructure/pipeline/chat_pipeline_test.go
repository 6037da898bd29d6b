package pipeline

import (
	"context"
	"io"
	"strings"
	"testing"

	"Mano/internal/modules/ai/infrastructure/llm"
	chatEntity "Mano/internal/modules/chat/domain/entity"
	teamEntity "Mano/internal/modules/team/domain/entity"
	"Mano/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFileRepo struct {
	files   []chatEntity.MessageFile
	listErr error
}

func (f *fakeFileRepo) Create(ctx context.Context, file *chatEntity.MessageFile) error {
	return nil
}

func (f *fakeFileRepo) GetByFileId(ctx context.Context, userID, fileID string) (*chatEntity.MessageFile, error) {
	return nil, nil
}

func (f *fakeFileRepo) ListByMessageId(ctx context.Context, userID, messageID string) ([]chatEntity.MessageFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeFileRepo) UpdateProcessing(ctx context.Context, fileID, status, extractedContent string) error {
	return nil
}

func newTestPipeline(t *testing.T, people *fakePersonRepo, topics *fakeTopicRepo, messages *fakeMessageRepo, files *fakeFileRepo, fileMaxChars int) *ChatPipeline {
	t.Helper()
	builder := newTestBuilder(people, topics, messages, nil)
	p, err := NewChatPipeline(people, topics, messages, files,
		builder, llm.NewMockChatModel(), llm.ChatModelMeta{Provider: "mock"}, 50, fileMaxChars)
	require.NoError(t, err)
	return p
}

func drainStream(t *testing.T, p *ChatPipeline, req *ChatRequest) (*ChatState, string) {
	t.Helper()
	sr, st, err := p.ExecuteStream(context.Background(), req)
	require.NoError(t, err)
	defer sr.Close()

	var full strings.Builder
	for {
		msg, recvErr := sr.Recv()
		if recvErr == io.EOF {
			break
		}
		require.NoError(t, recvErr)
		full.WriteString(msg.Content)
	}
	return st, full.String()
}

func TestExecuteStreamGeneralPersona(t *testing.T) {
	messages := &fakeMessageRepo{}
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, messages, &fakeFileRepo{}, 0)

	st, full := drainStream(t, p, &ChatRequest{UserID: "U1", Message: "How do I run a good 1:1?"})
	assert.NotEmpty(t, full)
	require.NotNil(t, st.UserMessage)
	assert.True(t, st.UserMessage.IsUser)
	assert.True(t, strings.HasPrefix(st.UserMessage.MessageId, "M"))

	res, err := p.PersistStreamResult(context.Background(), st, full)
	require.NoError(t, err)
	assert.Equal(t, st.UserMessage.MessageId, res.UserMessageID)
	assert.NotEmpty(t, res.AssistantMessageID)
	assert.Equal(t, chatEntity.GeneralPersonaId, res.PersonID)
	assert.Empty(t, res.TopicID)

	// 用户消息 + 助手消息各落库一条，都挂在哨兵 person_id 上
	require.Len(t, messages.created, 2)
	assert.True(t, messages.created[0].IsUser)
	assert.False(t, messages.created[1].IsUser)
	assert.Equal(t, full, messages.created[1].Content)
	for _, m := range messages.created {
		assert.Equal(t, chatEntity.GeneralPersonaId, m.PersonId.String)
		assert.False(t, m.TopicId.Valid)
	}
}

func TestExecuteStreamGeneralPersonaLoadsHistory(t *testing.T) {
	messages := &fakeMessageRepo{byPerson: map[string][]chatEntity.Message{
		chatEntity.GeneralPersonaId: {
			{MessageId: "M-old", Content: "earlier note about delegation", IsUser: true},
		},
	}}
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, messages, &fakeFileRepo{}, 0)

	st, _ := drainStream(t, p, &ChatRequest{UserID: "U1", Message: "picking this back up"})
	require.Len(t, st.History, 1)
	assert.Equal(t, "M-old", st.History[0].MessageId)

	// 历史作为上下文消息拼进提示词
	assert.Equal(t, "earlier note about delegation", st.PromptMsgs[1].Content)
}

func TestPersistedMessagesHaveExactlyOneTarget(t *testing.T) {
	people := &fakePersonRepo{people: []teamEntity.Person{
		{PersonId: "P1", Name: "Alice", RelationshipType: teamEntity.RelationshipDirectReport},
	}}
	messages := &fakeMessageRepo{}
	p := newTestPipeline(t, people, &fakeTopicRepo{}, messages, &fakeFileRepo{}, 0)

	for _, req := range []*ChatRequest{
		{UserID: "U1", Message: "general note"},
		{UserID: "U1", PersonID: "P1", Message: "about Alice"},
		{UserID: "U1", Message: "topic note", IsTopicConversation: true},
	} {
		st, full := drainStream(t, p, req)
		_, err := p.PersistStreamResult(context.Background(), st, full)
		require.NoError(t, err)
	}

	// 每条消息恰好归属一个会话目标
	require.NotEmpty(t, messages.created)
	for _, m := range messages.created {
		assert.True(t, m.PersonId.Valid != m.TopicId.Valid,
			"message %s: person=%v topic=%v", m.MessageId, m.PersonId, m.TopicId)
	}
}

func TestExecuteStreamRequiresUserID(t *testing.T) {
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, &fakeFileRepo{}, 0)

	_, _, err := p.ExecuteStream(context.Background(), &ChatRequest{Message: "hello"})
	require.Error(t, err)
	assert.Equal(t, xerr.ErrUnauthorized, err)
}

func TestExecuteStreamRequiresMessage(t *testing.T) {
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, &fakeFileRepo{}, 0)

	_, _, err := p.ExecuteStream(context.Background(), &ChatRequest{UserID: "U1", Message: "  "})
	require.Error(t, err)
	var ce *xerr.CodeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, xerr.BadRequest, ce.Code)
}

func TestExecuteStreamPersonNotFound(t *testing.T) {
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, &fakeFileRepo{}, 0)

	_, _, err := p.ExecuteStream(context.Background(), &ChatRequest{UserID: "U1", PersonID: "P404", Message: "hi"})
	require.Error(t, err)
	var ce *xerr.CodeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, xerr.NotFound, ce.Code)
}

func TestExecuteStreamPersonConversation(t *testing.T) {
	people := &fakePersonRepo{people: []teamEntity.Person{
		{PersonId: "P1", Name: "Alice", Role: "Engineer", RelationshipType: teamEntity.RelationshipDirectReport},
	}}
	messages := &fakeMessageRepo{}
	p := newTestPipeline(t, people, &fakeTopicRepo{}, messages, &fakeFileRepo{}, 0)

	st, full := drainStream(t, p, &ChatRequest{UserID: "U1", PersonID: "P1", Message: "Alice seems stressed"})
	require.NotNil(t, st.Person)
	assert.Equal(t, "Alice", st.Person.Name)

	sys := st.PromptMsgs[0].Content
	assert.Contains(t, sys, "This conversation is about Alice (Engineer), the manager's direct report.")

	res, err := p.PersistStreamResult(context.Background(), st, full)
	require.NoError(t, err)
	assert.Equal(t, "P1", res.PersonID)
	assert.Empty(t, res.TopicID)
	assert.Equal(t, "P1", messages.created[0].PersonId.String)
}

func TestExecuteStreamEnsuresDefaultTopic(t *testing.T) {
	existing := &teamEntity.Topic{
		TopicId: "T-existing",
		UserId:  "U1",
		Title:   teamEntity.GeneralTopicTitle,
		Status:  teamEntity.TopicStatusActive,
	}
	topics := &fakeTopicRepo{existing: existing}
	p := newTestPipeline(t, &fakePersonRepo{}, topics, &fakeMessageRepo{}, &fakeFileRepo{}, 0)

	st, _ := drainStream(t, p, &ChatRequest{UserID: "U1", Message: "note to self", IsTopicConversation: true})
	require.NotNil(t, st.Topic)
	// (user_id, title) 已存在时复用库里那行，而不是新建
	assert.Equal(t, "T-existing", st.Topic.TopicId)

	require.Len(t, topics.ensured, 1)
	assert.Equal(t, teamEntity.GeneralTopicTitle, topics.ensured[0].Title)
	assert.Equal(t, "Default coaching conversation", topics.ensured[0].Description)
	assert.True(t, strings.HasPrefix(topics.ensured[0].TopicId, "T"))
}

func TestExecuteStreamTopicNotFound(t *testing.T) {
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, &fakeFileRepo{}, 0)

	_, _, err := p.ExecuteStream(context.Background(), &ChatRequest{
		UserID: "U1", Message: "hi", IsTopicConversation: true, TopicID: "T404",
	})
	require.Error(t, err)
	var ce *xerr.CodeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, xerr.NotFound, ce.Code)
}

func TestExecuteStreamReusesRecentUserMessage(t *testing.T) {
	recent := &chatEntity.Message{MessageId: "M-optimistic", UserId: "U1", Content: "hello", IsUser: true}
	messages := &fakeMessageRepo{recent: recent}
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, messages, &fakeFileRepo{}, 0)

	st, full := drainStream(t, p, &ChatRequest{UserID: "U1", Message: "hello"})
	assert.Equal(t, "M-optimistic", st.UserMessage.MessageId)

	res, err := p.PersistStreamResult(context.Background(), st, full)
	require.NoError(t, err)
	assert.Equal(t, "M-optimistic", res.UserMessageID)

	// 客户端乐观写入过，这里只该多出助手消息
	require.Len(t, messages.created, 1)
	assert.False(t, messages.created[0].IsUser)
}

func TestExecuteStreamAttachesFiles(t *testing.T) {
	files := &fakeFileRepo{files: []chatEntity.MessageFile{
		{
			OriginalName:     "report.txt",
			ProcessingStatus: chatEntity.FileStatusCompleted,
			ExtractedContent: "0123456789ABCDEF",
		},
		{
			OriginalName:     "slides.pdf",
			ProcessingStatus: chatEntity.FileStatusProcessing,
		},
	}}
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, files, 10)

	st, _ := drainStream(t, p, &ChatRequest{UserID: "U1", Message: "see attached", HasFiles: true})
	require.NotEmpty(t, st.FileBlock)
	assert.Contains(t, st.FileBlock, "ATTACHED FILES:")
	assert.Contains(t, st.FileBlock, "--- report.txt ---")
	assert.Contains(t, st.FileBlock, "0123456789...[truncated]")
	assert.Contains(t, st.FileBlock, "[File attached, content not yet available (status: processing)]")

	// 附件内容拼接在最终用户消息之后
	last := st.PromptMsgs[len(st.PromptMsgs)-1]
	assert.True(t, strings.HasPrefix(last.Content, "see attached"))
	assert.Contains(t, last.Content, "report.txt")
}

func TestExecuteNonStreaming(t *testing.T) {
	messages := &fakeMessageRepo{}
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, messages, &fakeFileRepo{}, 0)

	res, err := p.Execute(context.Background(), &ChatRequest{UserID: "U1", Message: "quick question"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.Answer)
	assert.NotEmpty(t, res.UserMessageID)
	assert.NotEmpty(t, res.AssistantMessageID)
	require.Len(t, messages.created, 2)
}

func TestPersistFailureResultRecordsAssistantTurn(t *testing.T) {
	messages := &fakeMessageRepo{}
	p := newTestPipeline(t, &fakePersonRepo{}, &fakeTopicRepo{}, messages, &fakeFileRepo{}, 0)

	st, _ := drainStream(t, p, &ChatRequest{UserID: "U1", Message: "hello"})

	res, err := p.PersistFailureResult(context.Background(), st, "🔧 The AI service hit a problem on its end. Please try again shortly.")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AssistantMessageID)

	last := messages.created[len(messages.created)-1]
	assert.False(t, last.IsUser)
	assert.Contains(t, last.Content, "🔧")
}
