package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Mano/internal/modules/ai/infrastructure/llm"
	chatEntity "Mano/internal/modules/chat/domain/entity"
	chatRepo "Mano/internal/modules/chat/domain/repository"
	teamRepo "Mano/internal/modules/team/domain/repository"
	"Mano/pkg/util"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const (
	// 回看窗口：客户端乐观写入的用户消息在这个窗口内视为同一条
	userMessageLookback = time.Minute
	// 单个附件注入提示词的字符上限
	defaultFileMaxChars = 5000
)

// ChatRequest 一次聊天回合的输入
type ChatRequest struct {
	UserID              string
	PersonID            string
	Message             string
	TopicID             string
	HasFiles            bool
	IsTopicConversation bool
	TopicTitle          string
}

// ChatResult 聊天回合的输出（非流式路径）
type ChatResult struct {
	UserMessageID      string
	AssistantMessageID string
	Answer             string
	PersonID           string
	TopicID            string
	TotalMs            int64
	Err                error
}

// ChatPipeline 聊天编排（基于 Eino Graph）。
// 流式路径手动执行前置节点后把 StreamReader 交给上层。
type ChatPipeline struct {
	personRepo     teamRepo.PersonRepository
	topicRepo      teamRepo.TopicRepository
	messageRepo    chatRepo.MessageRepository
	fileRepo       chatRepo.MessageFileRepository
	contextBuilder *ContextBuilder
	chatModel      model.BaseChatModel
	chatMeta       llm.ChatModelMeta
	historyLimit   int
	fileMaxChars   int
	r              compose.Runnable[*ChatRequest, *ChatResult]
}

func NewChatPipeline(
	personRepo teamRepo.PersonRepository,
	topicRepo teamRepo.TopicRepository,
	messageRepo chatRepo.MessageRepository,
	fileRepo chatRepo.MessageFileRepository,
	contextBuilder *ContextBuilder,
	chatModel model.BaseChatModel,
	chatMeta llm.ChatModelMeta,
	historyLimit int,
	fileMaxChars int,
) (*ChatPipeline, error) {
	if personRepo == nil || topicRepo == nil || messageRepo == nil || contextBuilder == nil || chatModel == nil {
		return nil, fmt.Errorf("required dependencies are nil")
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if fileMaxChars <= 0 {
		fileMaxChars = defaultFileMaxChars
	}

	p := &ChatPipeline{
		personRepo:     personRepo,
		topicRepo:      topicRepo,
		messageRepo:    messageRepo,
		fileRepo:       fileRepo,
		contextBuilder: contextBuilder,
		chatModel:      chatModel,
		chatMeta:       chatMeta,
		historyLimit:   historyLimit,
		fileMaxChars:   fileMaxChars,
	}

	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Execute 执行一个聊天回合（非流式）
func (p *ChatPipeline) Execute(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if p.r == nil {
		return nil, fmt.Errorf("pipeline runnable is nil")
	}
	return p.r.Invoke(ctx, req)
}

// ExecuteStream 手动执行 LLM 之前的全部节点，返回模型流与中间状态
func (p *ChatPipeline) ExecuteStream(ctx context.Context, req *ChatRequest) (*schema.StreamReader[*schema.Message], *ChatState, error) {
	if req == nil {
		return nil, nil, fmt.Errorf("request is nil")
	}

	st, err := p.resolveTargetNode(ctx, req)
	if err != nil || st.Err != nil {
		return nil, st, getError(err, st.Err)
	}
	st, err = p.loadHistoryNode(ctx, st)
	if err != nil || st.Err != nil {
		return nil, st, getError(err, st.Err)
	}
	st, err = p.buildContextNode(ctx, st)
	if err != nil || st.Err != nil {
		return nil, st, getError(err, st.Err)
	}
	st, err = p.ensureUserMessageNode(ctx, st)
	if err != nil || st.Err != nil {
		return nil, st, getError(err, st.Err)
	}
	st, err = p.attachFilesNode(ctx, st)
	if err != nil || st.Err != nil {
		return nil, st, getError(err, st.Err)
	}
	st, err = p.buildPromptNode(ctx, st)
	if err != nil || st.Err != nil {
		return nil, st, getError(err, st.Err)
	}

	promptMsgs := make([]*schema.Message, len(st.PromptMsgs))
	for i := range st.PromptMsgs {
		promptMsgs[i] = &st.PromptMsgs[i]
	}

	streamReader, err := p.chatModel.Stream(ctx, promptMsgs)
	if err != nil {
		return nil, st, err
	}
	return streamReader, st, nil
}

// PersistStreamResult 流结束后落库完整回复
func (p *ChatPipeline) PersistStreamResult(ctx context.Context, st *ChatState, fullAnswer string) (*ChatResult, error) {
	st.Answer = fullAnswer
	if _, err := p.persistAssistantMessage(ctx, st, fullAnswer); err != nil {
		return nil, err
	}
	return p.buildFinalResult(st), nil
}

// PersistFailureResult 流中失败时把友好错误文案作为助手回复落库，保证对话记录真实完整
func (p *ChatPipeline) PersistFailureResult(ctx context.Context, st *ChatState, friendlyMsg string) (*ChatResult, error) {
	st.Answer = friendlyMsg
	if _, err := p.persistAssistantMessage(ctx, st, friendlyMsg); err != nil {
		return nil, err
	}
	return p.buildFinalResult(st), nil
}

func (p *ChatPipeline) persistAssistantMessage(ctx context.Context, st *ChatState, content string) (*chatEntity.Message, error) {
	personID, topicID := st.targetIDs()
	now := time.Now()
	msg := &chatEntity.Message{
		MessageId: util.GenerateID("M"),
		UserId:    st.Req.UserID,
		PersonId:  nullStringOf(personID),
		TopicId:   nullStringOf(topicID),
		Content:   content,
		IsUser:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	st.AssistantMessage = msg
	return msg, nil
}

// buildGraph 构建 Eino Graph（8 个节点）
func (p *ChatPipeline) buildGraph(ctx context.Context) (compose.Runnable[*ChatRequest, *ChatResult], error) {
	const (
		ResolveTarget     = "ResolveTarget"
		LoadHistory       = "LoadHistory"
		BuildContext      = "BuildContext"
		EnsureUserMessage = "EnsureUserMessage"
		AttachFiles       = "AttachFiles"
		BuildPrompt       = "BuildPrompt"
		ChatModel         = "ChatModel"
		Persist           = "Persist"
	)

	g := compose.NewGraph[*ChatRequest, *ChatResult]()

	_ = g.AddLambdaNode(ResolveTarget, compose.InvokableLambdaWithOption(p.resolveTargetNode), compose.WithNodeName(ResolveTarget))
	_ = g.AddLambdaNode(LoadHistory, compose.InvokableLambdaWithOption(p.loadHistoryNode), compose.WithNodeName(LoadHistory))
	_ = g.AddLambdaNode(BuildContext, compose.InvokableLambdaWithOption(p.buildContextNode), compose.WithNodeName(BuildContext))
	_ = g.AddLambdaNode(EnsureUserMessage, compose.InvokableLambdaWithOption(p.ensureUserMessageNode), compose.WithNodeName(EnsureUserMessage))
	_ = g.AddLambdaNode(AttachFiles, compose.InvokableLambdaWithOption(p.attachFilesNode), compose.WithNodeName(AttachFiles))
	_ = g.AddLambdaNode(BuildPrompt, compose.InvokableLambdaWithOption(p.buildPromptNode), compose.WithNodeName(BuildPrompt))
	_ = g.AddLambdaNode(ChatModel, compose.InvokableLambdaWithOption(p.chatModelNode), compose.WithNodeName(ChatModel))
	_ = g.AddLambdaNode(Persist, compose.InvokableLambdaWithOption(p.persistNode), compose.WithNodeName(Persist))

	_ = g.AddEdge(compose.START, ResolveTarget)
	_ = g.AddEdge(ResolveTarget, LoadHistory)
	_ = g.AddEdge(LoadHistory, BuildContext)
	_ = g.AddEdge(BuildContext, EnsureUserMessage)
	_ = g.AddEdge(EnsureUserMessage, AttachFiles)
	_ = g.AddEdge(AttachFiles, BuildPrompt)
	_ = g.AddEdge(BuildPrompt, ChatModel)
	_ = g.AddEdge(ChatModel, Persist)
	_ = g.AddEdge(Persist, compose.END)

	return g.Compile(ctx, compose.WithGraphName("ChatPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

func (p *ChatPipeline) buildFinalResult(st *ChatState) *ChatResult {
	personID, topicID := st.targetIDs()
	res := &ChatResult{
		Answer:   st.Answer,
		PersonID: personID,
		TopicID:  topicID,
		TotalMs:  time.Since(st.Start).Milliseconds(),
		Err:      st.Err,
	}
	if st.UserMessage != nil {
		res.UserMessageID = st.UserMessage.MessageId
	}
	if st.AssistantMessage != nil {
		res.AssistantMessageID = st.AssistantMessage.MessageId
	}
	return res
}

func getError(err1, err2 error) error {
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return fmt.Errorf("unknown error")
}

func nullStringOf(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
