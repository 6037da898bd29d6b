package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Mano/internal/modules/ai/domain/contextdata"
	chatEntity "Mano/internal/modules/chat/domain/entity"
	teamEntity "Mano/internal/modules/team/domain/entity"
	"Mano/pkg/util"
	"Mano/pkg/xerr"
	"Mano/pkg/zlog"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChatState Graph 内部状态（在节点间传递）
type ChatState struct {
	Req *ChatRequest

	Person         *teamEntity.Person // 目标成员；general 人格时为 nil
	Topic          *teamEntity.Topic  // 目标话题
	GeneralPersona bool               // 未指定成员时的合成教练人格

	History     []chatEntity.Message
	Context     *contextdata.ManagementContextData
	UserMessage *chatEntity.Message
	FileBlock   string
	PromptMsgs  []schema.Message

	Answer           string
	AssistantMessage *chatEntity.Message

	Start time.Time
	Err   error
}

const coachSystemPrompt = "You are Mano, a thoughtful management coach. " +
	"You help managers prepare for conversations, give feedback, and grow their teams. " +
	"Be concrete and practical, ask clarifying questions when useful, and keep answers concise."

// Node 1: ResolveTarget - 解析会话目标（成员或话题）
func (p *ChatPipeline) resolveTargetNode(ctx context.Context, req *ChatRequest, _ ...any) (*ChatState, error) {
	st := &ChatState{
		Req:   req,
		Start: time.Now(),
	}

	if strings.TrimSpace(req.UserID) == "" {
		st.Err = xerr.ErrUnauthorized
		return st, nil
	}
	if strings.TrimSpace(req.Message) == "" {
		st.Err = xerr.New(xerr.BadRequest, "message is required")
		return st, nil
	}

	if req.IsTopicConversation {
		topicID := strings.TrimSpace(req.TopicID)
		if topicID != "" {
			topic, err := p.topicRepo.GetByTopicId(ctx, req.UserID, topicID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					err = xerr.New(xerr.NotFound, "topic not found")
				}
				st.Err = err
				return st, nil
			}
			st.Topic = topic
			return st, nil
		}

		// 未指定话题时幂等获取或创建，两个并发首访只会落一行
		title := strings.TrimSpace(req.TopicTitle)
		if title == "" {
			title = teamEntity.GeneralTopicTitle
		}
		now := time.Now()
		topic, err := p.topicRepo.EnsureTopic(ctx, &teamEntity.Topic{
			TopicId:     util.GenerateID("T"),
			UserId:      req.UserID,
			Title:       title,
			Description: "Default coaching conversation",
			Status:      teamEntity.TopicStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			st.Err = err
			return st, nil
		}
		st.Topic = topic
		return st, nil
	}

	personID := strings.TrimSpace(req.PersonID)
	if personID == "" || personID == chatEntity.GeneralPersonaId {
		st.GeneralPersona = true
		return st, nil
	}

	person, err := p.personRepo.GetByPersonId(ctx, req.UserID, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = xerr.New(xerr.NotFound, "person not found")
		}
		st.Err = err
		return st, nil
	}
	st.Person = person
	return st, nil
}

// Node 2: LoadHistory - 按时间正序加载会话历史
func (p *ChatPipeline) loadHistoryNode(ctx context.Context, st *ChatState, _ ...any) (*ChatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}

	var (
		msgs []chatEntity.Message
		err  error
	)
	switch {
	case st.Topic != nil:
		msgs, err = p.messageRepo.ListByTopic(ctx, st.Req.UserID, st.Topic.TopicId, p.historyLimit)
	case st.Person != nil:
		msgs, err = p.messageRepo.ListByPerson(ctx, st.Req.UserID, st.Person.PersonId, p.historyLimit)
	default:
		// general 人格的历史挂在哨兵 person_id 上
		msgs, err = p.messageRepo.ListByPerson(ctx, st.Req.UserID, chatEntity.GeneralPersonaId, p.historyLimit)
	}
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.History = msgs
	return st, nil
}

// Node 3: BuildContext - 构建管理上下文，失败只降级不阻断
func (p *ChatPipeline) buildContextNode(ctx context.Context, st *ChatState, _ ...any) (*ChatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}

	entityID := ""
	switch {
	case st.Topic != nil:
		entityID = st.Topic.TopicId
	case st.Person != nil:
		entityID = st.Person.PersonId
	case st.GeneralPersona:
		entityID = chatEntity.GeneralPersonaId
	}

	st.Context = p.contextBuilder.Build(ctx, BuildContextRequest{
		UserID:              st.Req.UserID,
		CurrentEntityID:     entityID,
		IsTopicConversation: st.Req.IsTopicConversation,
		CurrentQuery:        st.Req.Message,
	})
	return st, nil
}

// Node 4: EnsureUserMessage - 回看窗口内找客户端乐观写入的用户消息，找不到再兜底落库
func (p *ChatPipeline) ensureUserMessageNode(ctx context.Context, st *ChatState, _ ...any) (*ChatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}

	personID, topicID := st.targetIDs()
	since := time.Now().Add(-userMessageLookback)
	existing, err := p.messageRepo.FindRecentUserMessage(ctx, st.Req.UserID, personID, topicID, st.Req.Message, since)
	if err != nil {
		zlog.Warn("回看用户消息失败，走兜底插入", zap.String("userID", st.Req.UserID), zap.Error(err))
	}
	if existing != nil {
		st.UserMessage = existing
		return st, nil
	}

	now := time.Now()
	msg := &chatEntity.Message{
		MessageId: util.GenerateID("M"),
		UserId:    st.Req.UserID,
		PersonId:  nullStringOf(personID),
		TopicId:   nullStringOf(topicID),
		Content:   st.Req.Message,
		IsUser:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.messageRepo.Create(ctx, msg); err != nil {
		st.Err = err
		return st, nil
	}
	st.UserMessage = msg
	return st, nil
}

// Node 5: AttachFiles - 把已提取的附件内容拼进提示词，未就绪的用占位符表示
func (p *ChatPipeline) attachFilesNode(ctx context.Context, st *ChatState, _ ...any) (*ChatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}
	if !st.Req.HasFiles || st.UserMessage == nil {
		return st, nil
	}

	files, err := p.fileRepo.ListByMessageId(ctx, st.Req.UserID, st.UserMessage.MessageId)
	if err != nil {
		zlog.Warn("加载消息附件失败，跳过附件上下文", zap.String("messageID", st.UserMessage.MessageId), zap.Error(err))
		return st, nil
	}
	if len(files) == 0 {
		return st, nil
	}

	var b strings.Builder
	b.WriteString("\n\nATTACHED FILES:\n")
	for _, f := range files {
		if f.ProcessingStatus == chatEntity.FileStatusCompleted && strings.TrimSpace(f.ExtractedContent) != "" {
			content := f.ExtractedContent
			if len(content) > p.fileMaxChars {
				content = content[:p.fileMaxChars] + "...[truncated]"
			}
			b.WriteString(fmt.Sprintf("--- %s ---\n%s\n", f.OriginalName, content))
		} else {
			b.WriteString(fmt.Sprintf("--- %s ---\n[File attached, content not yet available (status: %s)]\n", f.OriginalName, f.ProcessingStatus))
		}
	}
	st.FileBlock = b.String()
	return st, nil
}

// Node 6: BuildPrompt - 组装系统提示词、历史与增强后的用户消息
func (p *ChatPipeline) buildPromptNode(ctx context.Context, st *ChatState, _ ...any) (*ChatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}

	var sys strings.Builder
	sys.WriteString(coachSystemPrompt)

	switch {
	case st.Topic != nil:
		sys.WriteString(fmt.Sprintf("\n\nThis conversation is about the topic \"%s\".", st.Topic.Title))
		if desc := strings.TrimSpace(st.Topic.Description); desc != "" {
			sys.WriteString(" ")
			sys.WriteString(desc)
		}
	case st.Person != nil:
		sys.WriteString(fmt.Sprintf("\n\nThis conversation is about %s", st.Person.Name))
		if st.Person.Role != "" {
			sys.WriteString(fmt.Sprintf(" (%s)", st.Person.Role))
		}
		sys.WriteString(fmt.Sprintf(", the manager's %s.", strings.ReplaceAll(st.Person.RelationshipType, "_", " ")))
	default:
		sys.WriteString("\n\nThis is a general coaching conversation, not tied to a specific team member.")
	}

	if st.Context != nil {
		sys.WriteString("\n\n")
		sys.WriteString(st.Context.FormatForPrompt())
	}

	promptMsgs := make([]schema.Message, 0, 2+len(st.History))
	promptMsgs = append(promptMsgs, schema.Message{Role: schema.System, Content: sys.String()})

	for _, msg := range st.History {
		role := schema.Assistant
		if msg.IsUser {
			role = schema.User
		}
		promptMsgs = append(promptMsgs, schema.Message{Role: role, Content: msg.Content})
	}

	promptMsgs = append(promptMsgs, schema.Message{
		Role:    schema.User,
		Content: st.Req.Message + st.FileBlock,
	})
	st.PromptMsgs = promptMsgs

	zlog.Info("chat build prompt done",
		zap.String("userID", st.Req.UserID),
		zap.Int("prompt_msgs", len(promptMsgs)),
		zap.Int("history_msgs", len(st.History)),
		zap.Bool("has_files", st.FileBlock != ""))

	return st, nil
}

// Node 7: ChatModel - 调用 LLM（非流式路径）
func (p *ChatPipeline) chatModelNode(ctx context.Context, st *ChatState, _ ...any) (*ChatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}

	promptMsgs := make([]*schema.Message, len(st.PromptMsgs))
	for i := range st.PromptMsgs {
		promptMsgs[i] = &st.PromptMsgs[i]
	}

	resp, err := p.chatModel.Generate(ctx, promptMsgs)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Answer = resp.Content
	return st, nil
}

// Node 8: Persist - 落库助手回复
func (p *ChatPipeline) persistNode(ctx context.Context, st *ChatState, _ ...any) (*ChatResult, error) {
	if st == nil {
		return &ChatResult{Err: fmt.Errorf("nil state")}, nil
	}
	if st.Err != nil {
		return p.buildFinalResult(st), nil
	}

	if _, err := p.persistAssistantMessage(ctx, st, st.Answer); err != nil {
		st.Err = err
	}
	return p.buildFinalResult(st), nil
}

func (st *ChatState) targetIDs() (personID, topicID string) {
	switch {
	case st.Topic != nil:
		return "", st.Topic.TopicId
	case st.Person != nil:
		return st.Person.PersonId, ""
	case st.GeneralPersona:
		// 哨兵 id，保证每条消息有且只有一个会话归属
		return chatEntity.GeneralPersonaId, ""
	}
	return "", ""
}
