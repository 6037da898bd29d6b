package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"Mano/internal/modules/ai/domain/contextdata"
	aiRepo "Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/infrastructure/transform"
	chatRepo "Mano/internal/modules/chat/domain/repository"
	teamEntity "Mano/internal/modules/team/domain/entity"
	teamRepo "Mano/internal/modules/team/domain/repository"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

// SemanticSearcher 语义检索能力的窄接口，由 application 层的 VectorService 满足
type SemanticSearcher interface {
	SearchSimilar(ctx context.Context, userID, query string, opts aiRepo.SearchOptions) []contextdata.SemanticHit
}

// BuildContextRequest 上下文构建入参
type BuildContextRequest struct {
	UserID              string
	CurrentEntityID     string
	IsTopicConversation bool
	CurrentQuery        string
}

// ContextBuilder 每个聊天回合重建管理上下文。
// 对外契约：Build 永不失败，任何内部错误都降级为最小有效上下文。
type ContextBuilder struct {
	personRepo   teamRepo.PersonRepository
	topicRepo    teamRepo.TopicRepository
	messageRepo  chatRepo.MessageRepository
	extractor    transform.ThemeExtractor
	searcher     SemanticSearcher
	historyLimit int
}

func NewContextBuilder(
	personRepo teamRepo.PersonRepository,
	topicRepo teamRepo.TopicRepository,
	messageRepo chatRepo.MessageRepository,
	extractor transform.ThemeExtractor,
	searcher SemanticSearcher,
	historyLimit int,
) *ContextBuilder {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &ContextBuilder{
		personRepo:   personRepo,
		topicRepo:    topicRepo,
		messageRepo:  messageRepo,
		extractor:    extractor,
		searcher:     searcher,
		historyLimit: historyLimit,
	}
}

// Build 聚合团队构成、各会话近期主题、跨会话洞察与语义检索结果
func (b *ContextBuilder) Build(ctx context.Context, req BuildContextRequest) (data *contextdata.ManagementContextData) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error("上下文构建 panic，降级为最小上下文", zap.Any("recover", r))
			data = contextdata.Minimal()
		}
	}()

	if strings.TrimSpace(req.UserID) == "" {
		return contextdata.Minimal()
	}

	people, err := b.personRepo.ListByUserId(ctx, req.UserID)
	if err != nil {
		zlog.Warn("加载团队成员失败，降级为最小上下文", zap.String("userID", req.UserID), zap.Error(err))
		return contextdata.Minimal()
	}

	var topics []teamEntity.Topic
	if req.IsTopicConversation {
		topics, err = b.topicRepo.ListByUserId(ctx, req.UserID)
		if err != nil {
			zlog.Warn("加载话题失败，继续只用成员上下文", zap.String("userID", req.UserID), zap.Error(err))
			topics = nil
		}
	}

	teamCtx := buildTeamContext(people)

	// 各实体的历史加载与主题提取相互独立，并发展开压住尾延迟
	allPeople := make([]contextdata.PersonContext, len(people))
	allTopics := make([]contextdata.TopicContext, len(topics))
	var semanticHits []contextdata.SemanticHit

	var wg sync.WaitGroup
	for i := range people {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := people[i]
			pc := contextdata.PersonContext{
				PersonId:         p.PersonId,
				Name:             p.Name,
				Role:             p.Role,
				RelationshipType: p.RelationshipType,
				RecentThemes:     []string{},
			}
			msgs, err := b.messageRepo.ListByPerson(ctx, req.UserID, p.PersonId, b.historyLimit)
			if err != nil {
				zlog.Warn("加载成员历史失败", zap.String("personID", p.PersonId), zap.Error(err))
			} else {
				pc.MessageCount = len(msgs)
				pc.RecentThemes = b.extractor.ExtractThemes(msgs)
			}
			allPeople[i] = pc
		}(i)
	}
	for i := range topics {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t := topics[i]
			tc := contextdata.TopicContext{
				TopicId:      t.TopicId,
				Title:        t.Title,
				Status:       t.Status,
				RecentThemes: []string{},
			}
			msgs, err := b.messageRepo.ListByTopic(ctx, req.UserID, t.TopicId, b.historyLimit)
			if err != nil {
				zlog.Warn("加载话题历史失败", zap.String("topicID", t.TopicId), zap.Error(err))
			} else {
				tc.MessageCount = len(msgs)
				tc.RecentThemes = b.extractor.ExtractThemes(msgs)
			}
			allTopics[i] = tc
		}(i)
	}
	if b.searcher != nil && strings.TrimSpace(req.CurrentQuery) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opts := aiRepo.SearchOptions{}
			if req.CurrentEntityID != "" {
				if req.IsTopicConversation {
					opts.TopicID = req.CurrentEntityID
				} else {
					opts.PersonID = req.CurrentEntityID
				}
			}
			semanticHits = b.searcher.SearchSimilar(ctx, req.UserID, req.CurrentQuery, opts)
		}()
	}
	wg.Wait()

	insights := buildInsights(teamCtx, allPeople, allTopics)

	data = &contextdata.ManagementContextData{
		TeamContext:               teamCtx,
		AllPeople:                 allPeople,
		AllTopics:                 allTopics,
		CrossConversationInsights: insights,
	}
	if len(semanticHits) > 0 {
		data.SemanticContext = &contextdata.SemanticContext{
			Query: req.CurrentQuery,
			Hits:  semanticHits,
		}
	}
	data.ContextSummary = fmt.Sprintf("%d people, %d topics, %d insights", len(allPeople), len(allTopics), len(insights))
	return data
}

func buildTeamContext(people []teamEntity.Person) contextdata.TeamContext {
	tc := contextdata.TeamContext{
		TotalPeople:          len(people),
		PeopleByRole:         map[string]int{},
		PeopleByRelationship: map[string]int{},
	}
	for _, p := range people {
		if p.Role != "" {
			tc.PeopleByRole[p.Role]++
		}
		tc.PeopleByRelationship[p.RelationshipType]++
	}

	if tc.TotalPeople == 0 {
		tc.TeamOverview = "No team members have been added yet."
		return tc
	}

	parts := make([]string, 0, len(tc.PeopleByRelationship))
	for _, rel := range []string{
		teamEntity.RelationshipDirectReport,
		teamEntity.RelationshipManager,
		teamEntity.RelationshipPeer,
		teamEntity.RelationshipStakeholder,
		teamEntity.RelationshipAssistant,
	} {
		if n := tc.PeopleByRelationship[rel]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(rel, "_", " ")))
		}
	}
	tc.TeamOverview = fmt.Sprintf("You work with %d people: %s.", tc.TotalPeople, strings.Join(parts, ", "))
	return tc
}

// buildInsights 产出跨会话洞察：复现主题、团队构成与 General 话题提醒
func buildInsights(teamCtx contextdata.TeamContext, people []contextdata.PersonContext, topics []contextdata.TopicContext) []string {
	insights := []string{}

	// 按首次出现顺序统计每个主题覆盖的实体数
	themeOrder := []string{}
	themeCount := map[string]int{}
	bump := func(themes []string) {
		for _, th := range themes {
			if _, ok := themeCount[th]; !ok {
				themeOrder = append(themeOrder, th)
			}
			themeCount[th]++
		}
	}
	for _, p := range people {
		bump(p.RecentThemes)
	}
	for _, t := range topics {
		bump(t.RecentThemes)
	}
	for _, th := range themeOrder {
		if n := themeCount[th]; n >= 2 {
			insights = append(insights, fmt.Sprintf("\"%s\" is a recurring theme across %d of your conversations", th, n))
		}
	}

	if n := teamCtx.PeopleByRelationship[teamEntity.RelationshipDirectReport]; n > 0 {
		insights = append(insights, fmt.Sprintf("You're managing %d direct report(s)", n))
	}

	for _, t := range topics {
		if t.Title == teamEntity.GeneralTopicTitle && t.MessageCount > 0 {
			insights = append(insights, "You have ongoing notes in your General coaching conversation")
			break
		}
	}

	return insights
}
