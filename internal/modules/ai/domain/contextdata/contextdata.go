package contextdata

import (
	"fmt"
	"strings"
)

// FallbackOverview 上下文构建失败时的兜底团队概述
const FallbackOverview = "Unable to gather team context at this time."

// 注入提示词时每类实体最多展示的条数
const maxPromptEntities = 5

// TeamContext 团队构成统计
type TeamContext struct {
	TotalPeople          int
	PeopleByRole         map[string]int
	PeopleByRelationship map[string]int
	TeamOverview         string
}

// PersonContext 单个成员的会话画像
type PersonContext struct {
	PersonId         string
	Name             string
	Role             string
	RelationshipType string
	RecentThemes     []string
	MessageCount     int
}

// TopicContext 单个话题的会话画像
type TopicContext struct {
	TopicId      string
	Title        string
	Status       string
	RecentThemes []string
	MessageCount int
}

// SemanticHit 语义检索命中的历史片段
type SemanticHit struct {
	Content     string
	Similarity  float64
	MessageType string
	ContentType string
}

// SemanticContext 语义检索结果，获取失败时整体缺省
type SemanticContext struct {
	Query string
	Hits  []SemanticHit
}

// ManagementContextData 每次聊天回合重建的管理上下文，只存在于内存
type ManagementContextData struct {
	TeamContext               TeamContext
	AllPeople                 []PersonContext
	AllTopics                 []TopicContext
	CrossConversationInsights []string
	SemanticContext           *SemanticContext
	ContextSummary            string
}

// Minimal 返回结构有效的空上下文（集合非 nil），用于优雅降级
func Minimal() *ManagementContextData {
	return &ManagementContextData{
		TeamContext: TeamContext{
			PeopleByRole:         map[string]int{},
			PeopleByRelationship: map[string]int{},
			TeamOverview:         FallbackOverview,
		},
		AllPeople:                 []PersonContext{},
		AllTopics:                 []TopicContext{},
		CrossConversationInsights: []string{},
		ContextSummary:            FallbackOverview,
	}
}

// FormatForPrompt 拼接团队概述、洞察与最多 maxPromptEntities 个实体的近期主题
func (d *ManagementContextData) FormatForPrompt() string {
	if d == nil {
		return FallbackOverview
	}

	var b strings.Builder
	b.WriteString("TEAM OVERVIEW:\n")
	b.WriteString(d.TeamContext.TeamOverview)
	b.WriteString("\n")

	if len(d.CrossConversationInsights) > 0 {
		b.WriteString("\nINSIGHTS:\n")
		for _, insight := range d.CrossConversationInsights {
			b.WriteString("- ")
			b.WriteString(insight)
			b.WriteString("\n")
		}
	}

	shown := 0
	if len(d.AllPeople) > 0 {
		b.WriteString("\nRECENT THEMES BY PERSON:\n")
		for _, p := range d.AllPeople {
			if shown >= maxPromptEntities {
				break
			}
			if len(p.RecentThemes) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("- %s (%s): %s\n", p.Name, p.RelationshipType, strings.Join(p.RecentThemes, ", ")))
			shown++
		}
	}
	if len(d.AllTopics) > 0 && shown < maxPromptEntities {
		b.WriteString("\nRECENT THEMES BY TOPIC:\n")
		for _, t := range d.AllTopics {
			if shown >= maxPromptEntities {
				break
			}
			if len(t.RecentThemes) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("- %s: %s\n", t.Title, strings.Join(t.RecentThemes, ", ")))
			shown++
		}
	}

	if d.SemanticContext != nil && len(d.SemanticContext.Hits) > 0 {
		b.WriteString("\nRELATED PAST CONVERSATIONS:\n")
		for _, h := range d.SemanticContext.Hits {
			b.WriteString("- ")
			b.WriteString(h.Content)
			b.WriteString("\n")
		}
	}

	return b.String()
}
