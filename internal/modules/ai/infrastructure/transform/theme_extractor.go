package transform

import (
	"strings"

	"Mano/internal/modules/chat/domain/entity"
)

// ThemeExtractor 主题提取策略，可注入替换（后续可换成真正的 NLP 实现）
type ThemeExtractor interface {
	ExtractThemes(messages []entity.Message) []string
}

// themeVocabulary 固定管理词表，命中顺序即输出顺序
var themeVocabulary = []string{
	"performance",
	"feedback",
	"deadline",
	"workload",
	"motivation",
	"communication",
	"conflict",
	"career",
	"growth",
	"promotion",
	"burnout",
	"hiring",
	"onboarding",
	"delegation",
	"recognition",
	"goals",
	"priorities",
	"meeting",
	"trust",
	"stress",
}

const (
	// 回看最近的用户消息条数
	defaultThemeLookback = 10
	// 单次最多返回的主题数
	defaultMaxThemes = 5
)

// KeywordThemeExtractor 词表子串匹配实现
type KeywordThemeExtractor struct {
	vocabulary []string
	lookback   int
	maxThemes  int
}

// NewKeywordThemeExtractor 构造函数，入参不合法时回退默认值
func NewKeywordThemeExtractor(lookback, maxThemes int) *KeywordThemeExtractor {
	if lookback <= 0 {
		lookback = defaultThemeLookback
	}
	if maxThemes <= 0 {
		maxThemes = defaultMaxThemes
	}
	return &KeywordThemeExtractor{
		vocabulary: themeVocabulary,
		lookback:   lookback,
		maxThemes:  maxThemes,
	}
}

// ExtractThemes 取最近 lookback 条用户消息小写拼接后做子串匹配。
// 输出按词表顺序而非词频排序，空输入返回空切片。
func (e *KeywordThemeExtractor) ExtractThemes(messages []entity.Message) []string {
	themes := []string{}
	if len(messages) == 0 {
		return themes
	}

	userTexts := make([]string, 0, e.lookback)
	for i := len(messages) - 1; i >= 0 && len(userTexts) < e.lookback; i-- {
		if messages[i].IsUser {
			userTexts = append(userTexts, messages[i].Content)
		}
	}
	if len(userTexts) == 0 {
		return themes
	}

	corpus := strings.ToLower(strings.Join(userTexts, " "))
	for _, keyword := range e.vocabulary {
		if strings.Contains(corpus, keyword) {
			themes = append(themes, keyword)
			if len(themes) >= e.maxThemes {
				break
			}
		}
	}
	return themes
}
