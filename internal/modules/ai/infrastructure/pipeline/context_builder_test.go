package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Mano/internal/modules/ai/domain/contextdata"
	aiRepo "Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/infrastructure/transform"
	chatEntity "Mano/internal/modules/chat/domain/entity"
	teamEntity "Mano/internal/modules/team/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ---- 测试替身 ----

type fakePersonRepo struct {
	people  []teamEntity.Person
	listErr error
	getErr  error
}

func (f *fakePersonRepo) Create(ctx context.Context, person *teamEntity.Person) error {
	return nil
}

func (f *fakePersonRepo) GetByPersonId(ctx context.Context, userID, personID string) (*teamEntity.Person, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.people {
		if f.people[i].PersonId == personID {
			return &f.people[i], nil
		}
	}
	// 与真实仓储一致：未命中返回 gorm.ErrRecordNotFound，而不是 nil, nil
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePersonRepo) ListByUserId(ctx context.Context, userID string) ([]teamEntity.Person, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.people, nil
}

func (f *fakePersonRepo) Update(ctx context.Context, person *teamEntity.Person) error {
	return nil
}

func (f *fakePersonRepo) Delete(ctx context.Context, userID, personID string) error {
	return nil
}

type fakeTopicRepo struct {
	topics  []teamEntity.Topic
	listErr error

	mu      sync.Mutex
	ensured []teamEntity.Topic
	// EnsureTopic 命中已有 (user_id, title) 时返回这行
	existing *teamEntity.Topic
}

func (f *fakeTopicRepo) Create(ctx context.Context, topic *teamEntity.Topic) error {
	return nil
}

func (f *fakeTopicRepo) GetByTopicId(ctx context.Context, userID, topicID string) (*teamEntity.Topic, error) {
	for i := range f.topics {
		if f.topics[i].TopicId == topicID {
			return &f.topics[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTopicRepo) ListByUserId(ctx context.Context, userID string) ([]teamEntity.Topic, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.topics, nil
}

func (f *fakeTopicRepo) UpdateStatus(ctx context.Context, userID, topicID, status string) error {
	return nil
}

func (f *fakeTopicRepo) EnsureTopic(ctx context.Context, topic *teamEntity.Topic) (*teamEntity.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, *topic)
	if f.existing != nil {
		return f.existing, nil
	}
	return topic, nil
}

func (f *fakeTopicRepo) AddParticipants(ctx context.Context, topicID string, personIDs []string) error {
	return nil
}

func (f *fakeTopicRepo) ListParticipants(ctx context.Context, topicID string) ([]string, error) {
	return []string{}, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	byPerson map[string][]chatEntity.Message
	byTopic  map[string][]chatEntity.Message
	listErr  error

	recent    *chatEntity.Message
	recentErr error
	createErr error
	created   []chatEntity.Message
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *chatEntity.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *msg)
	return nil
}

func (f *fakeMessageRepo) GetByMessageId(ctx context.Context, userID, messageID string) (*chatEntity.Message, error) {
	return nil, nil
}

func (f *fakeMessageRepo) ListByPerson(ctx context.Context, userID, personID string, limit int) ([]chatEntity.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byPerson[personID], nil
}

func (f *fakeMessageRepo) ListByTopic(ctx context.Context, userID, topicID string, limit int) ([]chatEntity.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byTopic[topicID], nil
}

func (f *fakeMessageRepo) FindRecentUserMessage(ctx context.Context, userID, personID, topicID, content string, since time.Time) (*chatEntity.Message, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.recent, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	hits    []contextdata.SemanticHit
	gotOpts aiRepo.SearchOptions
	called  bool
}

func (f *fakeSearcher) SearchSimilar(ctx context.Context, userID, query string, opts aiRepo.SearchOptions) []contextdata.SemanticHit {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.gotOpts = opts
	return f.hits
}

func userText(content string) chatEntity.Message {
	return chatEntity.Message{Content: content, IsUser: true}
}

func newTestBuilder(people *fakePersonRepo, topics *fakeTopicRepo, messages *fakeMessageRepo, searcher SemanticSearcher) *ContextBuilder {
	return NewContextBuilder(people, topics, messages, transform.NewKeywordThemeExtractor(0, 0), searcher, 50)
}

// ---- Build ----

func TestBuildMinimalOnEmptyUserID(t *testing.T) {
	b := newTestBuilder(&fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, nil)

	data := b.Build(context.Background(), BuildContextRequest{UserID: "  "})
	require.NotNil(t, data)
	assert.Equal(t, contextdata.FallbackOverview, data.TeamContext.TeamOverview)
	assert.NotNil(t, data.AllPeople)
	assert.NotNil(t, data.CrossConversationInsights)
}

func TestBuildMinimalOnPersonRepoError(t *testing.T) {
	people := &fakePersonRepo{listErr: errors.New("db down")}
	b := newTestBuilder(people, &fakeTopicRepo{}, &fakeMessageRepo{}, nil)

	data := b.Build(context.Background(), BuildContextRequest{UserID: "U1"})
	require.NotNil(t, data)
	assert.Equal(t, contextdata.FallbackOverview, data.TeamContext.TeamOverview)
	assert.Empty(t, data.AllPeople)
}

func TestBuildTeamOverviewAndInsights(t *testing.T) {
	people := &fakePersonRepo{people: []teamEntity.Person{
		{PersonId: "P1", Name: "Alice", Role: "Engineer", RelationshipType: teamEntity.RelationshipDirectReport},
		{PersonId: "P2", Name: "Bob", Role: "Designer", RelationshipType: teamEntity.RelationshipDirectReport},
		{PersonId: "P3", Name: "Carol", RelationshipType: teamEntity.RelationshipPeer},
	}}
	messages := &fakeMessageRepo{byPerson: map[string][]chatEntity.Message{
		"P1": {userText("her feedback on the deadline was useful")},
		"P2": {userText("he wants more feedback about growth")},
	}}
	b := newTestBuilder(people, &fakeTopicRepo{}, messages, nil)

	data := b.Build(context.Background(), BuildContextRequest{UserID: "U1"})
	require.NotNil(t, data)

	assert.Equal(t, 3, data.TeamContext.TotalPeople)
	assert.Equal(t, "You work with 3 people: 2 direct report, 1 peer.", data.TeamContext.TeamOverview)
	assert.Equal(t, 2, data.TeamContext.PeopleByRelationship[teamEntity.RelationshipDirectReport])

	// 结果顺序与成员列表顺序一致，与各 goroutine 完成顺序无关
	require.Len(t, data.AllPeople, 3)
	assert.Equal(t, "Alice", data.AllPeople[0].Name)
	assert.Equal(t, []string{"feedback", "deadline"}, data.AllPeople[0].RecentThemes)
	assert.Equal(t, "Bob", data.AllPeople[1].Name)
	assert.Equal(t, "Carol", data.AllPeople[2].Name)
	assert.Empty(t, data.AllPeople[2].RecentThemes)

	assert.Contains(t, data.CrossConversationInsights, "\"feedback\" is a recurring theme across 2 of your conversations")
	assert.Contains(t, data.CrossConversationInsights, "You're managing 2 direct report(s)")
	assert.Equal(t, "3 people, 0 topics, 2 insights", data.ContextSummary)
}

func TestBuildTopicListErrorDegrades(t *testing.T) {
	people := &fakePersonRepo{people: []teamEntity.Person{
		{PersonId: "P1", Name: "Alice", RelationshipType: teamEntity.RelationshipDirectReport},
	}}
	topics := &fakeTopicRepo{listErr: errors.New("timeout")}
	b := newTestBuilder(people, topics, &fakeMessageRepo{}, nil)

	data := b.Build(context.Background(), BuildContextRequest{UserID: "U1", IsTopicConversation: true})
	require.NotNil(t, data)
	assert.Len(t, data.AllPeople, 1)
	assert.Empty(t, data.AllTopics)
}

func TestBuildMessageRepoErrorDegrades(t *testing.T) {
	people := &fakePersonRepo{people: []teamEntity.Person{
		{PersonId: "P1", Name: "Alice", RelationshipType: teamEntity.RelationshipPeer},
	}}
	messages := &fakeMessageRepo{listErr: errors.New("db down")}
	b := newTestBuilder(people, &fakeTopicRepo{}, messages, nil)

	data := b.Build(context.Background(), BuildContextRequest{UserID: "U1"})
	require.Len(t, data.AllPeople, 1)
	assert.Zero(t, data.AllPeople[0].MessageCount)
	assert.Empty(t, data.AllPeople[0].RecentThemes)
}

func TestBuildGeneralTopicInsight(t *testing.T) {
	topics := &fakeTopicRepo{topics: []teamEntity.Topic{
		{TopicId: "T1", Title: teamEntity.GeneralTopicTitle, Status: teamEntity.TopicStatusActive},
	}}
	messages := &fakeMessageRepo{byTopic: map[string][]chatEntity.Message{
		"T1": {userText("some ongoing note")},
	}}
	b := newTestBuilder(&fakePersonRepo{}, topics, messages, nil)

	data := b.Build(context.Background(), BuildContextRequest{UserID: "U1", IsTopicConversation: true})
	assert.Contains(t, data.CrossConversationInsights, "You have ongoing notes in your General coaching conversation")
}

func TestBuildSemanticContext(t *testing.T) {
	searcher := &fakeSearcher{hits: []contextdata.SemanticHit{
		{Content: "past chat about onboarding", Similarity: 0.91, MessageType: "user", ContentType: "message"},
	}}
	b := newTestBuilder(&fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, searcher)

	data := b.Build(context.Background(), BuildContextRequest{
		UserID:          "U1",
		CurrentEntityID: "P1",
		CurrentQuery:    "how did onboarding go",
	})
	require.NotNil(t, data.SemanticContext)
	assert.Equal(t, "how did onboarding go", data.SemanticContext.Query)
	assert.Len(t, data.SemanticContext.Hits, 1)
	assert.Equal(t, "P1", searcher.gotOpts.PersonID)
	assert.Empty(t, searcher.gotOpts.TopicID)
}

func TestBuildSemanticSearchSkippedWithoutQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	b := newTestBuilder(&fakePersonRepo{}, &fakeTopicRepo{}, &fakeMessageRepo{}, searcher)

	data := b.Build(context.Background(), BuildContextRequest{UserID: "U1", CurrentQuery: "   "})
	assert.Nil(t, data.SemanticContext)
	assert.False(t, searcher.called)
}

func TestFormatForPromptMinimal(t *testing.T) {
	out := contextdata.Minimal().FormatForPrompt()
	assert.Contains(t, out, "TEAM OVERVIEW:")
	assert.Contains(t, out, contextdata.FallbackOverview)
}
