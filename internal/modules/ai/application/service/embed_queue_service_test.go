package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"Mano/internal/modules/ai/domain/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedEventRepo struct {
	mu        sync.Mutex
	nextID    int64
	events    []vector.EmbedEvent
	seen      map[string]bool
	published []int64
	failed    []int64
}

func newFakeEmbedEventRepo() *fakeEmbedEventRepo {
	return &fakeEmbedEventRepo{seen: map[string]bool{}}
}

// Enqueue 模拟 OnConflict DoNothing：重复 dedup_key 不回填主键
func (f *fakeEmbedEventRepo) Enqueue(ctx context.Context, ev *vector.EmbedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[ev.DedupKey] {
		return nil
	}
	f.seen[ev.DedupKey] = true
	f.nextID++
	ev.Id = f.nextID
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeEmbedEventRepo) GetByID(ctx context.Context, id int64) (*vector.EmbedEvent, error) {
	return nil, nil
}

func (f *fakeEmbedEventRepo) ClaimForPublish(ctx context.Context, now time.Time, limit int) ([]vector.EmbedEvent, error) {
	return nil, nil
}

func (f *fakeEmbedEventRepo) MarkPublished(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	return nil
}

func (f *fakeEmbedEventRepo) MarkPublishFailed(ctx context.Context, id int64, nextRetryAt time.Time, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeEmbedEventRepo) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestEnqueueWritesOutboxRow(t *testing.T) {
	repo := newFakeEmbedEventRepo()
	svc := NewEmbedQueueService(repo, nil, true)

	svc.Enqueue(context.Background(), StoreEmbeddingRequest{
		UserID:      "U1",
		PersonID:    "P1",
		MessageID:   "M1",
		MessageType: vector.MessageTypeUser,
		ContentType: vector.ContentTypeMessage,
		Content:     "hello there",
	})

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, vector.EmbedEventStatusPending, ev.Status)
	assert.True(t, strings.HasPrefix(ev.DedupKey, "emb_"))

	var payload EmbedPayload
	require.NoError(t, json.Unmarshal([]byte(ev.PayloadJson), &payload))
	assert.Equal(t, "U1", payload.UserID)
	assert.Equal(t, "M1", payload.MessageID)
	assert.Equal(t, "hello there", payload.Content)
}

func TestEnqueueDuplicateIsIdempotent(t *testing.T) {
	repo := newFakeEmbedEventRepo()
	svc := NewEmbedQueueService(repo, nil, true)

	req := StoreEmbeddingRequest{UserID: "U1", MessageID: "M1", Content: "hello"}
	svc.Enqueue(context.Background(), req)
	svc.Enqueue(context.Background(), req)

	assert.Len(t, repo.events, 1)
}

func TestEnqueueSkipsBlankContent(t *testing.T) {
	repo := newFakeEmbedEventRepo()
	svc := NewEmbedQueueService(repo, nil, true)

	svc.Enqueue(context.Background(), StoreEmbeddingRequest{UserID: "U1", MessageID: "M1", Content: "   "})
	svc.Enqueue(context.Background(), StoreEmbeddingRequest{MessageID: "M1", Content: "hello"})

	assert.Empty(t, repo.events)
}

func TestEnqueueLocalFallbackMarksPublished(t *testing.T) {
	repo := newFakeEmbedEventRepo()
	vectorSvc := NewVectorService(&fakeEmbedder{dim: 4}, &fakeVectorStore{}, &fakeLedger{}, 4, nil)
	svc := NewEmbedQueueService(repo, vectorSvc, false)

	svc.Enqueue(context.Background(), StoreEmbeddingRequest{UserID: "U1", MessageID: "M1", Content: "hello"})

	// 进程内兜底在后台 goroutine 执行
	require.Eventually(t, func() bool {
		return repo.publishedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmbedDedupKey(t *testing.T) {
	k1 := embedDedupKey("U1", "M1", vector.ContentTypeMessage)
	k2 := embedDedupKey("U1", "M1", vector.ContentTypeMessage)
	k3 := embedDedupKey("U1", "M1", vector.ContentTypeFile)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.True(t, strings.HasPrefix(k1, "emb_"))
	assert.Len(t, k1, 4+64)
}
