package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/domain/vector"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- 测试替身 ----

type fakeEmbedder struct {
	err   error
	dim   int
	calls []string
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, texts...)
	out := make([][]float64, len(texts))
	for i := range texts {
		vec := make([]float64, f.dim)
		for j := range vec {
			vec[j] = 0.5
		}
		out[i] = vec
	}
	return out, nil
}

type fakeVectorStore struct {
	upserted  []repository.VectorUpsertItem
	upsertErr error

	hits      []repository.VectorSearchHit
	searchErr error
	gotOpts   repository.SearchOptions
}

func (f *fakeVectorStore) Upsert(ctx context.Context, items []repository.VectorUpsertItem) ([]string, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserted = append(f.upserted, items...)
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, nil
}

func (f *fakeVectorStore) DeleteByIDs(ctx context.Context, ids []string) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, vec []float32, userID string, opts repository.SearchOptions) ([]repository.VectorSearchHit, error) {
	f.gotOpts = opts
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

type fakeLedger struct {
	rows      []vector.ConversationEmbedding
	createErr error
}

func (f *fakeLedger) CreateBatch(ctx context.Context, rows []vector.ConversationEmbedding) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeLedger) DeleteByMessageId(ctx context.Context, userID, messageID string) error {
	return nil
}

var _ embedding.Embedder = (*fakeEmbedder)(nil)

// ---- Embed ----

func TestEmbedPropagatesError(t *testing.T) {
	svc := NewVectorService(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeVectorStore{}, &fakeLedger{}, 4, nil)

	_, err := svc.Embed(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEmbedConvertsToFloat32(t *testing.T) {
	svc := NewVectorService(&fakeEmbedder{dim: 4}, &fakeVectorStore{}, &fakeLedger{}, 4, nil)

	vec, err := svc.Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	assert.Equal(t, float32(0.5), vec[0])
}

// ---- SearchSimilar ----

func TestSearchSimilarEmptyOnEmbedFailure(t *testing.T) {
	svc := NewVectorService(&fakeEmbedder{err: errors.New("down")}, &fakeVectorStore{}, &fakeLedger{}, 4, nil)

	hits := svc.SearchSimilar(context.Background(), "U1", "query", repository.SearchOptions{})
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestSearchSimilarEmptyOnStoreFailure(t *testing.T) {
	store := &fakeVectorStore{searchErr: errors.New("milvus unreachable")}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, &fakeLedger{}, 4, nil)

	hits := svc.SearchSimilar(context.Background(), "U1", "query", repository.SearchOptions{})
	assert.Empty(t, hits)
}

func TestSearchSimilarAppliesDefaults(t *testing.T) {
	store := &fakeVectorStore{}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, &fakeLedger{}, 4, nil)

	svc.SearchSimilar(context.Background(), "U1", "query", repository.SearchOptions{})
	assert.InDelta(t, defaultSimilarityThreshold, store.gotOpts.Threshold, 1e-9)
	assert.Equal(t, defaultSearchLimit, store.gotOpts.Limit)
}

func TestSearchSimilarKeepsCallerOptions(t *testing.T) {
	store := &fakeVectorStore{}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, &fakeLedger{}, 4, nil)

	svc.SearchSimilar(context.Background(), "U1", "query", repository.SearchOptions{
		Threshold: 0.9,
		Limit:     3,
		PersonID:  "P1",
	})
	assert.InDelta(t, 0.9, store.gotOpts.Threshold, 1e-9)
	assert.Equal(t, 3, store.gotOpts.Limit)
	assert.Equal(t, "P1", store.gotOpts.PersonID)
}

func TestSearchSimilarBlankInput(t *testing.T) {
	svc := NewVectorService(&fakeEmbedder{dim: 4}, &fakeVectorStore{}, &fakeLedger{}, 4, nil)

	assert.Empty(t, svc.SearchSimilar(context.Background(), "U1", "   ", repository.SearchOptions{}))
	assert.Empty(t, svc.SearchSimilar(context.Background(), "", "query", repository.SearchOptions{}))
}

func TestSearchSimilarMapsHits(t *testing.T) {
	store := &fakeVectorStore{hits: []repository.VectorSearchHit{
		{Content: "we talked about burnout", Score: 0.92, MessageType: "user", ContentType: "message"},
	}}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, &fakeLedger{}, 4, nil)

	hits := svc.SearchSimilar(context.Background(), "U1", "burnout", repository.SearchOptions{})
	require.Len(t, hits, 1)
	assert.Equal(t, "we talked about burnout", hits[0].Content)
	assert.InDelta(t, 0.92, hits[0].Similarity, 1e-6)
}

// ---- StoreEmbedding ----

func TestStoreEmbeddingBlankContentIsNoop(t *testing.T) {
	store := &fakeVectorStore{}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, &fakeLedger{}, 4, nil)

	err := svc.StoreEmbedding(context.Background(), StoreEmbeddingRequest{
		UserID: "U1", MessageID: "M1", Content: "   ",
	})
	require.NoError(t, err)
	assert.Empty(t, store.upserted)
}

func TestStoreEmbeddingMissingIdentity(t *testing.T) {
	svc := NewVectorService(&fakeEmbedder{dim: 4}, &fakeVectorStore{}, &fakeLedger{}, 4, nil)

	err := svc.StoreEmbedding(context.Background(), StoreEmbeddingRequest{Content: "hello"})
	require.Error(t, err)
}

func TestStoreEmbeddingDeterministicVectorIDs(t *testing.T) {
	store := &fakeVectorStore{}
	ledger := &fakeLedger{}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, ledger, 4, nil)
	// 压小分块上限强制多块
	svc.chunker.MaxChars = 20

	content := "First sentence here. Second sentence too. Third wraps it up."
	err := svc.StoreEmbedding(context.Background(), StoreEmbeddingRequest{
		UserID:      "U1",
		PersonID:    "P1",
		MessageID:   "M1",
		MessageType: vector.MessageTypeAssistant,
		ContentType: vector.ContentTypeMessage,
		Content:     content,
	})
	require.NoError(t, err)
	require.Greater(t, len(store.upserted), 1)

	var rebuilt strings.Builder
	for i, item := range store.upserted {
		assert.Equal(t, fmt.Sprintf("M1:message:%d", i), item.ID)
		assert.Equal(t, "U1", item.UserID)
		assert.Equal(t, "P1", item.PersonID)
		assert.Equal(t, int64(i), item.ChunkIndex)
		rebuilt.WriteString(item.Content)
	}
	assert.Equal(t, content, rebuilt.String())

	// 台账与向量一一对应
	require.Len(t, ledger.rows, len(store.upserted))
	assert.Equal(t, "M1:message:0", ledger.rows[0].VectorId)
	assert.Equal(t, vector.MessageTypeAssistant, ledger.rows[0].MessageType)
	assert.Equal(t, 4, ledger.rows[0].Dim)
	assert.True(t, ledger.rows[0].PersonId.Valid)
	assert.False(t, ledger.rows[0].TopicId.Valid)
}

func TestStoreEmbeddingUpsertFailure(t *testing.T) {
	store := &fakeVectorStore{upsertErr: errors.New("milvus write failed")}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, &fakeLedger{}, 4, nil)

	err := svc.StoreEmbedding(context.Background(), StoreEmbeddingRequest{
		UserID: "U1", MessageID: "M1", Content: "hello there",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "milvus write failed")
}

func TestStoreEmbeddingLedgerFailureIsTolerated(t *testing.T) {
	store := &fakeVectorStore{}
	ledger := &fakeLedger{createErr: errors.New("pg down")}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, ledger, 4, nil)

	// 台账失败不影响向量可用性
	err := svc.StoreEmbedding(context.Background(), StoreEmbeddingRequest{
		UserID: "U1", MessageID: "M1", Content: "hello there",
	})
	require.NoError(t, err)
	assert.Len(t, store.upserted, 1)
}

func TestStoreEmbeddingDefaultsTypes(t *testing.T) {
	store := &fakeVectorStore{}
	svc := NewVectorService(&fakeEmbedder{dim: 4}, store, &fakeLedger{}, 4, nil)

	err := svc.StoreEmbedding(context.Background(), StoreEmbeddingRequest{
		UserID: "U1", MessageID: "M1", Content: "hello",
	})
	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, vector.MessageTypeUser, store.upserted[0].MessageType)
	assert.Equal(t, vector.ContentTypeMessage, store.upserted[0].ContentType)
}
