package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Mano/internal/modules/ai/domain/repository"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore repository.VectorStore 的 Milvus 适配器
type MilvusStore struct {
	cli         mclient.Client
	collection  string
	vectorField string
	metricType  entity.MetricType
	vectorDim   int
}

func NewMilvusStore(cli mclient.Client, collection string, vectorDim int, metricType entity.MetricType) (*MilvusStore, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	if metricType == "" {
		metricType = entity.COSINE
	}
	return &MilvusStore{
		cli:         cli,
		collection:  collection,
		vectorField: "vector",
		metricType:  metricType,
		vectorDim:   vectorDim,
	}, nil
}

func (s *MilvusStore) Upsert(ctx context.Context, items []repository.VectorUpsertItem) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	ids := make([]string, 0, len(items))
	vectors := make([][]float32, 0, len(items))
	userIDs := make([]string, 0, len(items))
	personIDs := make([]string, 0, len(items))
	topicIDs := make([]string, 0, len(items))
	messageIDs := make([]string, 0, len(items))
	messageTypes := make([]string, 0, len(items))
	contentTypes := make([]string, 0, len(items))
	chunkIndexes := make([]int64, 0, len(items))
	contents := make([]string, 0, len(items))
	metas := make([][]byte, 0, len(items))

	for _, it := range items {
		if it.ID == "" {
			return nil, errors.New("upsert item missing ID")
		}
		if len(it.Vector) != s.vectorDim {
			return nil, fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", it.ID, len(it.Vector), s.vectorDim)
		}
		ids = append(ids, it.ID)
		vectors = append(vectors, it.Vector)
		userIDs = append(userIDs, it.UserID)
		personIDs = append(personIDs, it.PersonID)
		topicIDs = append(topicIDs, it.TopicID)
		messageIDs = append(messageIDs, it.MessageID)
		messageTypes = append(messageTypes, it.MessageType)
		contentTypes = append(contentTypes, it.ContentType)
		chunkIndexes = append(chunkIndexes, it.ChunkIndex)
		contents = append(contents, it.Content)
		meta := it.MetadataJSON
		if strings.TrimSpace(meta) == "" {
			meta = "{}"
		}
		metas = append(metas, []byte(meta))
	}

	_, err := s.cli.Upsert(
		ctx,
		s.collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(s.vectorField, s.vectorDim, vectors),
		entity.NewColumnVarChar("user_id", userIDs),
		entity.NewColumnVarChar("person_id", personIDs),
		entity.NewColumnVarChar("topic_id", topicIDs),
		entity.NewColumnVarChar("message_id", messageIDs),
		entity.NewColumnVarChar("message_type", messageTypes),
		entity.NewColumnVarChar("content_type", contentTypes),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnJSONBytes("metadata", metas),
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MilvusStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	expr := fmt.Sprintf(`id in ["%s"]`, strings.Join(ids, `","`))
	return s.cli.Delete(ctx, s.collection, "", expr)
}

// Search 带 user_id 隔离与可选 person/topic 过滤；阈值转成 radius 让存储侧截断
func (s *MilvusStore) Search(ctx context.Context, vector []float32, userID string, opts repository.SearchOptions) ([]repository.VectorSearchHit, error) {
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("vector dim mismatch, got=%d want=%d", len(vector), s.vectorDim)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("userID is empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	if opts.Threshold > 0 {
		// COSINE 下 radius 是相似度下界
		sp.AddRadius(opts.Threshold)
	}

	expr := fmt.Sprintf(`user_id == "%s"`, userID)
	if pid := strings.TrimSpace(opts.PersonID); pid != "" {
		expr += fmt.Sprintf(` && person_id == "%s"`, pid)
	}
	if tid := strings.TrimSpace(opts.TopicID); tid != "" {
		expr += fmt.Sprintf(` && topic_id == "%s"`, tid)
	}

	res, err := s.cli.Search(
		ctx,
		s.collection,
		[]string{},
		expr,
		[]string{"user_id", "person_id", "topic_id", "message_id", "message_type", "content_type", "chunk_index", "content", "metadata"},
		[]entity.Vector{entity.FloatVector(vector)},
		s.vectorField,
		s.metricType,
		limit,
		sp,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []repository.VectorSearchHit{}, nil
	}
	return parseSearchResult(res[0])
}

func parseSearchResult(sr mclient.SearchResult) ([]repository.VectorSearchHit, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	hits := make([]repository.VectorSearchHit, 0, sr.ResultCount)

	idCol := sr.IDs
	userCol := columnByName(sr.Fields, "user_id")
	personCol := columnByName(sr.Fields, "person_id")
	topicCol := columnByName(sr.Fields, "topic_id")
	messageCol := columnByName(sr.Fields, "message_id")
	msgTypeCol := columnByName(sr.Fields, "message_type")
	ctTypeCol := columnByName(sr.Fields, "content_type")
	chunkCol := columnByName(sr.Fields, "chunk_index")
	contentCol := columnByName(sr.Fields, "content")
	metaCol := columnByName(sr.Fields, "metadata")

	for i := 0; i < sr.ResultCount; i++ {
		id, _ := idCol.GetAsString(i)
		score := float32(0)
		if i < len(sr.Scores) {
			score = sr.Scores[i]
		}

		h := repository.VectorSearchHit{ID: id, Score: score}
		if userCol != nil {
			v, _ := userCol.GetAsString(i)
			h.UserID = v
		}
		if personCol != nil {
			v, _ := personCol.GetAsString(i)
			h.PersonID = v
		}
		if topicCol != nil {
			v, _ := topicCol.GetAsString(i)
			h.TopicID = v
		}
		if messageCol != nil {
			v, _ := messageCol.GetAsString(i)
			h.MessageID = v
		}
		if msgTypeCol != nil {
			v, _ := msgTypeCol.GetAsString(i)
			h.MessageType = v
		}
		if ctTypeCol != nil {
			v, _ := ctTypeCol.GetAsString(i)
			h.ContentType = v
		}
		if chunkCol != nil {
			v, _ := chunkCol.GetAsInt64(i)
			h.ChunkIndex = v
		}
		if contentCol != nil {
			v, _ := contentCol.GetAsString(i)
			h.Content = v
		}
		if metaCol != nil {
			v, _ := metaCol.Get(i)
			if bs, ok := v.([]byte); ok {
				h.MetadataJSON = string(bs)
			}
		}
		hits = append(hits, h)
	}

	return hits, nil
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

var _ repository.VectorStore = (*MilvusStore)(nil)
