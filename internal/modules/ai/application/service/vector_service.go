package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Mano/internal/config"
	"Mano/internal/modules/ai/domain/contextdata"
	"Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/domain/vector"
	"Mano/internal/modules/ai/infrastructure/chunking"
	"Mano/pkg/zlog"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"
)

// 语义检索的缺省参数
const (
	defaultSimilarityThreshold = 0.78
	defaultSearchLimit         = 10
)

// StoreEmbeddingRequest 一条消息（或文件）内容的向量化请求
type StoreEmbeddingRequest struct {
	UserID      string
	PersonID    string
	TopicID     string
	MessageID   string
	MessageType string // user / assistant
	ContentType string // message / file
	Content     string
}

// VectorService 封装向量化、存储与语义检索。
// Embed 透传上游错误；SearchSimilar 对外永不失败，出错时记日志并返回空集。
type VectorService struct {
	embedder  embedding.Embedder
	store     repository.VectorStore
	ledger    repository.ConversationEmbeddingRepository
	chunker   *chunking.Chunker
	vectorDim int

	threshold float64
	limit     int
}

func NewVectorService(
	embedder embedding.Embedder,
	store repository.VectorStore,
	ledger repository.ConversationEmbeddingRepository,
	vectorDim int,
	conf *config.Config,
) *VectorService {
	threshold := defaultSimilarityThreshold
	limit := defaultSearchLimit
	chunkMax := chunking.DefaultMaxChunkChars
	if conf != nil {
		if conf.ContextConfig.SimilarityThreshold > 0 {
			threshold = conf.ContextConfig.SimilarityThreshold
		}
		if conf.ContextConfig.SearchLimit > 0 {
			limit = conf.ContextConfig.SearchLimit
		}
		if conf.ContextConfig.ChunkMaxChars > 0 {
			chunkMax = conf.ContextConfig.ChunkMaxChars
		}
	}
	return &VectorService{
		embedder:  embedder,
		store:     store,
		ledger:    ledger,
		chunker:   chunking.NewChunker(chunkMax),
		vectorDim: vectorDim,
		threshold: threshold,
		limit:     limit,
	}
}

// Embed 把文本转成向量，错误原样上抛
func (s *VectorService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	vecs, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder returned empty vector")
	}
	out := make([]float32, len(vecs[0]))
	for i, v := range vecs[0] {
		out[i] = float32(v)
	}
	return out, nil
}

// SearchSimilar 语义检索历史会话片段。任何一步失败都只降级为空结果。
func (s *VectorService) SearchSimilar(ctx context.Context, userID, query string, opts repository.SearchOptions) []contextdata.SemanticHit {
	if strings.TrimSpace(query) == "" || strings.TrimSpace(userID) == "" {
		return []contextdata.SemanticHit{}
	}
	if opts.Threshold <= 0 {
		opts.Threshold = s.threshold
	}
	if opts.Limit <= 0 {
		opts.Limit = s.limit
	}

	qv, err := s.Embed(ctx, query)
	if err != nil {
		zlog.Warn("语义检索向量化失败，降级为空结果", zap.String("userID", userID), zap.Error(err))
		return []contextdata.SemanticHit{}
	}

	raw, err := s.store.Search(ctx, qv, userID, opts)
	if err != nil {
		zlog.Warn("语义检索查询失败，降级为空结果", zap.String("userID", userID), zap.Error(err))
		return []contextdata.SemanticHit{}
	}

	hits := make([]contextdata.SemanticHit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, contextdata.SemanticHit{
			Content:     h.Content,
			Similarity:  float64(h.Score),
			MessageType: h.MessageType,
			ContentType: h.ContentType,
		})
	}
	return hits
}

// StoreEmbedding 分块、向量化并写入向量库与台账。
// 错误上抛由调用方决策：聊天主链路吞掉只记日志，消费者侧用于重试。
func (s *VectorService) StoreEmbedding(ctx context.Context, req StoreEmbeddingRequest) error {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil
	}
	if req.UserID == "" || req.MessageID == "" {
		return fmt.Errorf("store embedding missing userID/messageID")
	}
	if req.MessageType == "" {
		req.MessageType = vector.MessageTypeUser
	}
	if req.ContentType == "" {
		req.ContentType = vector.ContentTypeMessage
	}

	chunks := s.chunker.Chunk(content)
	if len(chunks) == 0 {
		return nil
	}

	items := make([]repository.VectorUpsertItem, 0, len(chunks))
	rows := make([]vector.ConversationEmbedding, 0, len(chunks))
	now := time.Now()
	for i, chunk := range chunks {
		vec, err := s.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		// 按 message_id + content_type + chunk 序号生成确定性 ID，重放天然幂等
		vid := fmt.Sprintf("%s:%s:%d", req.MessageID, req.ContentType, i)
		items = append(items, repository.VectorUpsertItem{
			ID:          vid,
			Vector:      vec,
			UserID:      req.UserID,
			PersonID:    req.PersonID,
			TopicID:     req.TopicID,
			MessageID:   req.MessageID,
			MessageType: req.MessageType,
			ContentType: req.ContentType,
			ChunkIndex:  int64(i),
			Content:     chunk,
		})
		rows = append(rows, vector.ConversationEmbedding{
			VectorId:    vid,
			UserId:      req.UserID,
			PersonId:    nullString(req.PersonID),
			TopicId:     nullString(req.TopicID),
			MessageId:   req.MessageID,
			MessageType: req.MessageType,
			ContentType: req.ContentType,
			ChunkIndex:  i,
			Content:     chunk,
			Dim:         len(vec),
			CreatedAt:   now,
		})
	}

	if _, err := s.store.Upsert(ctx, items); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	if s.ledger != nil {
		if err := s.ledger.CreateBatch(ctx, rows); err != nil {
			// 台账落库失败不影响向量可用性
			zlog.Warn("向量台账写入失败", zap.String("messageID", req.MessageID), zap.Error(err))
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
