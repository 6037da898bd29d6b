package repository

import "context"

// VectorStore 是 domain 层定义的向量库能力抽象。
//
// 设计约束：
// 1) application / domain 只能依赖本接口，不应直接依赖 Milvus SDK。
// 2) infrastructure 通过适配器实现本接口（MilvusStore），从而做到可替换。
//
// 写入与检索始终携带 user_id，保证多租户隔离。

// VectorUpsertItem 向量写入所需的标准字段
type VectorUpsertItem struct {
	ID           string
	Vector       []float32
	UserID       string
	PersonID     string
	TopicID      string
	MessageID    string
	MessageType  string
	ContentType  string
	ChunkIndex   int64
	Content      string
	MetadataJSON string
}

// VectorSearchHit 检索命中，按相似度降序
type VectorSearchHit struct {
	ID           string
	Score        float32
	UserID       string
	PersonID     string
	TopicID      string
	MessageID    string
	MessageType  string
	ContentType  string
	ChunkIndex   int64
	Content      string
	MetadataJSON string
}

// SearchOptions 相似检索参数；Threshold 是相似度下界，由存储侧过滤
type SearchOptions struct {
	Threshold float64
	Limit     int
	PersonID  string
	TopicID   string
}

// VectorStore 向量数据库接口
type VectorStore interface {
	Upsert(ctx context.Context, items []VectorUpsertItem) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	Search(ctx context.Context, vector []float32, userID string, opts SearchOptions) ([]VectorSearchHit, error)
}
