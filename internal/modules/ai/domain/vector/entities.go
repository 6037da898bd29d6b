package vector

import (
	"database/sql"
	"time"
)

// 向量记录的消息类型
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
)

// 向量记录的内容类型
const (
	ContentTypeMessage = "message"
	ContentTypeFile    = "file"
)

// ConversationEmbedding 会话向量台账，真实向量存在 Milvus，此表只做可观测与对账
type ConversationEmbedding struct {
	Id          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	VectorId    string         `gorm:"column:vector_id;type:varchar(128);not null;uniqueIndex:uniq_conv_embed_vector"`
	UserId      string         `gorm:"column:user_id;type:char(33);not null;index:idx_conv_embed_user"`
	PersonId    sql.NullString `gorm:"column:person_id;type:char(33)"`
	TopicId     sql.NullString `gorm:"column:topic_id;type:char(33)"`
	MessageId   string         `gorm:"column:message_id;type:char(33);not null;index:idx_conv_embed_message"`
	MessageType string         `gorm:"column:message_type;type:varchar(10);not null"`
	ContentType string         `gorm:"column:content_type;type:varchar(10);not null"`
	ChunkIndex  int            `gorm:"column:chunk_index;not null"`
	Content     string         `gorm:"column:content;type:text"`
	Dim         int            `gorm:"column:dim;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
}

func (ConversationEmbedding) TableName() string {
	return "conversation_embedding"
}

// EmbedEvent 状态
const (
	EmbedEventStatusPending    int8 = 0
	EmbedEventStatusPublished  int8 = 1
	EmbedEventStatusFailed     int8 = 2
	EmbedEventStatusPublishing int8 = 3
)

// EmbedEvent 向量化 outbox 表，relay 轮询后发往 Kafka
type EmbedEvent struct {
	Id          int64        `gorm:"column:id;primaryKey;autoIncrement"`
	UserId      string       `gorm:"column:user_id;type:char(33);not null;index:idx_embed_event_user"`
	PayloadJson string       `gorm:"column:payload_json;type:text;not null"`
	DedupKey    string       `gorm:"column:dedup_key;type:varchar(160);not null;uniqueIndex:uniq_embed_event_dedup"`
	Status      int8         `gorm:"column:status;not null;default:0;index:idx_embed_event_status"`
	RetryCount  int          `gorm:"column:retry_count;not null;default:0"`
	NextRetryAt sql.NullTime `gorm:"column:next_retry_at;index:idx_embed_event_next_retry"`
	LastError   string       `gorm:"column:last_error;type:varchar(255)"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;not null"`
}

func (EmbedEvent) TableName() string {
	return "embed_event"
}
