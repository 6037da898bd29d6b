package entity

import (
	"time"
)

// 文件处理状态
const (
	FileStatusPending    = "pending"
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// MessageFile 消息附件表，上传后由后台任务异步提取文本
type MessageFile struct {
	Id               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	FileId           string    `gorm:"column:file_id;type:char(33);not null;uniqueIndex:uniq_message_file_id"`
	MessageId        string    `gorm:"column:message_id;type:char(33);not null;index:idx_message_file_message"`
	UserId           string    `gorm:"column:user_id;type:char(33);not null;index:idx_message_file_user"`
	OriginalName     string    `gorm:"column:original_name;type:varchar(255);not null"`
	FileType         string    `gorm:"column:file_type;type:varchar(40)"`
	ContentType      string    `gorm:"column:content_type;type:varchar(100)"`
	ExtractedContent string    `gorm:"column:extracted_content;type:text"`
	ProcessingStatus string    `gorm:"column:processing_status;type:varchar(20);not null;default:pending;index:idx_message_file_status"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null"`
}

func (MessageFile) TableName() string {
	return "message_file"
}
