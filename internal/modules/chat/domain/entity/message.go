package entity

import (
	"database/sql"
	"time"
)

// GeneralPersonaId 通用教练人格的哨兵 person_id，不对应 person 表中的任何行
const GeneralPersonaId = "general"

// Message 聊天消息表，person_id / topic_id 二选一
type Message struct {
	Id        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	MessageId string         `gorm:"column:message_id;type:char(33);not null;uniqueIndex:uniq_message_id"`
	UserId    string         `gorm:"column:user_id;type:char(33);not null;index:idx_message_user"`
	PersonId  sql.NullString `gorm:"column:person_id;type:char(33);index:idx_message_person"`
	TopicId   sql.NullString `gorm:"column:topic_id;type:char(33);index:idx_message_topic"`
	Content   string         `gorm:"column:content;type:text;not null"`
	IsUser    bool           `gorm:"column:is_user;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index:idx_message_created"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (Message) TableName() string {
	return "message"
}
