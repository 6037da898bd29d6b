package entity

import (
	"time"
)

// 话题状态
const (
	TopicStatusActive   = "active"
	TopicStatusArchived = "archived"
)

// GeneralTopicTitle 每个用户惰性创建一次的默认辅导话题
const GeneralTopicTitle = "General"

// Topic 话题表，(user_id, title) 唯一约束保证 General 话题幂等创建
type Topic struct {
	Id          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TopicId     string    `gorm:"column:topic_id;type:char(33);not null;uniqueIndex:uniq_topic_id"`
	UserId      string    `gorm:"column:user_id;type:char(33);not null;uniqueIndex:uniq_topic_user_title;index:idx_topic_user"`
	Title       string    `gorm:"column:title;type:varchar(128);not null;uniqueIndex:uniq_topic_user_title"`
	Description string    `gorm:"column:description;type:text"`
	Status      string    `gorm:"column:status;type:varchar(20);not null;default:active"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (Topic) TableName() string {
	return "topic"
}

// TopicParticipant 话题参与者关联表
type TopicParticipant struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TopicId   string    `gorm:"column:topic_id;type:char(33);not null;uniqueIndex:uniq_topic_participant"`
	PersonId  string    `gorm:"column:person_id;type:char(33);not null;uniqueIndex:uniq_topic_participant"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (TopicParticipant) TableName() string {
	return "topic_participant"
}
