package entity

import (
	"time"
)

// 关系类型
const (
	RelationshipDirectReport = "direct_report"
	RelationshipManager      = "manager"
	RelationshipPeer         = "peer"
	RelationshipStakeholder  = "stakeholder"
	RelationshipAssistant    = "assistant"
)

// Person 团队成员表，所有查询必须带 user_id 租户过滤
type Person struct {
	Id               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PersonId         string    `gorm:"column:person_id;type:char(33);not null;uniqueIndex:uniq_person_id"`
	UserId           string    `gorm:"column:user_id;type:char(33);not null;index:idx_person_user"`
	Name             string    `gorm:"column:name;type:varchar(128);not null"`
	Role             string    `gorm:"column:role;type:varchar(64)"`
	RelationshipType string    `gorm:"column:relationship_type;type:varchar(20);not null;default:direct_report"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null"`
}

func (Person) TableName() string {
	return "person"
}
