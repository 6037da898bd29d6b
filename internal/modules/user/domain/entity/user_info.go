package entity

import (
	"time"
)

// UserInfo 用户表
type UserInfo struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Uuid      string    `gorm:"column:uuid;type:char(33);not null;uniqueIndex:uniq_user_uuid"`
	Email     string    `gorm:"column:email;type:varchar(128);not null;uniqueIndex:uniq_user_email"`
	Username  string    `gorm:"column:username;type:varchar(64);not null"`
	Password  string    `gorm:"column:password;type:varchar(128);not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (UserInfo) TableName() string {
	return "user_info"
}
