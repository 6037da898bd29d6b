package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成一个标准的 UUID (v4)
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateID 生成带业务前缀的短 ID，如 P…（成员）、T…（话题）、M…（消息）、F…（文件）
func GenerateID(prefix string) string {
	return prefix + GenerateShortUUID()
}
