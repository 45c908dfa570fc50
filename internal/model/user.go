package model

import (
	"time"
)

// 用户角色
const (
	RoleAdmin    = "ADMIN"
	RoleProvider = "PROVIDER"
	RoleUser     = "USER"
)

// User 系统用户
// ADMIN 制定全局经济政策，PROVIDER 运营银行，USER 在银行开设账户
type User struct {
	ID           string    `gorm:"type:varchar(32);primaryKey" json:"id"`
	Username     string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	Role         string    `gorm:"type:varchar(16);index;not null" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// UserSettings 用户个人设置，目前只保存交易 PIN 的哈希
type UserSettings struct {
	UserID             string    `gorm:"type:varchar(32);primaryKey" json:"user_id"`
	TransactionPinHash *string   `gorm:"type:varchar(128)" json:"-"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}
