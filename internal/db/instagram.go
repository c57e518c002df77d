package db

import "gorm.io/gorm"

// InstagramAccount 保存已授权 Instagram 账号的长效令牌。
// ExpiresAt 与 LastRefreshedAt 为 Unix 毫秒。
type InstagramAccount struct {
	gorm.Model
	IGUserID        string `gorm:"size:64;uniqueIndex;not null"`
	Username        string `gorm:"size:190;index;not null"`
	AccessToken     string `gorm:"type:text;not null"`
	ExpiresAt       int64  `gorm:"not null"`
	LastRefreshedAt int64  `gorm:"not null"`
}

// TableName 指定自定义表名。
func (InstagramAccount) TableName() string {
	return "instagram_accounts"
}
