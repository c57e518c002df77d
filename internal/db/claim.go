package db

import "gorm.io/gorm"

// ListingClaim 存储商家认领时提交的覆盖信息，按 slug 唯一。
// 字段均为可选：为空表示不覆盖目录中的原始值。
type ListingClaim struct {
	gorm.Model
	Slug            string `gorm:"size:190;uniqueIndex;not null"`
	Name            string
	PrimaryCategory string
	Location        string
	Address         string
	Description     string `gorm:"type:text"`
	Website         string
	Phone           string
	Email           string
	InstagramPosts  []string `gorm:"serializer:json"`
}

// TableName 指定自定义表名。
func (ListingClaim) TableName() string {
	return "listing_claims"
}
