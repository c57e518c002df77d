package db

import "gorm.io/gorm"

// Listing 定义了商家目录中的一条商家记录。
// 目录数据来源于离线整理的数据集导入，商家认领后的覆盖信息存放在 ListingClaim。
type Listing struct {
	gorm.Model
	ListingID              string `gorm:"size:64;uniqueIndex;not null"`
	Slug                   string `gorm:"size:190;uniqueIndex;not null"`
	Name                   string `gorm:"not null"`
	URL                    string
	Location               string `gorm:"size:190;index"`
	Address                string
	PrimaryCategory        string              `gorm:"size:190;index"`
	Tags                   []string            `gorm:"serializer:json"`
	ImageURL               string
	ImageLocalPath         string
	RemoteImageURL         string
	MapEmbedURL            string
	MapLatitude            string `gorm:"size:64"`
	MapLongitude           string `gorm:"size:64"`
	Description            string `gorm:"type:text"`
	Contacts               map[string][]string `gorm:"serializer:json"`
	FeaturedInstagramPosts []string            `gorm:"serializer:json"`
	// Custom 标记通过前台提交创建的商家，区别于数据集导入的记录
	Custom bool `gorm:"default:false"`
}

// TableName 指定自定义表名，避免自动复数化导致的歧义。
func (Listing) TableName() string {
	return "listings"
}
