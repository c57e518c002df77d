package db

// BumpEvent 记录一次用户对商家的 bump（点赞）事件。
// 事件为仅追加日志：一经写入不再修改或删除，全部聚合均基于全量扫描。
// Timestamp 为 Unix 毫秒，沿用客户端约定的时间精度。
type BumpEvent struct {
	ID        uint   `gorm:"primaryKey"`
	ListingID string `gorm:"size:64;not null"`
	Slug      string `gorm:"size:190;index;not null"`
	UserID    string `gorm:"size:64;index;not null"`
	Timestamp int64  `gorm:"not null"`
}

// TableName 指定自定义表名。
func (BumpEvent) TableName() string {
	return "bump_events"
}
