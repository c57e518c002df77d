package service

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/samuiconnect/internal/db"
	"gorm.io/gorm"
)

// BumpCooldown 同一用户对同一商家两次 bump 之间的最小间隔
const BumpCooldown = 24 * time.Hour

// DefaultLeaderboardLimit 排行榜默认条数
const DefaultLeaderboardLimit = 12

// DefaultLeaderboardCategory 商家记录缺失时的兜底分类
const DefaultLeaderboardCategory = "Local Business"

// BumpWindow 描述统计用的一个滚动时间窗口
type BumpWindow struct {
	Label    string
	Duration time.Duration
}

// BumpWindows 为窗口阶梯，从窄到宽严格递增。
// 排行榜取第一个（最窄的）非空窗口，突出“当下最热”而非历史累计。
var BumpWindows = []BumpWindow{
	{Label: "24 hours", Duration: 24 * time.Hour},
	{Label: "48 hours", Duration: 48 * time.Hour},
	{Label: "72 hours", Duration: 72 * time.Hour},
	{Label: "7 days", Duration: 7 * 24 * time.Hour},
	{Label: "14 days", Duration: 14 * 24 * time.Hour},
	{Label: "30 days", Duration: 30 * 24 * time.Hour},
}

// ErrBumpInvalidInput 在必填字段缺失时返回
var ErrBumpInvalidInput = errors.New("missing slug, listing id, or user id")

// CooldownActiveError 表示冷却尚未结束的拒绝，携带下次可用时间供调用方提示重试。
type CooldownActiveError struct {
	NextAvailableAt *int64
}

func (e *CooldownActiveError) Error() string {
	return "already bumped within 24 hours"
}

// CooldownStatus 描述某个用户对某个商家的冷却状态。
// NextAvailableAt 为 Unix 毫秒；无历史记录或未提供用户时为 nil。
type CooldownStatus struct {
	CanBump         bool
	NextAvailableAt *int64
}

// ListingBumpStats 汇总单个商家在各窗口内的 bump 计数及请求方的冷却状态。
type ListingBumpStats struct {
	Slug            string
	ListingID       string
	Total           int
	Counts          map[string]int
	CanBump         bool
	NextAvailableAt *int64
}

// LeaderboardEntry 为聚合后的单个商家计数。
type LeaderboardEntry struct {
	Slug      string
	ListingID string
	Count     int
}

// LeaderboardItem 在 LeaderboardEntry 基础上附加展示用的商家信息。
type LeaderboardItem struct {
	Slug      string
	ListingID string
	Name      string
	Category  string
	Image     string
	Count     int
}

// BumpLeaderboard 为排行榜响应：选中的窗口标签及排名条目。
type BumpLeaderboard struct {
	Timeframe string
	Items     []LeaderboardItem
}

// ListingLookup 是排行榜装饰所需的商家查询协作方。
// 查询失败只影响展示字段，不应使排行榜本身失败。
type ListingLookup interface {
	GetBySlug(slug string) (*db.Listing, error)
}

// BumpService 负责 bump 事件的追加存储与时间窗口聚合。
type BumpService struct {
	db *gorm.DB
}

// NewBumpService 构造 BumpService
func NewBumpService(gdb *gorm.DB) *BumpService {
	return &BumpService{db: gdb}
}

// ReadAll 全量读取事件历史，按写入顺序返回。
// 事件表尚无数据不是错误，返回空集合即可。
func (s *BumpService) ReadAll() ([]db.BumpEvent, error) {
	var events []db.BumpEvent
	if err := s.db.Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("read bump events: %w", err)
	}
	return events, nil
}

// Append 追加一条事件。单条 INSERT 本身是原子的，
// 不存在整表读改写带来的并发丢更新问题。
func (s *BumpService) Append(event db.BumpEvent) error {
	if err := s.db.Create(&event).Error; err != nil {
		return fmt.Errorf("append bump event: %w", err)
	}
	return nil
}

// CooldownFor 计算 (userID, slug) 的冷却状态，是输入与当前时间的纯函数。
// 未提供 userID 时一律拒绝且不给出下次可用时间：没有身份就无从执行冷却，
// 匿名提交与“无历史记录”是两种不同的情况。
func CooldownFor(events []db.BumpEvent, slug, userID string, now time.Time) CooldownStatus {
	if userID == "" {
		return CooldownStatus{CanBump: false}
	}

	var latest *db.BumpEvent
	for i := range events {
		event := &events[i]
		if event.Slug != slug || event.UserID != userID {
			continue
		}
		if latest == nil || event.Timestamp > latest.Timestamp {
			latest = event
		}
	}

	if latest == nil {
		return CooldownStatus{CanBump: true}
	}

	next := latest.Timestamp + BumpCooldown.Milliseconds()
	return CooldownStatus{
		CanBump:         now.UnixMilli() >= next,
		NextAvailableAt: &next,
	}
}

// Bump 处理一次 bump 提交：先做冷却判定，通过后追加事件。
// 返回本次写入后的下次可用时间（Unix 毫秒）。
func (s *BumpService) Bump(slug, listingID, userID string, now time.Time) (int64, error) {
	if strings.TrimSpace(slug) == "" || strings.TrimSpace(listingID) == "" || strings.TrimSpace(userID) == "" {
		return 0, ErrBumpInvalidInput
	}

	events, err := s.ReadAll()
	if err != nil {
		return 0, err
	}

	status := CooldownFor(events, slug, userID, now)
	if !status.CanBump {
		return 0, &CooldownActiveError{NextAvailableAt: status.NextAvailableAt}
	}

	event := db.BumpEvent{
		Slug:      slug,
		ListingID: listingID,
		UserID:    userID,
		Timestamp: now.UnixMilli(),
	}
	if err := s.Append(event); err != nil {
		return 0, err
	}

	return event.Timestamp + BumpCooldown.Milliseconds(), nil
}

// StatsFor 返回单个商家的全窗口计数明细及请求方的冷却状态。
// 每个窗口标签都会出现在结果中，计数为零也不例外。
func (s *BumpService) StatsFor(slug, userID string, now time.Time) (*ListingBumpStats, error) {
	events, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	stats := &ListingBumpStats{
		Slug:   slug,
		Counts: make(map[string]int, len(BumpWindows)),
	}

	var filtered []db.BumpEvent
	for _, event := range events {
		if event.Slug == slug {
			filtered = append(filtered, event)
		}
	}

	if len(filtered) > 0 {
		stats.ListingID = filtered[0].ListingID
	}
	stats.Total = len(filtered)

	nowMs := now.UnixMilli()
	for _, window := range BumpWindows {
		cutoff := nowMs - window.Duration.Milliseconds()
		count := 0
		for _, event := range filtered {
			if event.Timestamp >= cutoff {
				count++
			}
		}
		stats.Counts[window.Label] = count
	}

	status := CooldownFor(filtered, slug, userID, now)
	stats.CanBump = status.CanBump
	stats.NextAvailableAt = status.NextAvailableAt

	return stats, nil
}

// aggregateCounts 统计 cutoff（含）之后每个 slug 的事件数。
// 排序规则：计数降序，计数相同按 slug 升序。第二排序键是刻意固定的，
// 保证排行榜在相同数据下输出稳定。
func aggregateCounts(events []db.BumpEvent, cutoff int64) []LeaderboardEntry {
	bySlug := make(map[string]*LeaderboardEntry)
	for _, event := range events {
		if event.Timestamp < cutoff {
			continue
		}
		entry, ok := bySlug[event.Slug]
		if !ok {
			entry = &LeaderboardEntry{Slug: event.Slug, ListingID: event.ListingID}
			bySlug[event.Slug] = entry
		}
		entry.Count++
	}

	entries := make([]LeaderboardEntry, 0, len(bySlug))
	for _, entry := range bySlug {
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Slug < entries[j].Slug
	})

	return entries
}

// selectWindow 从窄到宽找第一个非空窗口。全部为空时回退到全量聚合，
// 并沿用最宽窗口的标签。
func selectWindow(events []db.BumpEvent, now time.Time) (string, []LeaderboardEntry) {
	nowMs := now.UnixMilli()

	for _, window := range BumpWindows {
		cutoff := nowMs - window.Duration.Milliseconds()
		entries := aggregateCounts(events, cutoff)
		if len(entries) > 0 {
			return window.Label, entries
		}
	}

	widest := BumpWindows[len(BumpWindows)-1]
	return widest.Label, aggregateCounts(events, 0)
}

// Leaderboard 生成排行榜：窗口选择、排名、截断，并通过 lookup 附加商家展示信息。
// 商家记录缺失或查询失败时降级为 slug 派生的默认值，不影响排行榜输出。
func (s *BumpService) Leaderboard(lookup ListingLookup, limit int, now time.Time) (*BumpLeaderboard, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	events, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	label, entries := selectWindow(events, now)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]LeaderboardItem, 0, len(entries))
	for _, entry := range entries {
		item := LeaderboardItem{
			Slug:      entry.Slug,
			ListingID: entry.ListingID,
			Name:      entry.Slug,
			Category:  DefaultLeaderboardCategory,
			Count:     entry.Count,
		}

		if lookup != nil {
			listing, err := lookup.GetBySlug(entry.Slug)
			switch {
			case err == nil && listing != nil:
				item.Name = listing.Name
				if category := listingCategory(listing); category != "" {
					item.Category = category
				}
				item.Image = listingImage(listing)
			case err != nil && !errors.Is(err, ErrListingNotFound):
				log.Printf("leaderboard: listing lookup failed for %s: %v", entry.Slug, err)
			}
		}

		items = append(items, item)
	}

	return &BumpLeaderboard{Timeframe: label, Items: items}, nil
}

func listingCategory(listing *db.Listing) string {
	if category := strings.TrimSpace(listing.PrimaryCategory); category != "" {
		return category
	}
	if len(listing.Tags) > 0 {
		return strings.TrimSpace(listing.Tags[0])
	}
	return ""
}

func listingImage(listing *db.Listing) string {
	if image := strings.TrimSpace(listing.ImageURL); image != "" {
		return image
	}
	return strings.TrimSpace(listing.RemoteImageURL)
}
