package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samuiconnect/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrListingNotFound 在指定商家不存在时返回
	ErrListingNotFound = errors.New("listing not found")
	// ErrListingNameRequired 在创建商家缺少名称时返回
	ErrListingNameRequired = errors.New("listing name is required")
	// ErrListingExists 在 slug 冲突时返回
	ErrListingExists = errors.New("listing already exists")
)

// PlaceholderImageURL 前台创建的商家在上传照片前使用的占位图
const PlaceholderImageURL = "https://placehold.co/600x400?text=Samui+Connect"

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// ListingService 负责商家目录的查询、认领覆盖合并与前台创建。
type ListingService struct {
	db *gorm.DB
}

// ListingFilter 描述目录查询条件，均为可选。
type ListingFilter struct {
	Categories []string
	Locations  []string
	Search     string
}

// CustomListingInput 定义前台提交创建商家时可配置的字段。
type CustomListingInput struct {
	Name            string
	PrimaryCategory string
	Location        string
	Address         string
	Description     string
	Website         string
	Phone           string
	Email           string
	InstagramPosts  []string
}

// NewListingService 构造 ListingService
func NewListingService(gdb *gorm.DB) *ListingService {
	return &ListingService{db: gdb}
}

// List 返回目录中符合条件的商家，已合并认领覆盖信息。
// 分类匹配主分类或任一标签，地点为精确匹配，均不区分大小写；
// 搜索词对名称、描述、地点、标签做子串匹配。
func (s *ListingService) List(filter ListingFilter) ([]db.Listing, error) {
	var listings []db.Listing
	if err := s.db.Order("id ASC").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	claims, err := s.claimMap()
	if err != nil {
		return nil, err
	}

	matched := make([]db.Listing, 0, len(listings))
	for _, listing := range listings {
		applyClaim(&listing, claims[listing.Slug])
		if !matchesCategory(listing, filter.Categories) {
			continue
		}
		if !matchesLocation(listing, filter.Locations) {
			continue
		}
		if !matchesSearch(listing, filter.Search) {
			continue
		}
		matched = append(matched, listing)
	}

	return matched, nil
}

// GetBySlug 按 slug 获取单个商家，已合并认领覆盖信息。
func (s *ListingService) GetBySlug(slug string) (*db.Listing, error) {
	var listing db.Listing
	if err := s.db.Where("slug = ?", slug).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	if err := s.mergeClaim(&listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetByID 按外部 listing id 获取单个商家，已合并认领覆盖信息。
func (s *ListingService) GetByID(listingID string) (*db.Listing, error) {
	var listing db.Listing
	if err := s.db.Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	if err := s.mergeClaim(&listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// CreateCustom 由前台提交创建新商家，slug 从名称派生。
func (s *ListingService) CreateCustom(input CustomListingInput) (*db.Listing, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrListingNameRequired
	}

	slug := Slugify(name)
	category := strings.TrimSpace(input.PrimaryCategory)
	if category == "" {
		category = DefaultLeaderboardCategory
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Description coming soon."
	}

	contacts := map[string][]string{
		"website": {},
		"phone":   {},
		"email":   {},
	}
	if website := strings.TrimSpace(input.Website); website != "" {
		contacts["website"] = []string{website}
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		contacts["phone"] = []string{phone}
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		contacts["email"] = []string{email}
	}

	listing := db.Listing{
		ListingID:              fmt.Sprintf("custom-%s", uuid.NewString()),
		Slug:                   slug,
		Name:                   name,
		URL:                    strings.TrimSpace(input.Website),
		Location:               strings.TrimSpace(input.Location),
		Address:                strings.TrimSpace(input.Address),
		PrimaryCategory:        category,
		Tags:                   []string{category},
		ImageURL:               PlaceholderImageURL,
		RemoteImageURL:         PlaceholderImageURL,
		Description:            description,
		Contacts:               contacts,
		FeaturedInstagramPosts: trimNonEmpty(input.InstagramPosts),
		Custom:                 true,
	}

	if err := s.db.Create(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrListingExists
		}
		return nil, fmt.Errorf("create listing: %w", err)
	}

	return &listing, nil
}

// Count 返回目录中的商家总数，供后台概览使用。
func (s *ListingService) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&db.Listing{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// seedListing 对应数据集导出文件中的一条记录。
type seedListing struct {
	ID              string              `json:"id"`
	Slug            string              `json:"slug"`
	Name            string              `json:"name"`
	URL             string              `json:"url"`
	Location        string              `json:"location"`
	Address         string              `json:"address"`
	PrimaryCategory string              `json:"primaryCategory"`
	Tags            []string            `json:"tags"`
	ImageURL        string              `json:"imageUrl"`
	ImageLocalPath  string              `json:"imageLocalPath"`
	RemoteImageURL  string              `json:"remoteImageUrl"`
	MapEmbedURL     string              `json:"mapEmbedUrl"`
	MapLatitude     string              `json:"mapLatitude"`
	MapLongitude    string              `json:"mapLongitude"`
	Description     string              `json:"description"`
	Contacts        map[string][]string `json:"contacts"`
}

// SeedFromFile 从数据集导出的 JSON 文件导入商家，按 slug 幂等更新。
// 返回导入的记录数。
func (s *ListingService) SeedFromFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []seedListing
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	imported := 0
	for _, seed := range seeds {
		if strings.TrimSpace(seed.Slug) == "" || strings.TrimSpace(seed.Name) == "" {
			continue
		}

		listing := db.Listing{
			ListingID:       seed.ID,
			Slug:            seed.Slug,
			Name:            seed.Name,
			URL:             seed.URL,
			Location:        seed.Location,
			Address:         seed.Address,
			PrimaryCategory: seed.PrimaryCategory,
			Tags:            seed.Tags,
			ImageURL:        seed.ImageURL,
			ImageLocalPath:  seed.ImageLocalPath,
			RemoteImageURL:  seed.RemoteImageURL,
			MapEmbedURL:     seed.MapEmbedURL,
			MapLatitude:     seed.MapLatitude,
			MapLongitude:    seed.MapLongitude,
			Description:     seed.Description,
			Contacts:        seed.Contacts,
		}

		if err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"listing_id", "name", "url", "location", "address", "primary_category",
				"tags", "image_url", "image_local_path", "remote_image_url",
				"map_embed_url", "map_latitude", "map_longitude", "description",
				"contacts", "updated_at",
			}),
		}).Create(&listing).Error; err != nil {
			return imported, fmt.Errorf("import listing %s: %w", seed.Slug, err)
		}
		imported++
	}

	return imported, nil
}

// Slugify 将商家名称转为 URL 友好的 slug，无可用字符时退化为时间戳形式。
func Slugify(input string) string {
	cleaned := slugPattern.ReplaceAllString(strings.ToLower(input), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return fmt.Sprintf("listing-%d", time.Now().UnixMilli())
	}
	return cleaned
}

func (s *ListingService) mergeClaim(listing *db.Listing) error {
	var claim db.ListingClaim
	if err := s.db.Where("slug = ?", listing.Slug).First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load claim: %w", err)
	}

	applyClaim(listing, &claim)
	return nil
}

func (s *ListingService) claimMap() (map[string]*db.ListingClaim, error) {
	var claims []db.ListingClaim
	if err := s.db.Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	result := make(map[string]*db.ListingClaim, len(claims))
	for i := range claims {
		result[claims[i].Slug] = &claims[i]
	}
	return result, nil
}

// applyClaim 将认领覆盖合并到商家记录，认领为空的字段保持原值。
func applyClaim(listing *db.Listing, claim *db.ListingClaim) {
	if claim == nil {
		return
	}

	if name := strings.TrimSpace(claim.Name); name != "" {
		listing.Name = name
	}
	if category := strings.TrimSpace(claim.PrimaryCategory); category != "" {
		listing.PrimaryCategory = category
	}
	if location := strings.TrimSpace(claim.Location); location != "" {
		listing.Location = location
	}
	if address := strings.TrimSpace(claim.Address); address != "" {
		listing.Address = address
	}
	if description := strings.TrimSpace(claim.Description); description != "" {
		listing.Description = description
	}
	if website := strings.TrimSpace(claim.Website); website != "" {
		listing.URL = website
		if listing.Contacts == nil {
			listing.Contacts = map[string][]string{}
		}
		listing.Contacts["website"] = []string{website}
	}
	if phone := strings.TrimSpace(claim.Phone); phone != "" {
		if listing.Contacts == nil {
			listing.Contacts = map[string][]string{}
		}
		listing.Contacts["phone"] = []string{phone}
	}
	if email := strings.TrimSpace(claim.Email); email != "" {
		if listing.Contacts == nil {
			listing.Contacts = map[string][]string{}
		}
		listing.Contacts["email"] = []string{email}
	}
	if posts := trimNonEmpty(claim.InstagramPosts); len(posts) > 0 {
		listing.FeaturedInstagramPosts = posts
	}
}

func matchesCategory(listing db.Listing, categories []string) bool {
	if len(categories) == 0 {
		return true
	}

	primary := strings.ToLower(strings.TrimSpace(listing.PrimaryCategory))
	tagSet := make(map[string]struct{}, len(listing.Tags))
	for _, tag := range listing.Tags {
		tagSet[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	for _, category := range categories {
		normalized := strings.ToLower(strings.TrimSpace(category))
		if normalized == "" {
			continue
		}
		if primary == normalized {
			return true
		}
		if _, ok := tagSet[normalized]; ok {
			return true
		}
	}
	return false
}

func matchesLocation(listing db.Listing, locations []string) bool {
	if len(locations) == 0 {
		return true
	}

	current := strings.ToLower(strings.TrimSpace(listing.Location))
	for _, location := range locations {
		if current == strings.ToLower(strings.TrimSpace(location)) {
			return true
		}
	}
	return false
}

func matchesSearch(listing db.Listing, search string) bool {
	query := strings.ToLower(strings.TrimSpace(search))
	if query == "" {
		return true
	}

	haystack := strings.ToLower(strings.Join([]string{
		listing.Name,
		listing.Description,
		listing.Location,
		strings.Join(listing.Tags, " "),
	}, " "))

	return strings.Contains(haystack, query)
}

func trimNonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
