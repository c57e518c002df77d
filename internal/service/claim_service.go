package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samuiconnect/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrClaimSlugRequired 在认领提交缺少 slug 时返回
	ErrClaimSlugRequired = errors.New("missing or invalid slug")
	// ErrClaimNotFound 在指定认领记录不存在时返回
	ErrClaimNotFound = errors.New("claim not found")
)

// ClaimService 负责商家认领信息的合并写入与后台审阅。
type ClaimService struct {
	db *gorm.DB
}

// ClaimInput 定义认领提交时可覆盖的字段，均为可选。
type ClaimInput struct {
	Slug            string
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

// NewClaimService 构造 ClaimService
func NewClaimService(gdb *gorm.DB) *ClaimService {
	return &ClaimService{db: gdb}
}

// Submit 合并写入一条认领：已有记录时仅覆盖本次提交的非空字段，其余保持不变。
func (s *ClaimService) Submit(input ClaimInput) (*db.ListingClaim, error) {
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		return nil, ErrClaimSlugRequired
	}

	var claim db.ListingClaim
	err := s.db.Where("slug = ?", slug).First(&claim).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		claim = db.ListingClaim{Slug: slug}
	case err != nil:
		return nil, fmt.Errorf("load claim: %w", err)
	}

	mergeClaimInput(&claim, input)

	if err := s.db.Save(&claim).Error; err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}
	return &claim, nil
}

// List 返回全部认领记录，按提交时间倒序，供后台审阅。
func (s *ClaimService) List() ([]db.ListingClaim, error) {
	var claims []db.ListingClaim
	if err := s.db.Order("updated_at DESC").Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// Get 按 slug 获取认领记录。
func (s *ClaimService) Get(slug string) (*db.ListingClaim, error) {
	var claim db.ListingClaim
	if err := s.db.Where("slug = ?", strings.TrimSpace(slug)).First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return &claim, nil
}

// Delete 丢弃一条认领记录，商家信息随之回退到目录原始值。
// 物理删除：slug 上有唯一索引，软删除的残留行会阻止再次认领。
func (s *ClaimService) Delete(slug string) error {
	result := s.db.Unscoped().Where("slug = ?", strings.TrimSpace(slug)).Delete(&db.ListingClaim{})
	if result.Error != nil {
		return fmt.Errorf("delete claim: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrClaimNotFound
	}
	return nil
}

// Count 返回认领记录总数，供后台概览使用。
func (s *ClaimService) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&db.ListingClaim{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return count, nil
}

func mergeClaimInput(claim *db.ListingClaim, input ClaimInput) {
	if name := strings.TrimSpace(input.Name); name != "" {
		claim.Name = name
	}
	if category := strings.TrimSpace(input.PrimaryCategory); category != "" {
		claim.PrimaryCategory = category
	}
	if location := strings.TrimSpace(input.Location); location != "" {
		claim.Location = location
	}
	if address := strings.TrimSpace(input.Address); address != "" {
		claim.Address = address
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		claim.Description = description
	}
	if website := strings.TrimSpace(input.Website); website != "" {
		claim.Website = website
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		claim.Phone = phone
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		claim.Email = email
	}
	if posts := trimNonEmpty(input.InstagramPosts); len(posts) > 0 {
		claim.InstagramPosts = posts
	}
}
