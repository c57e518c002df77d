package handler

import (
	"github.com/samuiconnect/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	listings  *service.ListingService
	bumps     *service.BumpService
	claims    *service.ClaimService
	instagram *service.InstagramService
	uploadDir string
	uploadURL string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, uploadDir, uploadURL, igClientID, igClientSecret string) *API {
	return &API{
		db:        db,
		listings:  service.NewListingService(db),
		bumps:     service.NewBumpService(db),
		claims:    service.NewClaimService(db),
		instagram: service.NewInstagramService(db, igClientID, igClientSecret),
		uploadDir: uploadDir,
		uploadURL: uploadURL,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Instagram 暴露 Instagram 服务，便于测试替换 HTTP 客户端。
func (a *API) Instagram() *service.InstagramService {
	return a.instagram
}
