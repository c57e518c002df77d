package main

import (
	"errors"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/config"
	"github.com/samuiconnect/internal/db"
	"github.com/samuiconnect/internal/router"
	"github.com/samuiconnect/internal/service"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 按环境变量引导管理员账号
	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Fatalf("failed to ensure admin user: %v", err)
	}

	// 目录为空且数据集文件存在时自动导入
	if err := seedListingsIfEmpty(cfg.SeedListingsPath); err != nil {
		log.Fatalf("failed to seed listings: %v", err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(cfg.SessionSecret, cfg.UploadDir, cfg.UploadURLPath, cfg.IGClientID, cfg.IGClientSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

func seedListingsIfEmpty(path string) error {
	listings := service.NewListingService(db.DB)

	count, err := listings.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("no seed file at %s, starting with empty directory", path)
			return nil
		}
		return err
	}

	imported, err := listings.SeedFromFile(path)
	if err != nil {
		return err
	}

	log.Printf("imported %d listings from %s", imported, path)
	return nil
}
