package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/samuiconnect/internal/config"
	"github.com/samuiconnect/internal/db"
	"github.com/samuiconnect/internal/service"
)

func main() {
	cfg := config.Load()

	path := flag.String("file", cfg.SeedListingsPath, "数据集导出的 listings JSON 文件路径")
	flag.Parse()

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	listings := service.NewListingService(db.DB)
	imported, err := listings.SeedFromFile(*path)
	if err != nil {
		log.Fatal("导入商家数据失败:", err)
	}

	fmt.Printf("成功导入 %d 条商家记录\n", imported)
}
