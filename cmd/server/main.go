package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lovemap/internal/config"
	"github.com/lovemap/internal/db"
	"github.com/lovemap/internal/router"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.Seed(db.DB, db.SeedOptions{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		UserUsername:  cfg.UserUsername,
		UserPassword:  cfg.UserPassword,
	}); err != nil {
		log.Fatalf("failed to seed database: %v", err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(db.DB, router.Options{
		SessionSecret:  cfg.SessionSecret,
		SessionSecure:  cfg.SessionSecure,
		UploadDir:      cfg.UploadDir,
		UploadURLPath:  cfg.UploadURLPath,
		MaxUploadBytes: cfg.MaxUploadBytes,
		PublicDir:      cfg.PublicDir,
	})

	log.Printf("lovemap listening on %s (uploads in %s)", cfg.ListenAddr, cfg.UploadDir)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
