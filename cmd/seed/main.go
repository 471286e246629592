package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/lovemap/internal/config"
	"github.com/lovemap/internal/db"
)

// seed 初始化数据库并写入默认账号与 8 个节点，可重复执行
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	if err := db.Seed(db.DB, db.SeedOptions{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		UserUsername:  cfg.UserUsername,
		UserPassword:  cfg.UserPassword,
	}); err != nil {
		log.Fatal("写入默认数据失败:", err)
	}

	unlocked, err := db.CountUnlocked(db.DB)
	if err != nil {
		log.Fatal("统计解锁节点失败:", err)
	}
	fmt.Printf("database %s ready, %d milestone(s) unlocked\n", cfg.DatabasePath, unlocked)
	fmt.Printf("admin account: %s\n", cfg.AdminUsername)
	fmt.Printf("user account:  %s\n", cfg.UserUsername)
}
