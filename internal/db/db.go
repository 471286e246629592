package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Init 初始化数据库连接并执行自动迁移。
// databasePath 为空时将回退到默认值 lovemap.db。
func Init(databasePath string) error {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "lovemap.db"
	}

	if err := ensureParentDir(path); err != nil {
		return err
	}

	gdb, err := Open(withForeignKeys(path), logger.Default.LogMode(logger.Warn))
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return err
	}

	DB = gdb
	return nil
}

// Open connects to a sqlite database identified by dsn.
func Open(dsn string, log logger.Interface) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: log})
}

// Migrate 为所有模型创建表结构
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&User{},
		&Milestone{},
		&MilestoneContent{},
		&MilestoneReply{},
	)
}

// withForeignKeys 让 sqlite 驱动在每个连接上开启外键约束
func withForeignKeys(path string) string {
	if strings.Contains(path, "_foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
