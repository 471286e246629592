package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr     string
	Port           string
	DatabasePath   string
	SessionSecret  string
	SessionSecure  bool
	GinMode        string
	UploadDir      string
	UploadURLPath  string
	MaxUploadBytes int64
	PublicDir      string
	AdminUsername  string
	AdminPassword  string
	UserUsername   string
	UserPassword   string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := envOr("PORT", "3000")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	maxUploadMB, err := strconv.ParseInt(envOr("MAX_UPLOAD_MB", "100"), 10, 64)
	if err != nil || maxUploadMB <= 0 {
		maxUploadMB = 100
	}

	secure, err := strconv.ParseBool(envOr("SESSION_SECURE", "false"))
	if err != nil {
		secure = false
	}

	return AppConfig{
		ListenAddr:     listenAddr,
		Port:           port,
		DatabasePath:   envOr("DATABASE_PATH", "data/lovemap.db"),
		SessionSecret:  envOr("SESSION_SECRET", "lovemap-dev-secret"),
		SessionSecure:  secure,
		GinMode:        envOr("GIN_MODE", "release"),
		UploadDir:      envOr("UPLOAD_DIR", "data/uploads"),
		UploadURLPath:  envOr("UPLOAD_URL_PATH", "/uploads"),
		MaxUploadBytes: maxUploadMB << 20,
		PublicDir:      strings.TrimSpace(os.Getenv("PUBLIC_DIR")),
		AdminUsername:  envOr("ADMIN_USERNAME", "admin"),
		AdminPassword:  envOr("ADMIN_PASSWORD", "admin123"),
		UserUsername:   envOr("USER_USERNAME", "user"),
		UserPassword:   envOr("USER_PASSWORD", "user123"),
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
