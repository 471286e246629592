package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/lovemap/internal/handler"
	"github.com/lovemap/internal/service"
	"gorm.io/gorm"
)

const sessionMaxAge = 24 * 60 * 60

// Options 描述路由依赖的运行时配置
type Options struct {
	SessionSecret  string
	SessionSecure  bool
	UploadDir      string
	UploadURLPath  string
	MaxUploadBytes int64
	PublicDir      string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(gdb *gorm.DB, opts Options) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = 32 << 20

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   opts.SessionSecure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("lovemap_session", store))

	media := service.NewMediaStore(opts.UploadDir, opts.UploadURLPath, opts.MaxUploadBytes)
	api := handler.NewAPI(gdb, media)

	// 上传文件服务
	r.Static(media.URLPrefix(), media.Dir())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)
		authGroup.GET("/status", api.AuthStatus)

		uploads := limitBody(opts.MaxUploadBytes)

		milestones := apiGroup.Group("/milestones")
		{
			session := milestones.Group("")
			session.Use(handler.AuthRequired())
			session.GET("", api.ListMilestones)
			session.GET("/:id", api.GetMilestone)
			session.POST("/:id/reply", uploads, api.AddReply)

			admin := milestones.Group("")
			admin.Use(handler.AdminRequired())
			admin.POST("/:id/unlock", api.UnlockMilestone)
			admin.POST("/:id/content", uploads, api.AddContent)
			admin.DELETE("/:id/content", api.RestartMilestone)
		}
	}

	if dir := strings.TrimSpace(opts.PublicDir); dir != "" {
		files := http.FileServer(http.Dir(dir))
		r.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}

// limitBody caps request bodies so oversized uploads fail while parsing
// instead of after being spooled to disk. Multipart overhead gets 1MB slack.
func limitBody(maxUploadBytes int64) gin.HandlerFunc {
	if maxUploadBytes <= 0 {
		maxUploadBytes = service.DefaultMaxUploadBytes
	}
	limit := maxUploadBytes + 1<<20
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
