package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/db"
	"github.com/samuiconnect/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(sessionSecret, uploadDir, uploadURLPath, igClientID, igClientSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("samuiconnect_session", store))

	// 上传文件静态服务
	r.Static(uploadURLPath, uploadDir)

	api := handler.NewAPI(db.DB, uploadDir, uploadURLPath, igClientID, igClientSecret)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 前台 API 路由
	public := r.Group("/api")
	{
		public.GET("/listings", api.GetListings)
		public.POST("/listings", api.CreateListing)

		public.GET("/bumps", api.GetBumps)
		public.POST("/bumps", api.PostBump)

		public.POST("/claims", api.SubmitClaim)

		public.GET("/instagram", api.GetInstagram)
		public.POST("/instagram", api.PostInstagram)
	}

	// 后台管理路由
	admin := r.Group("/admin/api")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/overview", api.GetAdminOverview)
			auth.GET("/claims", api.ListClaims)
			auth.DELETE("/claims/:slug", api.DeleteClaim)
			auth.POST("/uploads", api.UploadListingImage)
		}
	}

	return r
}
