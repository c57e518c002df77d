package handler

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/db"
	"golang.org/x/crypto/bcrypt"
)

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 处理管理员登录请求
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "Missing username or password") {
		return
	}

	// 查找用户
	var user db.User
	if err := a.db.Where("username = ?", payload.Username).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	// 设置会话
	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "username": user.Username})
}

// Logout 处理管理员登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetAdminOverview 返回后台概览计数
func (a *API) GetAdminOverview(c *gin.Context) {
	listingCount, err := a.listings.Count()
	if err != nil {
		log.Printf("overview listing count failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to load overview")
		return
	}

	claimCount, err := a.claims.Count()
	if err != nil {
		log.Printf("overview claim count failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to load overview")
		return
	}

	var bumpCount int64
	if err := a.db.Model(&db.BumpEvent{}).Count(&bumpCount).Error; err != nil {
		log.Printf("overview bump count failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to load overview")
		return
	}

	var accountCount int64
	if err := a.db.Model(&db.InstagramAccount{}).Count(&accountCount).Error; err != nil {
		log.Printf("overview account count failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to load overview")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings":          listingCount,
		"claims":            claimCount,
		"bumps":             bumpCount,
		"instagramAccounts": accountCount,
	})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			respondError(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}
