package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/db"
	"github.com/samuiconnect/internal/service"
)

type instagramPayload struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// GetInstagram 分流账号列表与媒体查询两个读取路径。
func (a *API) GetInstagram(c *gin.Context) {
	if queryFlag(c, "accounts") {
		accounts, err := a.instagram.ListAccounts()
		if err != nil {
			log.Printf("instagram accounts failed: %v", err)
			respondError(c, http.StatusInternalServerError, "Instagram API failed")
			return
		}

		items := make([]gin.H, 0, len(accounts))
		for _, account := range accounts {
			items = append(items, sanitizeInstagramAccount(account))
		}
		c.JSON(http.StatusOK, items)
		return
	}

	username := strings.TrimSpace(c.Query("username"))
	igUserID := strings.TrimSpace(c.Query("userId"))
	if username == "" && igUserID == "" {
		respondError(c, http.StatusBadRequest, "Provide username or userId")
		return
	}

	account, err := a.instagram.GetAccount(igUserID, username)
	if err != nil {
		if errors.Is(err, service.ErrInstagramAccountNotFound) {
			respondError(c, http.StatusNotFound, "Instagram account is not registered")
			return
		}
		log.Printf("instagram lookup failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Instagram API failed")
		return
	}

	ctx := c.Request.Context()
	fresh, err := a.instagram.EnsureFreshToken(ctx, account, queryFlag(c, "refresh"))
	if err != nil {
		log.Printf("instagram token refresh failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Instagram API failed")
		return
	}

	limit := parsePositiveInt(c.Query("limit"), service.DefaultInstagramMediaLimit)
	media, err := a.instagram.FetchMedia(ctx, fresh, limit, c.Query("fields"))
	if err != nil {
		log.Printf("instagram media failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Instagram API failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account": sanitizeInstagramAccount(*fresh),
		"media":   media,
	})
}

// PostInstagram 注册账号：OAuth 授权码换取，或直接提交既有令牌。
func (a *API) PostInstagram(c *gin.Context) {
	var payload instagramPayload
	if !bindJSON(c, &payload, "Missing request body") {
		return
	}

	code := strings.TrimSpace(payload.Code)
	redirectURI := strings.TrimSpace(payload.RedirectURI)
	if code != "" && redirectURI != "" {
		account, err := a.instagram.ExchangeCode(c.Request.Context(), code, redirectURI)
		if err != nil {
			if errors.Is(err, service.ErrInstagramCredentialsMissing) {
				respondError(c, http.StatusInternalServerError, "Instagram credentials are not configured")
				return
			}
			log.Printf("instagram code exchange failed: %v", err)
			respondError(c, http.StatusInternalServerError, "Instagram API failed")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"account": sanitizeInstagramAccount(*account)})
		return
	}

	igUserID := strings.TrimSpace(payload.UserID)
	username := strings.TrimSpace(payload.Username)
	accessToken := strings.TrimSpace(payload.AccessToken)
	if igUserID != "" && username != "" && accessToken != "" && (payload.ExpiresAt > 0 || payload.ExpiresIn > 0) {
		now := time.Now().UnixMilli()
		expiresAt := payload.ExpiresAt
		if expiresAt <= 0 {
			expiresAt = now + payload.ExpiresIn*1000
		}

		account, err := a.instagram.UpsertAccount(db.InstagramAccount{
			IGUserID:        igUserID,
			Username:        username,
			AccessToken:     accessToken,
			ExpiresAt:       expiresAt,
			LastRefreshedAt: now,
		})
		if err != nil {
			log.Printf("instagram upsert failed: %v", err)
			respondError(c, http.StatusInternalServerError, "Instagram API failed")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"account": sanitizeInstagramAccount(*account)})
		return
	}

	respondError(c, http.StatusBadRequest, "Provide code+redirectUri or userId+username+accessToken")
}

// sanitizeInstagramAccount 序列化账号信息，绝不向外暴露 accessToken。
func sanitizeInstagramAccount(account db.InstagramAccount) gin.H {
	return gin.H{
		"userId":          account.IGUserID,
		"username":        account.Username,
		"expiresAt":       account.ExpiresAt,
		"lastRefreshedAt": account.LastRefreshedAt,
	}
}
