package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/service"
)

type bumpPayload struct {
	Slug      string `json:"slug"`
	ListingID string `json:"listingId"`
	UserID    string `json:"userId"`
}

// PostBump 处理一次 bump 提交：字段校验、冷却判定、写入事件。
func (a *API) PostBump(c *gin.Context) {
	var payload bumpPayload
	if !bindJSON(c, &payload, "Missing slug, listingId, or userId") {
		return
	}

	slug := strings.TrimSpace(payload.Slug)
	listingID := strings.TrimSpace(payload.ListingID)
	userID := strings.TrimSpace(payload.UserID)
	if slug == "" || listingID == "" || userID == "" {
		respondError(c, http.StatusBadRequest, "Missing slug, listingId, or userId")
		return
	}

	nextAvailableAt, err := a.bumps.Bump(slug, listingID, userID, time.Now())
	if err != nil {
		var cooldown *service.CooldownActiveError
		switch {
		case errors.As(err, &cooldown):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":           "Already bumped within 24 hours",
				"nextAvailableAt": cooldown.NextAvailableAt,
			})
		case errors.Is(err, service.ErrBumpInvalidInput):
			respondError(c, http.StatusBadRequest, "Missing slug, listingId, or userId")
		default:
			log.Printf("bump submit failed: %v", err)
			respondError(c, http.StatusInternalServerError, "Failed to process bump request")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "nextAvailableAt": nextAvailableAt})
}

// GetBumps 按查询参数分流：leaderboard 参数存在时返回排行榜，否则返回单个商家的统计。
func (a *API) GetBumps(c *gin.Context) {
	if strings.TrimSpace(c.Query("leaderboard")) != "" {
		a.sendLeaderboard(c)
		return
	}

	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		respondError(c, http.StatusBadRequest, "Missing slug parameter")
		return
	}
	userID := strings.TrimSpace(c.Query("userId"))

	stats, err := a.bumps.StatsFor(slug, userID, time.Now())
	if err != nil {
		log.Printf("bump stats failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to process bump request")
		return
	}

	c.JSON(http.StatusOK, serializeBumpStats(stats))
}

func (a *API) sendLeaderboard(c *gin.Context) {
	limit := parsePositiveInt(c.Query("limit"), service.DefaultLeaderboardLimit)

	board, err := a.bumps.Leaderboard(a.listings, limit, time.Now())
	if err != nil {
		log.Printf("leaderboard failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to process bump request")
		return
	}

	items := make([]gin.H, 0, len(board.Items))
	for _, item := range board.Items {
		entry := gin.H{
			"slug":      item.Slug,
			"listingId": item.ListingID,
			"name":      item.Name,
			"category":  item.Category,
			"count":     item.Count,
		}
		if item.Image != "" {
			entry["image"] = item.Image
		}
		items = append(items, entry)
	}

	c.JSON(http.StatusOK, gin.H{"timeframe": board.Timeframe, "items": items})
}

func serializeBumpStats(stats *service.ListingBumpStats) gin.H {
	payload := gin.H{
		"slug":    stats.Slug,
		"total":   stats.Total,
		"counts":  stats.Counts,
		"canBump": stats.CanBump,
	}

	// 无事件历史时 listingId 与 nextAvailableAt 以 null 返回，沿用前端约定
	if stats.ListingID != "" {
		payload["listingId"] = stats.ListingID
	} else {
		payload["listingId"] = nil
	}
	if stats.NextAvailableAt != nil {
		payload["nextAvailableAt"] = *stats.NextAvailableAt
	} else {
		payload["nextAvailableAt"] = nil
	}

	return payload
}
