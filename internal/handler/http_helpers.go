package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// parsePositiveInt 解析正整数参数，无法解析或非正数时返回 fallback。
func parsePositiveInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// queryFlag 解析布尔查询参数，仅 "1" 与 "true" 视为真。
func queryFlag(c *gin.Context, key string) bool {
	raw := strings.TrimSpace(c.Query(key))
	return raw == "1" || raw == "true"
}

func nonEmptyQueryValues(values []string) []string {
	result := make([]string, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
