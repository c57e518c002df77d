package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/db"
	"github.com/samuiconnect/internal/service"
)

type claimPayload struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	PrimaryCategory string   `json:"primaryCategory"`
	Location        string   `json:"location"`
	Address         string   `json:"address"`
	Description     string   `json:"description"`
	Website         string   `json:"website"`
	Phone           string   `json:"phone"`
	Email           string   `json:"email"`
	InstagramPosts  []string `json:"instagramPosts"`
}

// SubmitClaim 处理商家认领提交，覆盖信息按字段合并。
func (a *API) SubmitClaim(c *gin.Context) {
	var payload claimPayload
	if !bindJSON(c, &payload, "Invalid claim submission") {
		return
	}

	_, err := a.claims.Submit(service.ClaimInput{
		Slug:            payload.Slug,
		Name:            payload.Name,
		PrimaryCategory: payload.PrimaryCategory,
		Location:        payload.Location,
		Address:         payload.Address,
		Description:     payload.Description,
		Website:         payload.Website,
		Phone:           payload.Phone,
		Email:           payload.Email,
		InstagramPosts:  payload.InstagramPosts,
	})
	if err != nil {
		if errors.Is(err, service.ErrClaimSlugRequired) {
			respondError(c, http.StatusBadRequest, "Missing or invalid slug")
			return
		}
		log.Printf("claim submit failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to save claim")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListClaims 返回全部认领记录，供后台审阅。
func (a *API) ListClaims(c *gin.Context) {
	claims, err := a.claims.List()
	if err != nil {
		log.Printf("claim list failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to load claims")
		return
	}

	items := make([]gin.H, 0, len(claims))
	for _, claim := range claims {
		items = append(items, serializeClaim(claim))
	}

	c.JSON(http.StatusOK, gin.H{"claims": items})
}

// DeleteClaim 丢弃一条认领记录。
func (a *API) DeleteClaim(c *gin.Context) {
	slug := c.Param("slug")

	if err := a.claims.Delete(slug); err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			respondError(c, http.StatusNotFound, "Claim not found")
			return
		}
		log.Printf("claim delete failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to delete claim")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true, "slug": slug})
}

func serializeClaim(claim db.ListingClaim) gin.H {
	return gin.H{
		"slug":            claim.Slug,
		"name":            claim.Name,
		"primaryCategory": claim.PrimaryCategory,
		"location":        claim.Location,
		"address":         claim.Address,
		"description":     claim.Description,
		"website":         claim.Website,
		"phone":           claim.Phone,
		"email":           claim.Email,
		"instagramPosts":  emptyIfNil(claim.InstagramPosts),
		"updatedAt":       claim.UpdatedAt.Format(time.RFC3339),
	}
}
