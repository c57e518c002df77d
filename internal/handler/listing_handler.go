package handler

import (
	"bytes"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samuiconnect/internal/db"
	"github.com/samuiconnect/internal/service"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

type createListingPayload struct {
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

// GetListings 提供目录查询：id/slug 返回单条记录，否则按分类、地点、搜索词过滤。
func (a *API) GetListings(c *gin.Context) {
	idParam := strings.TrimSpace(c.Query("id"))
	slugParam := strings.TrimSpace(c.Query("slug"))

	if idParam != "" || slugParam != "" {
		listing, err := a.lookupListing(idParam, slugParam)
		if err != nil {
			if errors.Is(err, service.ErrListingNotFound) {
				respondError(c, http.StatusNotFound, "Listing not found")
				return
			}
			log.Printf("listing lookup failed: %v", err)
			respondError(c, http.StatusInternalServerError, "Failed to load listings")
			return
		}

		c.JSON(http.StatusOK, serializeListing(*listing, true))
		return
	}

	filter := service.ListingFilter{
		Categories: nonEmptyQueryValues(c.QueryArray("category")),
		Locations:  nonEmptyQueryValues(c.QueryArray("location")),
		Search:     strings.TrimSpace(c.Query("search")),
	}

	listings, err := a.listings.List(filter)
	if err != nil {
		log.Printf("listing query failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to load listings")
		return
	}

	items := make([]gin.H, 0, len(listings))
	for _, listing := range listings {
		items = append(items, serializeListing(listing, false))
	}

	c.JSON(http.StatusOK, items)
}

// CreateListing 处理前台提交的新商家。
func (a *API) CreateListing(c *gin.Context) {
	var payload createListingPayload
	if !bindJSON(c, &payload, "Name is required") {
		return
	}

	listing, err := a.listings.CreateCustom(service.CustomListingInput{
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
		switch {
		case errors.Is(err, service.ErrListingNameRequired):
			respondError(c, http.StatusBadRequest, "Name is required")
		case errors.Is(err, service.ErrListingExists):
			respondError(c, http.StatusBadRequest, "A listing with this name already exists")
		default:
			log.Printf("listing create failed: %v", err)
			respondError(c, http.StatusInternalServerError, "Failed to create listing")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "slug": listing.Slug})
}

func (a *API) lookupListing(idParam, slugParam string) (*db.Listing, error) {
	if idParam != "" {
		listing, err := a.listings.GetByID(idParam)
		if err == nil {
			return listing, nil
		}
		if !errors.Is(err, service.ErrListingNotFound) || slugParam == "" {
			return nil, err
		}
	}
	return a.listings.GetBySlug(slugParam)
}

func serializeListing(listing db.Listing, withHTML bool) gin.H {
	item := gin.H{
		"id":                     listing.ListingID,
		"slug":                   listing.Slug,
		"name":                   listing.Name,
		"url":                    listing.URL,
		"location":               listing.Location,
		"address":                listing.Address,
		"primaryCategory":        listing.PrimaryCategory,
		"tags":                   emptyIfNil(listing.Tags),
		"imageUrl":               listing.ImageURL,
		"description":            listing.Description,
		"contacts":               listing.Contacts,
		"featuredInstagramPosts": emptyIfNil(listing.FeaturedInstagramPosts),
		"custom":                 listing.Custom,
	}

	if listing.RemoteImageURL != "" {
		item["remoteImageUrl"] = listing.RemoteImageURL
	}
	if listing.ImageLocalPath != "" {
		item["imageLocalPath"] = listing.ImageLocalPath
	}
	if listing.MapEmbedURL != "" {
		item["mapEmbedUrl"] = listing.MapEmbedURL
	}
	if listing.MapLatitude != "" {
		item["mapLatitude"] = listing.MapLatitude
	}
	if listing.MapLongitude != "" {
		item["mapLongitude"] = listing.MapLongitude
	}

	if withHTML {
		if rendered, err := renderMarkdown(listing.Description); err == nil {
			item["descriptionHtml"] = rendered
		}
	}

	return item
}

func renderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	safe := sanitizer.SanitizeBytes(buf.Bytes())
	return template.HTML(safe), nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
