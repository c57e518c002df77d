package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/db"
)

func newAdminRouter(api *API) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(sessions.Sessions("samuiconnect_session", cookie.NewStore([]byte("test-secret"))))
	router.POST("/admin/api/login", api.Login)
	router.POST("/admin/api/logout", api.Logout)

	auth := router.Group("/admin/api", AuthRequired())
	auth.GET("/overview", api.GetAdminOverview)

	return router
}

func TestLoginSuccess(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.EnsureUser("admin", "secret123"); err != nil {
		t.Fatalf("failed to seed admin user: %v", err)
	}

	router := newAdminRouter(api)

	body, _ := json.Marshal(map[string]any{"username": "admin", "password": "secret123"})
	request := httptest.NewRequest(http.MethodPost, "/admin/api/login", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(recorder.Result().Cookies()) == 0 {
		t.Fatal("expected session cookie to be set")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.EnsureUser("admin", "secret123"); err != nil {
		t.Fatalf("failed to seed admin user: %v", err)
	}

	router := newAdminRouter(api)

	body, _ := json.Marshal(map[string]any{"username": "admin", "password": "wrong"})
	request := httptest.NewRequest(http.MethodPost, "/admin/api/login", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", recorder.Code)
	}
}

func TestAuthRequiredBlocksAnonymous(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	router := newAdminRouter(api)

	request := httptest.NewRequest(http.MethodGet, "/admin/api/overview", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", recorder.Code)
	}
}

func TestGetAdminOverviewCounts(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	listing := db.Listing{ListingID: "listing-1", Slug: "coffee-hut", Name: "Coffee Hut"}
	if err := db.DB.Create(&listing).Error; err != nil {
		t.Fatalf("failed to seed listing: %v", err)
	}
	event := db.BumpEvent{Slug: "coffee-hut", ListingID: "listing-1", UserID: "user-a", Timestamp: time.Now().UnixMilli()}
	if err := db.DB.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	claim := db.ListingClaim{Slug: "coffee-hut", Name: "Coffee Hut Samui"}
	if err := db.DB.Create(&claim).Error; err != nil {
		t.Fatalf("failed to seed claim: %v", err)
	}

	w := getRequest(t, api.GetAdminOverview, "/admin/api/overview")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Listings          int64 `json:"listings"`
		Claims            int64 `json:"claims"`
		Bumps             int64 `json:"bumps"`
		InstagramAccounts int64 `json:"instagramAccounts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Listings != 1 || resp.Claims != 1 || resp.Bumps != 1 || resp.InstagramAccounts != 0 {
		t.Fatalf("unexpected overview: %+v", resp)
	}
}
