package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/samuiconnect/internal/db"
	"github.com/samuiconnect/internal/router"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type e2eSuite struct {
	handler   http.Handler
	public    httpClient
	admin     httpClient
	baseURL   string
	uploadDir string
	adminPass string
	user      db.User
	listings  []db.Listing
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("public endpoints", suite.testPublicEndpoints)
	t.Run("bump flow", suite.testBumpFlow)
	suite.login(t)
	t.Run("admin apis", suite.testAdminAPIs)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.Listing{},
		&db.BumpEvent{},
		&db.ListingClaim{},
		&db.InstagramAccount{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	db.DB = gdb

	hashed, err := bcrypt.GenerateFromPassword([]byte("e2e-secret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := db.User{Username: "admin", Password: string(hashed)}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	listings := []db.Listing{
		{
			ListingID:       "listing-1",
			Slug:            "coffee-hut",
			Name:            "Coffee Hut",
			Location:        "Lamai",
			PrimaryCategory: "Cafe",
			Tags:            []string{"Cafe", "Breakfast"},
			ImageURL:        "https://example.com/coffee.jpg",
			Description:     "Best flat white on the island.",
		},
		{
			ListingID:       "listing-2",
			Slug:            "dive-masters",
			Name:            "Dive Masters",
			Location:        "Chaweng",
			PrimaryCategory: "Diving",
			Tags:            []string{"Diving", "PADI"},
			Description:     "PADI certified dive school.",
		},
	}
	if err := db.DB.Create(&listings).Error; err != nil {
		t.Fatalf("failed to seed listings: %v", err)
	}

	uploadDir := t.TempDir()
	engine := router.SetupRouter("test-session-secret", uploadDir, "/uploads", "", "")

	return &e2eSuite{
		handler:   engine,
		public:    newLocalClient(engine, false),
		admin:     newLocalClient(engine, true),
		baseURL:   "https://example.test",
		uploadDir: uploadDir,
		adminPass: "e2e-secret",
		user:      user,
		listings:  listings,
	}
}

func (s *e2eSuite) login(t *testing.T) {
	t.Helper()

	resp := s.mustRequestJSON(t, s.admin, http.MethodPost, "/admin/api/login", map[string]interface{}{
		"username": s.user.Username,
		"password": s.adminPass,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed, status %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
}

func (s *e2eSuite) testPublicEndpoints(t *testing.T) {
	t.Helper()

	resp := s.mustRequest(t, s.public, http.MethodGet, "/ping", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/listings", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("listings: expected 200, got %d", resp.StatusCode)
	}
	var directory []map[string]interface{}
	decodeJSON(t, resp, &directory)
	if len(directory) != 2 {
		t.Fatalf("listings: expected 2 entries, got %d", len(directory))
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/listings?slug=coffee-hut", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("listing detail: expected 200, got %d", resp.StatusCode)
	}
	var detail map[string]interface{}
	decodeJSON(t, resp, &detail)
	if detail["name"] != "Coffee Hut" || detail["descriptionHtml"] == nil {
		t.Fatalf("listing detail: unexpected payload %+v", detail)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/listings?slug=missing", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing listing: expected 404, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.public, http.MethodPost, "/api/claims", map[string]interface{}{
		"slug":  "coffee-hut",
		"name":  "Coffee Hut Samui",
		"phone": "+66 77 123 456",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit claim: expected 200, got %d", resp.StatusCode)
	}

	// 认领覆盖立即生效
	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/listings?slug=coffee-hut", nil, nil)
	defer resp.Body.Close()
	decodeJSON(t, resp, &detail)
	if detail["name"] != "Coffee Hut Samui" {
		t.Fatalf("claim overlay: expected overridden name, got %v", detail["name"])
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/instagram?username=nobody", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("instagram lookup: expected 404, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testBumpFlow(t *testing.T) {
	t.Helper()

	resp := s.mustRequestJSON(t, s.public, http.MethodPost, "/api/bumps", map[string]interface{}{
		"slug": "coffee-hut", "listingId": "listing-1", "userId": "visitor-1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bump: expected 201, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}

	resp = s.mustRequestJSON(t, s.public, http.MethodPost, "/api/bumps", map[string]interface{}{
		"slug": "coffee-hut", "listingId": "listing-1", "userId": "visitor-1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("repeat bump: expected 429, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/bumps?slug=coffee-hut&userId=visitor-1", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats struct {
		Total   int            `json:"total"`
		Counts  map[string]int `json:"counts"`
		CanBump bool           `json:"canBump"`
	}
	decodeJSON(t, resp, &stats)
	if stats.Total != 1 || stats.Counts["24 hours"] != 1 || stats.CanBump {
		t.Fatalf("stats: unexpected payload %+v", stats)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/bumps?leaderboard=1", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: expected 200, got %d", resp.StatusCode)
	}
	var board struct {
		Timeframe string `json:"timeframe"`
		Items     []struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		} `json:"items"`
	}
	decodeJSON(t, resp, &board)
	if board.Timeframe != "24 hours" || len(board.Items) != 1 {
		t.Fatalf("leaderboard: unexpected payload %+v", board)
	}
	if board.Items[0].Slug != "coffee-hut" || board.Items[0].Name != "Coffee Hut Samui" {
		t.Fatalf("leaderboard: unexpected top item %+v", board.Items[0])
	}
}

func (s *e2eSuite) testAdminAPIs(t *testing.T) {
	t.Helper()

	// 未登录客户端被拒
	resp := s.mustRequest(t, s.public, http.MethodGet, "/admin/api/overview", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous overview: expected 401, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/admin/api/overview", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("overview: expected 200, got %d", resp.StatusCode)
	}
	var overview struct {
		Listings int64 `json:"listings"`
		Claims   int64 `json:"claims"`
		Bumps    int64 `json:"bumps"`
	}
	decodeJSON(t, resp, &overview)
	if overview.Listings != 2 || overview.Claims != 1 || overview.Bumps != 1 {
		t.Fatalf("overview: unexpected counts %+v", overview)
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/admin/api/claims", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list claims: expected 200, got %d", resp.StatusCode)
	}
	var claimList struct {
		Claims []struct {
			Slug string `json:"slug"`
		} `json:"claims"`
	}
	decodeJSON(t, resp, &claimList)
	if len(claimList.Claims) != 1 || claimList.Claims[0].Slug != "coffee-hut" {
		t.Fatalf("list claims: unexpected payload %+v", claimList)
	}

	resp = s.uploadTestImage(t)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload image expected 200, got %d, body=%s", resp.StatusCode, readBody(t, resp))
	}
	var uploadResp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	decodeJSON(t, resp, &uploadResp)
	if !uploadResp.Success || uploadResp.URL == "" {
		t.Fatalf("unexpected upload response: %+v", uploadResp)
	}

	resp = s.mustRequest(t, s.admin, http.MethodDelete, "/admin/api/claims/coffee-hut", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete claim: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.admin, http.MethodDelete, "/admin/api/claims/coffee-hut", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete missing claim: expected 404, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.admin, http.MethodPost, "/admin/api/logout", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) uploadTestImage(t *testing.T) *http.Response {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, "image", "test.png"))
	partHeader.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(buf.Bytes()); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	headers := map[string]string{
		"Content-Type": writer.FormDataContentType(),
	}
	return s.mustRequest(t, s.admin, http.MethodPost, "/admin/api/uploads", body, headers)
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.mustRequest(t, client, method, path, bytes.NewReader(data), headers)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}
