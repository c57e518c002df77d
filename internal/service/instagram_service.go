package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samuiconnect/internal/db"
	"gorm.io/gorm"
)

const (
	defaultGraphBaseURL = "https://graph.instagram.com"
	defaultBasicBaseURL = "https://api.instagram.com"

	// instagramRefreshThreshold 长效令牌距过期不足该时长时提前刷新
	instagramRefreshThreshold = 7 * 24 * time.Hour

	// DefaultInstagramMediaLimit 拉取媒体的默认条数
	DefaultInstagramMediaLimit = 12
)

var defaultInstagramMediaFields = strings.Join([]string{
	"id", "media_type", "media_url", "permalink", "thumbnail_url", "timestamp", "caption", "username",
}, ",")

var (
	// ErrInstagramAccountNotFound 在账号未注册时返回
	ErrInstagramAccountNotFound = errors.New("instagram account is not registered")
	// ErrInstagramCredentialsMissing 在未配置应用凭据时返回
	ErrInstagramCredentialsMissing = errors.New("IG_CLIENT_ID and IG_CLIENT_SECRET must be configured")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// InstagramMediaItem 对应 Graph API 返回的一条媒体。
type InstagramMediaItem struct {
	ID           string `json:"id"`
	Caption      string `json:"caption,omitempty"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Permalink    string `json:"permalink"`
	Timestamp    string `json:"timestamp,omitempty"`
	Username     string `json:"username"`
}

type shortLivedTokenResponse struct {
	AccessToken string      `json:"access_token"`
	UserID      json.Number `json:"user_id"`
}

type longLivedTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type profileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// InstagramService 负责 Instagram 授权账号的令牌管理与媒体拉取。
type InstagramService struct {
	db           *gorm.DB
	http         httpDoer
	graphBaseURL string
	basicBaseURL string
	clientID     string
	clientSecret string
}

// NewInstagramService 构造 InstagramService，客户端凭据来自配置。
func NewInstagramService(gdb *gorm.DB, clientID, clientSecret string) *InstagramService {
	return &InstagramService{
		db:           gdb,
		http:         &http.Client{Timeout: 20 * time.Second},
		graphBaseURL: defaultGraphBaseURL,
		basicBaseURL: defaultBasicBaseURL,
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
	}
}

// SetHTTPClient 允许在测试中替换 HTTP 客户端。
func (s *InstagramService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.http = &http.Client{Timeout: 20 * time.Second}
		return
	}
	s.http = client
}

// SetGraphBaseURL 允许在测试中替换 Graph API 地址。
func (s *InstagramService) SetGraphBaseURL(base string) {
	s.graphBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// SetBasicBaseURL 允许在测试中替换 OAuth 接口地址。
func (s *InstagramService) SetBasicBaseURL(base string) {
	s.basicBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// ListAccounts 返回全部已授权账号。
func (s *InstagramService) ListAccounts() ([]db.InstagramAccount, error) {
	var accounts []db.InstagramAccount
	if err := s.db.Order("username ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list instagram accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount 按 Instagram 用户 ID 或用户名（不区分大小写）查找账号。
func (s *InstagramService) GetAccount(igUserID, username string) (*db.InstagramAccount, error) {
	if id := strings.TrimSpace(igUserID); id != "" {
		var account db.InstagramAccount
		err := s.db.Where("ig_user_id = ?", id).First(&account).Error
		if err == nil {
			return &account, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get instagram account: %w", err)
		}
	}

	if name := strings.TrimSpace(username); name != "" {
		var account db.InstagramAccount
		err := s.db.Where("LOWER(username) = ?", strings.ToLower(name)).First(&account).Error
		if err == nil {
			return &account, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get instagram account: %w", err)
		}
	}

	return nil, ErrInstagramAccountNotFound
}

// UpsertAccount 写入账号令牌：已存在（按用户 ID 或用户名）则整体替换，否则新建。
func (s *InstagramService) UpsertAccount(record db.InstagramAccount) (*db.InstagramAccount, error) {
	var existing db.InstagramAccount
	err := s.db.Where("ig_user_id = ? OR LOWER(username) = ?", record.IGUserID, strings.ToLower(record.Username)).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(&record).Error; err != nil {
			return nil, fmt.Errorf("create instagram account: %w", err)
		}
		return &record, nil
	case err != nil:
		return nil, fmt.Errorf("find instagram account: %w", err)
	}

	existing.IGUserID = record.IGUserID
	existing.Username = record.Username
	existing.AccessToken = record.AccessToken
	existing.ExpiresAt = record.ExpiresAt
	existing.LastRefreshedAt = record.LastRefreshedAt

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update instagram account: %w", err)
	}
	return &existing, nil
}

// ExchangeCode 走完整的授权码流程：换短效令牌、升级长效令牌、读取资料并落库。
func (s *InstagramService) ExchangeCode(ctx context.Context, code, redirectURI string) (*db.InstagramAccount, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return nil, ErrInstagramCredentialsMissing
	}

	short, err := s.exchangeForShortLivedToken(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	longLived, err := s.convertToLongLivedToken(ctx, short.AccessToken)
	if err != nil {
		return nil, err
	}

	profile, err := s.lookupProfile(ctx, longLived.AccessToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	record := db.InstagramAccount{
		IGUserID:        profile.ID,
		Username:        profile.Username,
		AccessToken:     longLived.AccessToken,
		ExpiresAt:       now + longLived.ExpiresIn*1000,
		LastRefreshedAt: now,
	}
	return s.UpsertAccount(record)
}

// RefreshToken 刷新长效令牌并落库。
func (s *InstagramService) RefreshToken(ctx context.Context, account *db.InstagramAccount) (*db.InstagramAccount, error) {
	params := url.Values{
		"grant_type":   {"ig_refresh_token"},
		"access_token": {account.AccessToken},
	}

	var body longLivedTokenResponse
	endpoint := fmt.Sprintf("%s/refresh_access_token?%s", s.graphBaseURL, params.Encode())
	if err := s.getJSON(ctx, endpoint, &body, "refresh instagram token"); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	account.AccessToken = body.AccessToken
	account.ExpiresAt = now + body.ExpiresIn*1000
	account.LastRefreshedAt = now

	return s.UpsertAccount(*account)
}

// EnsureFreshToken 在令牌临近过期（或 force 为真）时刷新，否则原样返回。
func (s *InstagramService) EnsureFreshToken(ctx context.Context, account *db.InstagramAccount, force bool) (*db.InstagramAccount, error) {
	remaining := account.ExpiresAt - time.Now().UnixMilli()
	if !force && remaining > instagramRefreshThreshold.Milliseconds() {
		return account, nil
	}
	return s.RefreshToken(ctx, account)
}

// FetchMedia 拉取账号的媒体列表。limit 非正数时取默认值，fields 为空时取默认字段集。
func (s *InstagramService) FetchMedia(ctx context.Context, account *db.InstagramAccount, limit int, fields string) ([]InstagramMediaItem, error) {
	if limit <= 0 {
		limit = DefaultInstagramMediaLimit
	}
	if strings.TrimSpace(fields) == "" {
		fields = defaultInstagramMediaFields
	}

	params := url.Values{
		"fields":       {fields},
		"access_token": {account.AccessToken},
		"limit":        {fmt.Sprintf("%d", limit)},
	}

	var body struct {
		Data []InstagramMediaItem `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/%s/media?%s", s.graphBaseURL, account.IGUserID, params.Encode())
	if err := s.getJSON(ctx, endpoint, &body, "load instagram media"); err != nil {
		return nil, err
	}

	return body.Data, nil
}

func (s *InstagramService) exchangeForShortLivedToken(ctx context.Context, code, redirectURI string) (*shortLivedTokenResponse, error) {
	form := url.Values{
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	}

	endpoint := s.basicBaseURL + "/oauth/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body shortLivedTokenResponse
	if err := s.doJSON(req, &body, "exchange code for token"); err != nil {
		return nil, err
	}
	return &body, nil
}

func (s *InstagramService) convertToLongLivedToken(ctx context.Context, shortToken string) (*longLivedTokenResponse, error) {
	params := url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {s.clientSecret},
		"access_token":  {shortToken},
	}

	var body longLivedTokenResponse
	endpoint := fmt.Sprintf("%s/access_token?%s", s.graphBaseURL, params.Encode())
	if err := s.getJSON(ctx, endpoint, &body, "convert to long-lived token"); err != nil {
		return nil, err
	}
	return &body, nil
}

func (s *InstagramService) lookupProfile(ctx context.Context, accessToken string) (*profileResponse, error) {
	params := url.Values{
		"fields":       {"id,username"},
		"access_token": {accessToken},
	}

	var body profileResponse
	endpoint := fmt.Sprintf("%s/me?%s", s.graphBaseURL, params.Encode())
	if err := s.getJSON(ctx, endpoint, &body, "load instagram profile"); err != nil {
		return nil, err
	}
	return &body, nil
}

func (s *InstagramService) getJSON(ctx context.Context, endpoint string, dst any, action string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	return s.doJSON(req, dst, action)
}

func (s *InstagramService) doJSON(req *http.Request, dst any, action string) error {
	client := s.http
	if client == nil {
		client = http.DefaultClient
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "samuiconnect/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", action, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: %d %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s: parse response: %w", action, err)
	}
	return nil
}
