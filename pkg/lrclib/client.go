package lrclib

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
)

const (
	DefaultBaseURL = "https://lrclib.net/api"
	userAgent      = "waylyrics/1.0"
)

var (
	ErrEmptyBody      = errors.New("lrclib: empty response body")
	ErrNoResults      = errors.New("lrclib: no results")
	ErrNoSyncedLyrics = errors.New("lrclib: first result has no synced lyrics")
)

// Client LRCLib客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  *string `json:"plainLyrics"`
	// SyncedLyrics 为 nil 表示结果中没有同步歌词字段
	SyncedLyrics *string `json:"syncedLyrics"`
}

// LRCLibSearchResponse LRCLib API搜索响应（列表）
type LRCLibSearchResponse []LRCLibResponse

// NewClient 创建新的LRCLib客户端，baseURL 为空时使用官方地址
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GetProviderName 返回提供商名称
func (c *Client) GetProviderName() string {
	return "LRCLib"
}

// Search 按歌名（和可选的歌手）搜索，返回候选列表
func (c *Client) Search(ctx context.Context, title, artist string) (LRCLibSearchResponse, error) {
	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	var results LRCLibSearchResponse
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return results, nil
}

// SyncedLyrics 只取第一个候选结果的同步歌词，不回退到纯文本歌词
func (c *Client) SyncedLyrics(ctx context.Context, title, artist string) (string, error) {
	results, err := c.Search(ctx, title, artist)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w for '%s - %s'", ErrNoResults, title, artist)
	}
	first := results[0]
	if first.SyncedLyrics == nil || *first.SyncedLyrics == "" {
		return "", fmt.Errorf("%w for '%s - %s'", ErrNoSyncedLyrics, title, artist)
	}
	return *first.SyncedLyrics, nil
}
