package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"metal_price_tracker/internal/model"
	"metal_price_tracker/pkg/utils"
)

// ==================== HTTP 客户端 ====================

// Client 单个供应商的出站客户端：重试 + 请求间隔 + 鉴权错误映射
type Client struct {
	competitor model.Competitor
	http       *resty.Client
	limiter    *rate.Limiter
	recorder   *Recorder
}

// NewClient 创建供应商客户端，delay 为两次请求之间的最小间隔
func NewClient(competitor model.Competitor, opts utils.ClientOptions, delay time.Duration, recorder *Recorder) *Client {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Client{
		competitor: competitor,
		http:       utils.NewClient(opts),
		limiter:    rate.NewLimiter(limit, 1),
		recorder:   recorder,
	}
}

// Request 构建请求
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    interface{}
	Result  interface{}
}

// Do 发送请求并把 JSON 响应解析到 Result
func (c *Client) Do(ctx context.Context, req Request) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	r := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeaders(req.Headers).
		SetQueryParams(req.Query)
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", c.competitor, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%s 返回 %d: %w", c.competitor, code, ErrUnauthorized)
	case resp.IsError():
		return fmt.Errorf("%s 返回 HTTP %d: %s", c.competitor, code, truncate(resp.String(), 300))
	}

	c.recorder.Record(c.competitor, resp.Request.URL, resp.Body())

	if req.Result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), req.Result); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", c.competitor, err)
	}
	return nil
}

// Get 简化的 GET
func (c *Client) Get(ctx context.Context, url string, headers map[string]string, result interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers, Result: result})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ==================== 原始响应归档 ====================

// RawResponse 一次成功响应的原文
type RawResponse struct {
	URL  string          `json:"url"`
	Body json.RawMessage `json:"body"`
}

// Recorder 按供应商收集原始响应，nil 时不记录
type Recorder struct {
	mu      sync.Mutex
	entries map[model.Competitor][]RawResponse
}

func NewRecorder() *Recorder {
	return &Recorder{entries: make(map[model.Competitor][]RawResponse)}
}

// Record 只保留合法 JSON
func (r *Recorder) Record(competitor model.Competitor, url string, body []byte) {
	if r == nil || !json.Valid(body) {
		return
	}
	cp := make([]byte, len(body))
	copy(cp, body)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[competitor] = append(r.entries[competitor], RawResponse{URL: url, Body: cp})
}

// Take 取出并清空某供应商的记录
func (r *Recorder) Take(competitor model.Competitor) []RawResponse {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries[competitor]
	delete(r.entries, competitor)
	return out
}
