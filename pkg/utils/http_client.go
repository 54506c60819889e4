package utils

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientOptions 出站 HTTP 客户端参数
type ClientOptions struct {
	Timeout      time.Duration
	UserAgent    string
	Proxy        string // 为空则直连
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Debug        bool
}

// NewClient 创建配置好超时、UA、代理和重试策略的 Resty 客户端
// 它是全系统统一的出站请求入口
func NewClient(opts ClientOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "metal-price-tracker/1.0"
	}

	client := resty.New().
		SetDebug(opts.Debug).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)

	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	// 指数退避：网络错误、429、5xx 重试
	if opts.RetryCount > 0 {
		client.
			SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(opts.RetryWait).
			SetRetryMaxWaitTime(opts.RetryMaxWait).
			AddRetryCondition(IsRetryable)
	}

	return client
}

// IsRetryable 判断响应是否值得重试
func IsRetryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
