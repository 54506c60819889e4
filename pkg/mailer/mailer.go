package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"metal_price_tracker/pkg/utils"
)

// ErrNotConfigured 未配置 API key
var ErrNotConfigured = errors.New("邮件服务未配置")

// Message 一封 HTML 邮件
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Sender 邮件发送通道
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Enabled() bool
}

// Config Resend 配置
type Config struct {
	APIKey  string
	BaseURL string
}

// ResendSender 通过 Resend HTTP API 发信
type ResendSender struct {
	apiKey  string
	baseURL string
	http    *resty.Client
}

func NewResendSender(cfg Config, opts utils.ClientOptions) *ResendSender {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.resend.com"
	}
	return &ResendSender{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		http:    utils.NewClient(opts),
	}
}

func (s *ResendSender) Enabled() bool {
	return s.apiKey != ""
}

// Send POST /emails
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("收件人为空")
	}

	var result struct {
		ID string `json:"id"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		SetResult(&result).
		Post(s.baseURL + "/emails")
	if err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("发送邮件失败: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
