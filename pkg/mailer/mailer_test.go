package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"metal_price_tracker/pkg/utils"
)

func TestResendSender_Send(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Header.Get("Authorization") != "Bearer re_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	s := NewResendSender(Config{APIKey: "re_test", BaseURL: srv.URL}, utils.ClientOptions{Timeout: time.Second})
	err := s.Send(context.Background(), Message{From: "a@x.io", To: []string{"b@x.io"}, Subject: "hi", HTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("Send 失败: %v", err)
	}
	if got.Subject != "hi" || len(got.To) != 1 || got.To[0] != "b@x.io" {
		t.Errorf("请求体不正确: %+v", got)
	}
}

func TestResendSender_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewResendSender(Config{APIKey: "k", BaseURL: srv.URL}, utils.ClientOptions{Timeout: time.Second})
	if err := s.Send(context.Background(), Message{To: []string{"b@x.io"}}); err == nil {
		t.Error("HTTP 422 应返回错误")
	}
	if err := s.Send(context.Background(), Message{}); err == nil {
		t.Error("无收件人应返回错误")
	}

	empty := NewResendSender(Config{}, utils.ClientOptions{})
	if empty.Enabled() {
		t.Error("无 key 时不应启用")
	}
	if err := empty.Send(context.Background(), Message{To: []string{"b@x.io"}}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
