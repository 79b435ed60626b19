package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leadwatch/config"
)

const pushPlusURL = "https://www.pushplus.plus/send"

// PushPlusNotifier PushPlus 微信推送
type PushPlusNotifier struct {
	token   string
	channel string
	url     string
	client  *http.Client
}

// NewPushPlusNotifier 创建 PushPlus 通知器
func NewPushPlusNotifier(cfg *config.Config) (*PushPlusNotifier, error) {
	if cfg.Notifications.PushPlus.Token == "" {
		return nil, fmt.Errorf("PushPlus Token 未配置")
	}
	channel := cfg.Notifications.PushPlus.Channel
	if channel == "" {
		channel = "wechat"
	}
	return &PushPlusNotifier{
		token:   cfg.Notifications.PushPlus.Token,
		channel: channel,
		url:     pushPlusURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Name 返回通知器名称
func (pn *PushPlusNotifier) Name() string {
	return "PushPlus"
}

// Send 以 html 模板发送，换行转为 <br/>
func (pn *PushPlusNotifier) Send(ctx context.Context, title, body string) error {
	payload := map[string]string{
		"token":    pn.token,
		"title":    title,
		"content":  strings.ReplaceAll(body, "\n", "<br/>"),
		"template": "html",
		"channel":  pn.channel,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pn.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pn.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("解析响应失败 (HTTP %d): %w", resp.StatusCode, err)
	}
	if result.Code != 200 {
		return fmt.Errorf("PushPlus 返回错误: code=%d msg=%s", result.Code, result.Msg)
	}
	return nil
}
