package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leadwatch/logger"
	"leadwatch/metrics"
)

const (
	// MainnetRestURL 主站地址
	MainnetRestURL = "https://www.okx.com"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options 客户端参数
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // 每秒请求数，<=0 不限速
	Burst      int
	UserAgent  string
	HTTPClient *http.Client
}

// Client OKX 跟单公共接口客户端（无需签名）
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient 创建 OKX 客户端
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = MainnetRestURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// envelope 通用响应结构，code 可能是字符串也可能是数字
type envelope struct {
	Code json.RawMessage `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// get 发送 GET 请求并校验传输层状态和业务 code，返回 data 字段
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("等待限流失败: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "zh-CN")
	req.Header.Set("User-Agent", c.userAgent)

	logger.Debug("🌐 请求 OKX %s", reqURL)

	start := time.Now()
	status := "error"
	defer func() {
		metrics.GetPrometheusMetrics().RecordAPICall(endpoint, status, time.Since(start))
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		status = strconv.Itoa(resp.StatusCode)
		return nil, &HTTPError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp envelope
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		status = "decode_error"
		return nil, fmt.Errorf("解析 %s 响应失败: %w", endpoint, err)
	}

	if code := codeString(apiResp.Code); code != "0" {
		status = "business_error"
		return nil, &BusinessError{Endpoint: endpoint, Code: code, Msg: apiResp.Msg}
	}

	status = "ok"
	return apiResp.Data, nil
}

// codeString "0" 和 0 都视为成功
func codeString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
