package datapush

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 默认重试参数
const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Webhook 群机器人推送
type Webhook struct {
	URL           string
	RetryTimes    int
	RetryInterval time.Duration
	Client        *http.Client
}

// NewWebhook 创建群机器人, times/interval 为0时使用默认值
func NewWebhook(url string, times int, interval time.Duration) *Webhook {
	if times <= 0 {
		times = RETRY_TIMES
	}
	if interval <= 0 {
		interval = RETRY_INTERVAL
	}
	return &Webhook{
		URL:           url,
		RetryTimes:    times,
		RetryInterval: interval,
		Client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMarkdown 推送 markdown 消息, 失败时按间隔重试
func (h *Webhook) SendMarkdown(title, text string) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(func() error {
		return h.post(payloadBytes)
	}, h.RetryTimes, h.RetryInterval)
}

func (h *Webhook) post(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, h.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook 返回 %d: %s", resp.StatusCode, respBody)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
