package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"leadwatch/config"
	"leadwatch/logger"
	"leadwatch/metrics"
)

// Notifier 通知渠道
type Notifier interface {
	Send(ctx context.Context, title, body string) error
	Name() string
}

// NotificationService 通知服务，把一条消息扇出到所有启用的渠道
type NotificationService struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewNotificationService 创建通知服务
func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{notifiers: buildNotifiers(cfg)}
}

// Reload 按新配置重建所有渠道，旧渠道随后关闭
func (ns *NotificationService) Reload(cfg *config.Config) {
	next := buildNotifiers(cfg)
	ns.mu.Lock()
	old := ns.notifiers
	ns.notifiers = next
	ns.mu.Unlock()

	if err := closeAll(old); err != nil {
		logger.Warn("⚠️ 关闭旧通知渠道失败: %v", err)
	}
	logger.Info("🔄 通知渠道已重新加载，共 %d 个", len(next))
}

func buildNotifiers(cfg *config.Config) []Notifier {
	var out []Notifier
	if !cfg.Notifications.Enabled {
		return nil
	}

	if cfg.Notifications.PushPlus.Enabled {
		if n, err := NewPushPlusNotifier(cfg); err != nil {
			logger.Warn("⚠️ 初始化 PushPlus 通知失败: %v", err)
		} else {
			out = append(out, n)
			logger.Info("✅ PushPlus 通知已启用")
		}
	}

	if cfg.Notifications.Telegram.Enabled {
		if n, err := NewTelegramNotifier(cfg); err != nil {
			logger.Warn("⚠️ 初始化 Telegram 通知失败: %v", err)
		} else {
			out = append(out, n)
			logger.Info("✅ Telegram 通知已启用")
		}
	}

	if cfg.Notifications.Webhook.Enabled {
		if n, err := NewWebhookNotifier(cfg); err != nil {
			logger.Warn("⚠️ 初始化 Webhook 通知失败: %v", err)
		} else {
			out = append(out, n)
			logger.Info("✅ Webhook 通知已启用")
		}
	}

	if cfg.Notifications.Kafka.Enabled {
		if n, err := NewKafkaNotifier(cfg); err != nil {
			logger.Warn("⚠️ 初始化 Kafka 通知失败: %v", err)
		} else {
			out = append(out, n)
			logger.Info("✅ Kafka 通知已启用 (topic: %s)", cfg.Notifications.Kafka.Topic)
		}
	}

	if len(out) == 0 {
		logger.Warn("⚠️ 未配置任何通知渠道，异动报警只输出到日志")
	}
	return out
}

// NewNotificationServiceWith 使用指定渠道创建通知服务
func NewNotificationServiceWith(notifiers ...Notifier) *NotificationService {
	return &NotificationService{notifiers: notifiers}
}

// Len 已启用的渠道数
func (ns *NotificationService) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.notifiers)
}

// Send 并发发送到所有渠道，等待全部完成；单个渠道失败不影响其它渠道
func (ns *NotificationService) Send(ctx context.Context, title, body string) error {
	ns.mu.RLock()
	notifiers := ns.notifiers
	ns.mu.RUnlock()

	if len(notifiers) == 0 {
		logger.Info("📭 无通知渠道，跳过发送: %s", title)
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, notifier := range notifiers {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			err := n.Send(ctx, title, body)
			metrics.GetPrometheusMetrics().RecordNotify(n.Name(), err)
			if err != nil {
				logger.Warn("⚠️ [%s] 通知发送失败: %v", n.Name(), err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
				mu.Unlock()
				return
			}
			logger.Debug("📨 [%s] 通知发送成功", n.Name())
		}(notifier)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close 释放渠道资源
func (ns *NotificationService) Close() error {
	ns.mu.Lock()
	old := ns.notifiers
	ns.notifiers = nil
	ns.mu.Unlock()
	return closeAll(old)
}

func closeAll(notifiers []Notifier) error {
	var errs []error
	for _, n := range notifiers {
		if c, ok := n.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
