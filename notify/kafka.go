package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"leadwatch/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier 把报警发布到 Kafka，供下游系统消费
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

// NewKafkaNotifier 创建 Kafka 通知器
func NewKafkaNotifier(cfg *config.Config) (*KafkaNotifier, error) {
	kc := cfg.Notifications.Kafka
	if len(kc.Brokers) == 0 || kc.Topic == "" {
		return nil, fmt.Errorf("Kafka brokers 或 topic 未配置")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(kc.Brokers...),
		Topic:                  kc.Topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaNotifier{writer: writer, topic: kc.Topic}, nil
}

// Name 返回通知器名称
func (kn *KafkaNotifier) Name() string {
	return "Kafka"
}

// Send 发布一条 JSON 消息
func (kn *KafkaNotifier) Send(ctx context.Context, title, body string) error {
	value, err := json.Marshal(alertPayload{
		Type:      "lead_trader_alert",
		Title:     title,
		Content:   body,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte("lead_trader_alert"),
		Value: value,
	}
	if err := kn.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close 关闭 writer
func (kn *KafkaNotifier) Close() error {
	return kn.writer.Close()
}
