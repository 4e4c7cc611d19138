package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// 报警类型
const (
	AlertSampleException = "sample_exception"
	AlertOverdue         = "overdue"
)

// Alert 报警消息
type Alert struct {
	Type      string    `json:"type"`
	DnaID     string    `json:"dna_id"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Value     *float64  `json:"value,omitempty"`
	SampleID  string    `json:"sample_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher 发布原始消息（MQTTClient 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier 把报警发布到 <topicPrefix>/<dna_id>
type MQTTNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTNotifier 创建报警通知器
func NewMQTTNotifier(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// Topic 返回记录对应的主题
func (n *MQTTNotifier) Topic(dnaID string) string {
	return n.topicPrefix + "/" + dnaID
}

// Notify 发布报警
func (n *MQTTNotifier) Notify(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if alert.DnaID == "" {
		return fmt.Errorf("alert dna_id is required")
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := n.Topic(alert.DnaID)
	if err := n.publisher.Publish(topic, n.qos, false, payload); err != nil {
		return err
	}

	n.logger.Debug("Alert published",
		zap.String("topic", topic),
		zap.String("type", alert.Type),
		zap.String("severity", alert.Severity),
	)
	return nil
}

// NopNotifier MQTT 未启用时使用，丢弃全部报警
type NopNotifier struct{}

// Notify 不做任何事
func (NopNotifier) Notify(context.Context, Alert) error {
	return nil
}
