package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher 将事件以 JSON 发布到 Redis Stream
type StreamPublisher struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
}

// NewStreamPublisher 创建发布器，maxLen <= 0 表示不裁剪
func NewStreamPublisher(redisClient *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		redisClient: redisClient,
		stream:      stream,
		maxLen:      maxLen,
	}
}

// Stream 返回目标 Stream 名
func (p *StreamPublisher) Stream() string {
	return p.stream
}

// PublishJSON 发布消息，字段为 data（JSON）和 timestamp（Unix 秒）
func (p *StreamPublisher) PublishJSON(ctx context.Context, data any) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.redisClient.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return id, nil
}
