package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/logger"
)

const (
	MockKeyPrefix = "mocknotify:"
	MockTTL       = 5 * time.Minute
)

// RedisSender stores the latest notification per recipient in Redis so
// integration tests can read it back.
type RedisSender struct {
	client redis.Cmdable
}

func NewRedisSender(client redis.Cmdable) *RedisSender {
	return &RedisSender{client: client}
}

// MockKey is the Redis key holding the last notification sent to a number.
func MockKey(to string) string {
	return MockKeyPrefix + to
}

func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := MockKey(msg.To)
	if err := s.client.Set(ctx, key, data, MockTTL).Err(); err != nil {
		return fmt.Errorf("failed to store notification in Redis key '%s': %w", key, err)
	}

	logger.Debug("Mock notification stored", zap.String("key", key), zap.Duration("ttl", MockTTL))
	return nil
}

// ReadMock returns the last notification stored for a number, or nil if none.
func ReadMock(ctx context.Context, client redis.Cmdable, to string) (*Message, error) {
	data, err := client.Get(ctx, MockKey(to)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
