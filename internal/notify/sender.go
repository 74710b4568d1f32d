package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/logger"
)

// Message is a short text notification addressed to a mobile number.
type Message struct {
	To      string    `json:"to"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LoggingSender writes notifications to the application log instead of delivering them.
type LoggingSender struct{}

func NewLoggingSender() *LoggingSender {
	return &LoggingSender{}
}

func (s *LoggingSender) Send(ctx context.Context, msg Message) error {
	logger.Info("Notification (logged)",
		zap.String("to", msg.To),
		zap.String("from", msg.From),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// Build assembles the configured senders. Mock mode stores messages in Redis,
// otherwise they are logged. A file sender is added when logPath is set.
func Build(mock bool, rdb redis.Cmdable, logPath string) (*CompositeSender, error) {
	composite := NewCompositeSender()
	if mock && rdb != nil {
		logger.Info("MOCK_SERVICES enabled: using Redis notification sender")
		composite.AddSender(NewRedisSender(rdb))
	} else {
		composite.AddSender(NewLoggingSender())
	}

	if logPath != "" {
		fileSender, err := NewFileSender(logPath)
		if err != nil {
			return composite, err
		}
		logger.Info("Notification file log enabled", zap.String("path", logPath))
		composite.AddSender(fileSender)
	}
	return composite, nil
}
