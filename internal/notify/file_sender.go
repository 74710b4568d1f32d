package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/logger"
)

// FileSender appends notifications to a local file.
type FileSender struct {
	filePath string
	mu       sync.Mutex
}

// NewFileSender creates the sender and makes sure the file's directory exists.
func NewFileSender(filePath string) (*FileSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("notification log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for notification log '%s': %w", dir, err)
	}
	return &FileSender{filePath: filePath}, nil
}

func (s *FileSender) Send(ctx context.Context, msg Message) error {
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	entry := fmt.Sprintf("--- Notification at %s (To: %s, Subject: %s) ---\n%s\n--- End Notification ---\n\n",
		sentAt.Format(time.RFC3339Nano), msg.To, msg.Subject, msg.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open notification log: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write notification log: %w", err)
	}

	logger.Debug("Notification written to file", zap.String("to", msg.To), zap.String("path", s.filePath))
	return nil
}
