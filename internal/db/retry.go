package db

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/logger"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsRetryable decides whether a failed Operation should be attempted again.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// Try retries an insert whose freshly generated _id collided with an existing one.
// Any other failure, including a duplicate on a different unique index, returns at once.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsIDCollision)
}

// WithRetries attempts op once plus up to maxRetries more times while retryable(err) holds.
func WithRetries(op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			break
		}
		logger.Debug("Retrying after id collision", zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsDuplicateKeyOn reports a duplicate key error raised by the index on field.
func IsDuplicateKeyOn(err error, field string) bool {
	for _, msg := range duplicateKeyMessages(err) {
		if strings.Contains(msg, field) {
			return true
		}
	}
	return false
}

// IsIDCollision reports a duplicate key error on the _id index.
func IsIDCollision(err error) bool {
	for _, msg := range duplicateKeyMessages(err) {
		if strings.Contains(msg, "_id_") || strings.Contains(msg, "dup key: { _id") {
			return true
		}
	}
	return false
}

func duplicateKeyMessages(err error) []string {
	var msgs []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				msgs = append(msgs, e.Message)
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				msgs = append(msgs, e.Message)
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		msgs = append(msgs, ce.Message)
	}
	return msgs
}
