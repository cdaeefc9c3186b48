package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

func notCanceled(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// StorePolicy retries snapshot writes a few times with short waits.
func StorePolicy(log *zap.Logger) Policy {
	return Policy{
		Name:      "snapshot_store",
		Attempts:  3,
		Backoff:   ExpoJitter{Base: 50 * time.Millisecond, Max: time.Second, Jitter: 0.2},
		Retryable: notCanceled,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("snapshot store retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}

// KafkaPolicy retries transition event publishing.
func KafkaPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:      "kafka_publish",
		Attempts:  5,
		Backoff:   ExpoJitter{Base: 200 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.2},
		Retryable: notCanceled,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("kafka publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("kafka publish retries exhausted", zap.Error(err))
			}
		},
	}
}
