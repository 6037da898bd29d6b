package queue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/infrastructure/mq"
	"Mano/pkg/zlog"

	"go.uber.org/zap"
)

// OutboxRelay 轮询向量化 outbox 并把待发布事件转投 Kafka。
// 发布失败按重试次数指数退避，由 next_retry_at 控制再次认领时间。
type OutboxRelay struct {
	repo         repository.EmbedEventRepository
	pub          mq.Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
}

func NewOutboxRelay(repo repository.EmbedEventRepository, pub mq.Publisher, topic string, batchSize int, pollInterval time.Duration) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 200
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &OutboxRelay{
		repo:         repo,
		pub:          pub,
		topic:        strings.TrimSpace(topic),
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

func (r *OutboxRelay) Run(ctx context.Context) error {
	if r.repo == nil {
		return errors.New("embed event repo is nil")
	}
	if r.pub == nil {
		return errors.New("publisher is nil")
	}
	if r.topic == "" {
		return errors.New("embed topic is empty")
	}

	backoff := r.pollInterval
	for {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		n, err := r.RunOnce(ctx)
		if err != nil {
			time.Sleep(backoff)
			backoff = backoff * 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		backoff = r.pollInterval

		if n == 0 {
			time.Sleep(r.pollInterval)
		}
	}
}

func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()
	events, err := r.repo.ClaimForPublish(ctx, now, r.batchSize)
	if err != nil {
		zlog.Warn("embed outbox relay claim failed", zap.Error(err))
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	for i := range events {
		ev := events[i]

		key := []byte(ev.DedupKey)
		if len(key) == 0 {
			key = []byte(strconv.FormatInt(ev.Id, 10))
		}

		_, pubErr := r.pub.Publish(ctx, mq.Message{
			Topic: r.topic,
			Key:   key,
			Value: []byte(ev.PayloadJson),
			Headers: map[string]string{
				"user_id":   ev.UserId,
				"dedup_key": ev.DedupKey,
				"event_id":  strconv.FormatInt(ev.Id, 10),
			},
		})
		if pubErr != nil {
			next := computeNextRetry(now, ev.RetryCount)
			_ = r.repo.MarkPublishFailed(ctx, ev.Id, next, pubErr.Error())
			continue
		}

		if err := r.repo.MarkPublished(ctx, ev.Id); err != nil {
			zlog.Warn("embed outbox relay mark published failed", zap.Int64("id", ev.Id), zap.Error(err))
			continue
		}
		published++
	}

	return published, nil
}

func computeNextRetry(now time.Time, retryCount int) time.Time {
	if retryCount < 0 {
		retryCount = 0
	}
	d := 500 * time.Millisecond
	for i := 0; i < retryCount && d < 5*time.Minute; i++ {
		d = d * 2
	}
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return now.Add(d)
}
