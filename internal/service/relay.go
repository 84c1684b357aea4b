package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/broker"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

// OutboxRelay 轮询 outbox，把已提交的事件推送给 broker。
// 推送失败的事件放回 pending 下一轮重试，因此投递语义为至少一次。
type OutboxRelay struct {
	outbox       repository.OutboxRepository
	pub          broker.Publisher
	workers      int
	batchSize    int
	pollInterval time.Duration
	staleAfter   time.Duration
}

func NewOutboxRelay(outbox repository.OutboxRepository, pub broker.Publisher, workers, batchSize int, pollInterval time.Duration) *OutboxRelay {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &OutboxRelay{
		outbox:       outbox,
		pub:          pub,
		workers:      workers,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		staleAfter:   time.Minute,
	}
}

// Run 启动 worker 并阻塞到 ctx 结束
func (r *OutboxRelay) Run(ctx context.Context) error {
	if n, err := r.outbox.RecoverStale(ctx, r.staleAfter); err != nil {
		logger.Warn("outbox recover failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("outbox events requeued", zap.Int64("count", n))
	}

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (r *OutboxRelay) loop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("outbox relay iteration failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 认领一批事件并推送，返回成功推送的条数
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := r.outbox.Claim(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	done := make([]string, 0, len(batch))
	failed := make([]string, 0)
	for _, ev := range batch {
		err := r.pub.Publish(ctx, broker.Event{
			ID:          ev.ID,
			Type:        ev.EventType,
			Aggregate:   ev.Aggregate,
			AggregateID: ev.AggregateID,
			Payload:     json.RawMessage(ev.Payload),
			OccurredAt:  ev.CreatedAt,
		})
		if err != nil {
			logger.Warn("publish event failed",
				zap.String("event_id", ev.ID),
				zap.String("type", ev.EventType),
				zap.Int("attempts", ev.Attempts+1),
				zap.Error(err),
			)
			failed = append(failed, ev.ID)
			continue
		}
		done = append(done, ev.ID)
	}

	// 使用独立 ctx 落状态，避免关停时事件卡在 processing
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.outbox.MarkDone(finishCtx, done); err != nil {
		return 0, err
	}
	if err := r.outbox.Requeue(finishCtx, failed); err != nil {
		return len(done), err
	}
	return len(done), nil
}
