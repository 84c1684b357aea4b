// Package broker pushes domain events to the boards and front-desk screens
// that subscribe to them. Delivery is at-least-once; consumers dedupe on Event.ID.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/cafe-pos/config"
)

// Event 对外发布的事件信封
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Aggregate   string          `json:"aggregate"`
	AggregateID int64           `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// New 按 broker.driver 创建发布者；redis 驱动复用调用方传入的客户端
func New(cfg config.BrokerConfig, rdb *redis.Client) (Publisher, error) {
	switch cfg.Driver {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("broker: redis driver needs a redis client")
		}
		return NewRedisPublisher(rdb, cfg.Channel), nil
	case "amqp":
		return DialAMQP(cfg.AMQPURL, cfg.Exchange)
	case "none", "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("broker: unknown driver %q", cfg.Driver)
	}
}

// Noop 丢弃所有事件
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
