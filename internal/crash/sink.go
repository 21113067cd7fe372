package crash

import (
	"context"
	"encoding/json"
	"fmt"
	"movefuzz/pkg/database"
	"movefuzz/pkg/mq"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Sink receives every unique crash.
type Sink interface {
	Name() string
	Send(ctx context.Context, report *Report) error
}

type dbSink struct {
	db *gorm.DB
}

func (s *dbSink) Name() string { return "postgres" }

func (s *dbSink) Send(ctx context.Context, report *Report) error {
	path := report.Path
	if report.Stored != "" {
		path = report.Stored
	}
	record := database.NewCrash(
		report.Target,
		report.Sanitizer,
		report.Triple,
		report.Digest,
		path,
		report.Arguments,
	)
	if err := database.AddCrashes(ctx, s.db, []*database.Crash{record}); err != nil {
		return fmt.Errorf("failed to add crash: %w", err)
	}
	return nil
}

type redisSink struct {
	client *redis.Client
	prefix string
}

func (s *redisSink) Name() string { return "redis" }

// Key is the set holding the digests of target's crashes.
func (s *redisSink) Key(target string) string {
	return s.prefix + ":" + target
}

func (s *redisSink) Send(ctx context.Context, report *Report) error {
	return s.client.SAdd(ctx, s.Key(report.Target), report.Digest).Err()
}

type queueSink struct {
	mq    mq.RabbitMQ
	queue string
}

func (s *queueSink) Name() string { return "rabbitmq" }

func (s *queueSink) Send(ctx context.Context, report *Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal crash report: %w", err)
	}
	return s.mq.Publish(ctx, s.queue, body)
}
