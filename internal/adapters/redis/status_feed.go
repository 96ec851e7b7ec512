package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/ports"
)

const statusChannelPrefix = "verification:status:"

func statusChannel(id uuid.UUID) string {
	return statusChannelPrefix + id.String()
}

// StatusFeed carries status changes over Redis pub/sub so a long poll held
// by one instance wakes up when another instance finalizes the record.
type StatusFeed struct {
	rdb *goredis.Client
	log zerolog.Logger
}

var _ ports.StatusFeed = (*StatusFeed)(nil)

func NewStatusFeed(rdb *goredis.Client, baseLogger *zerolog.Logger) *StatusFeed {
	return &StatusFeed{rdb: rdb, log: baseLogger.With().Str("component", "redis_status_feed").Logger()}
}

func (f *StatusFeed) Publish(ctx context.Context, change ports.StatusChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode status change: %w", err)
	}
	if err := f.rdb.Publish(ctx, statusChannel(change.VerificationID), payload).Err(); err != nil {
		f.log.Error().Err(err).Str("verification_id", change.VerificationID.String()).Msg("Failed to publish status change")
		return err
	}
	return nil
}

func (f *StatusFeed) Subscribe(ctx context.Context, verificationID uuid.UUID) (<-chan ports.StatusChange, func(), error) {
	pubsub := f.rdb.Subscribe(ctx, statusChannel(verificationID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan ports.StatusChange, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer cancel()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change ports.StatusChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					f.log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed status change")
					continue
				}
				select {
				case out <- change:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
