package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eleven-am/kickflip/internal/shared"
)

const (
	keyPattern     = "submission:%s"
	channelPattern = "submission:%s:events"
)

var ErrExists = errors.New("submission already exists")

type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &Store{
		redis: redisClient,
		ttl:   ttl,
	}
}

func (s *Store) Create(ctx context.Context, sub *Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	ok, err := s.redis.SetNX(ctx, fmt.Sprintf(keyPattern, sub.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Submission, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf(keyPattern, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal submission: %w", err)
	}
	return &sub, nil
}

func (s *Store) Save(ctx context.Context, sub *Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := s.redis.Set(ctx, fmt.Sprintf(keyPattern, sub.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *Store) Publish(ctx context.Context, sub *Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := s.redis.Publish(ctx, fmt.Sprintf(channelPattern, sub.ID), data).Err(); err != nil {
		return fmt.Errorf("publish submission: %w", err)
	}
	return nil
}

// Subscribe streams every published update for id until ctx is done. The
// subscription is confirmed before it returns, so no later update is missed.
func (s *Store) Subscribe(ctx context.Context, id string) (<-chan *Submission, error) {
	pubsub := s.redis.Subscribe(ctx, fmt.Sprintf(channelPattern, id))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe submission: %w", err)
	}

	out := make(chan *Submission, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}

			var sub Submission
			if err := json.Unmarshal([]byte(msg.Payload), &sub); err != nil {
				continue
			}

			select {
			case out <- &sub:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
