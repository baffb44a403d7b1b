package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
)

//go:generate mockgen -source=events.go -destination=../mocks/mock_events.go -package=mocks

// Event types
const (
	GameState    = "game_state"
	GameUpdated  = "game_updated"
	GameFinished = "game_finished"
	GameReset    = "game_reset"
)

// Event is the envelope published on a game's channel.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an event of the given type.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{Type: eventType, Payload: data}, nil
}

// GameChannel is the Pub/Sub channel carrying one game's events.
func GameChannel(gameID string) string {
	return fmt.Sprintf("channel:game:%s", gameID)
}

// Publisher broadcasts game events.
type Publisher interface {
	Publish(ctx context.Context, gameID string, event *Event) error
}

// Subscription is a live stream of raw event messages for one game.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Subscriber opens subscriptions to game channels.
type Subscriber interface {
	Subscribe(ctx context.Context, gameID string) (Subscription, error)
}

type redisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a Publisher using Redis PUBLISH.
func NewRedisPublisher(rdb *redis.Client) Publisher {
	return &redisPublisher{rdb: rdb}
}

func (p *redisPublisher) Publish(ctx context.Context, gameID string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, GameChannel(gameID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s for game %s: %w", event.Type, gameID, err)
	}
	return nil
}

type redisSubscriber struct {
	rdb *redis.Client
}

// NewRedisSubscriber creates a Subscriber using Redis SUBSCRIBE.
func NewRedisSubscriber(rdb *redis.Client) Subscriber {
	return &redisSubscriber{rdb: rdb}
}

type redisSubscription struct {
	pubsub   *redis.PubSub
	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

// Subscribe waits for Redis to confirm the subscription so no event
// published afterwards is missed.
func (s *redisSubscriber) Subscribe(ctx context.Context, gameID string) (Subscription, error) {
	channel := GameChannel(gameID)
	pubsub := s.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub:   pubsub,
		messages: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(sub.messages)
		for msg := range pubsub.Channel() {
			select {
			case sub.messages <- []byte(msg.Payload):
			case <-sub.done:
				return
			}
		}
		slog.Debug("Game subscription closed", "channel", channel)
	}()
	return sub, nil
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
