package repository

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -source=game_repository.go -destination=../mocks/mock_game_repository.go -package=mocks

var tracer = otel.Tracer("repository")

var ErrGameNotFound = errors.New("game not found")

// Redis hash fields of a game.
const (
	FieldBoard      = "board"
	FieldNextTurn   = "next_turn"
	FieldOutcome    = "outcome"
	FieldMode       = "mode"
	FieldAgeMode    = "age_mode"
	FieldDifficulty = "difficulty"
	FieldBotMark    = "bot_mark"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
)

const maxUpdateRetries = 5

// GameRepository defines the interface for game data operations.
type GameRepository interface {
	Create(ctx context.Context, g *game.Game) error
	FindByID(ctx context.Context, id string) (*game.Game, error)
	// Update loads the game, applies mutate and stores the result atomically.
	// An error from mutate aborts the update and is returned as is.
	Update(ctx context.Context, id string, mutate func(g *game.Game) error) (*game.Game, error)
}

type redisGameRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGameRepository creates a new Redis-based GameRepository. Games expire
// ttl after their last write; a zero ttl keeps them forever.
func NewGameRepository(rdb *redis.Client, ttl time.Duration) GameRepository {
	return &redisGameRepository{rdb: rdb, ttl: ttl}
}

func gameKey(id string) string {
	return fmt.Sprintf("game:%s", id)
}

// Create stores a new game in Redis.
func (r *redisGameRepository) Create(ctx context.Context, g *game.Game) error {
	ctx, span := tracer.Start(ctx, "GameRepository.Create", trace.WithAttributes(
		attribute.String("game.id", g.ID),
	))
	defer span.End()

	fields, err := encodeGame(g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to encode game")
		return err
	}

	key := gameKey(g.ID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create game in redis")
		return fmt.Errorf("failed to create game in redis: %w", err)
	}
	return nil
}

// FindByID retrieves the current game state from Redis.
func (r *redisGameRepository) FindByID(ctx context.Context, id string) (*game.Game, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.FindByID", trace.WithAttributes(
		attribute.String("game.id", id),
	))
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, gameKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get game state from redis")
		return nil, fmt.Errorf("failed to get game state from redis: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrGameNotFound
	}
	return decodeGame(id, data)
}

// Update applies mutate inside a WATCH transaction, retrying when another
// writer changed the game in between.
func (r *redisGameRepository) Update(ctx context.Context, id string, mutate func(g *game.Game) error) (*game.Game, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.Update", trace.WithAttributes(
		attribute.String("game.id", id),
	))
	defer span.End()

	key := gameKey(id)
	var updated *game.Game

	txf := func(tx *redis.Tx) error {
		data, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return ErrGameNotFound
		}

		g, err := decodeGame(id, data)
		if err != nil {
			return err
		}
		if err := mutate(g); err != nil {
			return err
		}

		fields, err := encodeGame(g)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = g
		return nil
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			span.AddEvent("optimistic lock lost, retrying", trace.WithAttributes(attribute.Int("attempt", attempt+1)))
			continue
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update game")
		return nil, err
	}

	span.SetStatus(codes.Error, "Too many concurrent updates")
	return nil, fmt.Errorf("failed to update game %s: too many concurrent updates", id)
}

func encodeGame(g *game.Game) (map[string]interface{}, error) {
	boardJSON, err := json.Marshal(g.Board)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}
	outcome, err := game.MarshalOutcome(g.Outcome)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		FieldBoard:      string(boardJSON),
		FieldNextTurn:   string(g.CurrentTurn),
		FieldOutcome:    outcome,
		FieldMode:       string(g.Mode),
		FieldAgeMode:    g.AgeMode,
		FieldDifficulty: strconv.FormatFloat(g.Difficulty, 'f', -1, 64),
		FieldBotMark:    string(g.BotMark),
		FieldCreatedAt:  g.CreatedAt.Format(time.RFC3339Nano),
		FieldUpdatedAt:  g.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func decodeGame(id string, data map[string]string) (*game.Game, error) {
	var cells []game.PlayerMark
	if err := json.Unmarshal([]byte(data[FieldBoard]), &cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}
	board, err := game.ParseBoard(cells)
	if err != nil {
		return nil, fmt.Errorf("stored board for game %s is corrupt: %w", id, err)
	}

	outcome, err := game.UnmarshalOutcome(data[FieldOutcome])
	if err != nil {
		return nil, err
	}

	difficulty, err := strconv.ParseFloat(data[FieldDifficulty], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse difficulty: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, data[FieldCreatedAt])
	updatedAt, _ := time.Parse(time.RFC3339Nano, data[FieldUpdatedAt])

	return &game.Game{
		ID:          id,
		Board:       board,
		CurrentTurn: game.PlayerMark(data[FieldNextTurn]),
		Outcome:     outcome,
		Mode:        game.GameMode(data[FieldMode]),
		AgeMode:     data[FieldAgeMode],
		Difficulty:  difficulty,
		BotMark:     game.PlayerMark(data[FieldBotMark]),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}
