package repository

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -source=stats_repository.go -destination=../mocks/mock_stats_repository.go -package=mocks

// StatsRepository stores win/draw counters per stats key.
type StatsRepository interface {
	// Get returns the counters for key; unknown keys have all counters at zero.
	Get(ctx context.Context, key string) (*game.Stats, error)
	// Record increments the counter matching a terminal outcome and returns
	// the updated counters.
	Record(ctx context.Context, key string, outcome game.Outcome) (*game.Stats, error)
}

type sqlStatsRepository struct {
	db *sqlx.DB
}

// NewSQLStatsRepository creates a StatsRepository on top of the game_stats
// table. Works with both sqlite and postgres.
func NewSQLStatsRepository(db *sqlx.DB) StatsRepository {
	return &sqlStatsRepository{db: db}
}

const (
	selectStatsQuery = `SELECT x_wins, o_wins, draws FROM game_stats WHERE stats_key = ?`
	upsertStatsQuery = `
	INSERT INTO game_stats (stats_key, x_wins, o_wins, draws) VALUES (?, ?, ?, ?)
	ON CONFLICT (stats_key) DO UPDATE SET
		x_wins = game_stats.x_wins + excluded.x_wins,
		o_wins = game_stats.o_wins + excluded.o_wins,
		draws = game_stats.draws + excluded.draws`
)

func (r *sqlStatsRepository) Get(ctx context.Context, key string) (*game.Stats, error) {
	ctx, span := tracer.Start(ctx, "StatsRepository.Get", trace.WithAttributes(
		attribute.String("stats.key", key),
	))
	defer span.End()

	stats, err := getStats(ctx, r.db, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get stats")
		return nil, err
	}
	return stats, nil
}

func (r *sqlStatsRepository) Record(ctx context.Context, key string, outcome game.Outcome) (*game.Stats, error) {
	ctx, span := tracer.Start(ctx, "StatsRepository.Record", trace.WithAttributes(
		attribute.String("stats.key", key),
		attribute.String("game.outcome", outcome.Status.String()),
	))
	defer span.End()

	var delta game.Stats
	if err := delta.Add(outcome); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to begin transaction")
		return nil, fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(upsertStatsQuery), key, delta.X, delta.O, delta.Draw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record outcome")
		return nil, fmt.Errorf("failed to record outcome for %s: %w", key, err)
	}

	stats, err := getStats(ctx, tx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to read stats")
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to commit stats")
		return nil, fmt.Errorf("failed to commit stats for %s: %w", key, err)
	}
	return stats, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func getStats(ctx context.Context, q queryer, key string) (*game.Stats, error) {
	var stats game.Stats
	err := q.GetContext(ctx, &stats, q.Rebind(selectStatsQuery), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &game.Stats{}, nil
		}
		return nil, fmt.Errorf("failed to get stats for %s: %w", key, err)
	}
	return &stats, nil
}

// Redis hash fields of a stats bucket.
const (
	fieldStatsX    = "x"
	fieldStatsO    = "o"
	fieldStatsDraw = "draw"
)

type redisStatsRepository struct {
	rdb *redis.Client
}

// NewRedisStatsRepository creates a StatsRepository backed by one Redis hash
// per stats key.
func NewRedisStatsRepository(rdb *redis.Client) StatsRepository {
	return &redisStatsRepository{rdb: rdb}
}

func statsKey(key string) string {
	return fmt.Sprintf("stats:%s", key)
}

func (r *redisStatsRepository) Get(ctx context.Context, key string) (*game.Stats, error) {
	ctx, span := tracer.Start(ctx, "StatsRepository.Get", trace.WithAttributes(
		attribute.String("stats.key", key),
	))
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, statsKey(key)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get stats from redis")
		return nil, fmt.Errorf("failed to get stats from redis: %w", err)
	}
	return parseStats(data)
}

func (r *redisStatsRepository) Record(ctx context.Context, key string, outcome game.Outcome) (*game.Stats, error) {
	ctx, span := tracer.Start(ctx, "StatsRepository.Record", trace.WithAttributes(
		attribute.String("stats.key", key),
		attribute.String("game.outcome", outcome.Status.String()),
	))
	defer span.End()

	var field string
	switch {
	case outcome.Status == game.Draw:
		field = fieldStatsDraw
	case outcome.Status == game.Win && outcome.Winner == game.PlayerX:
		field = fieldStatsX
	case outcome.Status == game.Win && outcome.Winner == game.PlayerO:
		field = fieldStatsO
	default:
		return nil, fmt.Errorf("%w: cannot record outcome %s", game.ErrInvalidInput, outcome)
	}

	var all *redis.StringStringMapCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, statsKey(key), field, 1)
		all = pipe.HGetAll(ctx, statsKey(key))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record outcome in redis")
		return nil, fmt.Errorf("failed to record outcome for %s: %w", key, err)
	}
	return parseStats(all.Val())
}

func parseStats(data map[string]string) (*game.Stats, error) {
	var stats game.Stats
	for field, dest := range map[string]*int64{
		fieldStatsX:    &stats.X,
		fieldStatsO:    &stats.O,
		fieldStatsDraw: &stats.Draw,
	} {
		raw, ok := data[field]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stats field %s: %w", field, err)
		}
		*dest = n
	}
	return &stats, nil
}
