package session

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/bot"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/difficulty"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/events"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/repository"
	"ctchen222/Adaptive-Tic-Tac-Toe/pkg/proto"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("session")
	meter  = otel.Meter("session")
)

var (
	ErrGameNotFound    = repository.ErrGameNotFound
	ErrNotYourTurn     = game.ErrNotYourTurn
	ErrAgeModeRequired = fmt.Errorf("%w: age mode is required in single mode", game.ErrInvalidInput)

	errReplyPending = errors.New("bot reply pending")
	errNoReplyDue   = errors.New("no bot reply due")
)

// MoveCalculator picks the bot's next cell. bot.Selector implements it.
type MoveCalculator interface {
	CalculateNextMove(board game.Board, mark game.PlayerMark, difficulty float64) int
}

// NewGameParams describes a game to start. Difficulty overrides the value
// derived from AgeMode when set.
type NewGameParams struct {
	Mode       string
	AgeMode    string
	Difficulty *float64
}

// Service drives games turn by turn.
type Service interface {
	NewGame(ctx context.Context, params NewGameParams) (*game.Game, error)
	GetGame(ctx context.Context, id string) (*game.Game, error)
	// Move applies a human move and, in single mode, the bot's reply.
	Move(ctx context.Context, id string, index int) (*game.Game, error)
	Reset(ctx context.Context, id string) (*game.Game, error)
	Stats(ctx context.Context, key string) (*game.Stats, error)
}

// Options tune a Service. The zero value is usable.
type Options struct {
	// BotThinkDelay is waited before the bot replies.
	BotThinkDelay time.Duration
	// NewID generates game IDs; defaults to random UUIDs.
	NewID func() string
}

type service struct {
	games      repository.GameRepository
	stats      repository.StatsRepository
	publisher  events.Publisher
	calculator MoveCalculator
	mapper     difficulty.Mapper
	botDelay   time.Duration
	newID      func() string

	movesCounter    metric.Int64Counter
	finishedCounter metric.Int64Counter
}

// NewService creates a new Service.
func NewService(
	games repository.GameRepository,
	stats repository.StatsRepository,
	publisher events.Publisher,
	calculator MoveCalculator,
	mapper difficulty.Mapper,
	opts Options,
) Service {
	s := &service{
		games:      games,
		stats:      stats,
		publisher:  publisher,
		calculator: calculator,
		mapper:     mapper,
		botDelay:   opts.BotThinkDelay,
		newID:      opts.NewID,
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}

	var err error
	s.movesCounter, err = meter.Int64Counter("ttt.moves",
		metric.WithDescription("Number of moves applied"),
		metric.WithUnit("{move}"))
	if err != nil {
		otel.Handle(err)
		s.movesCounter = noop.Int64Counter{}
	}
	s.finishedCounter, err = meter.Int64Counter("ttt.games.finished",
		metric.WithDescription("Number of games that reached a win or a draw"),
		metric.WithUnit("{game}"))
	if err != nil {
		otel.Handle(err)
		s.finishedCounter = noop.Int64Counter{}
	}
	return s
}

func (s *service) NewGame(ctx context.Context, params NewGameParams) (*game.Game, error) {
	ctx, span := tracer.Start(ctx, "Session.NewGame", trace.WithAttributes(
		attribute.String("game.mode", params.Mode),
		attribute.String("game.age_mode", params.AgeMode),
	))
	defer span.End()

	g, err := s.buildGame(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid game parameters")
		return nil, err
	}

	if err := s.games.Create(ctx, g); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store game")
		return nil, err
	}

	span.SetAttributes(attribute.String("game.id", g.ID), attribute.Float64("game.difficulty", g.Difficulty))
	slog.InfoContext(ctx, "Game created", "game.id", g.ID, "game.mode", g.Mode, "game.difficulty", g.Difficulty)
	return g, nil
}

func (s *service) buildGame(ctx context.Context, params NewGameParams) (*game.Game, error) {
	mode, err := game.ParseGameMode(params.Mode)
	if err != nil {
		return nil, err
	}

	var age difficulty.AgeMode
	if params.AgeMode != "" {
		age, err = difficulty.ParseAgeMode(params.AgeMode)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", game.ErrInvalidInput, err)
		}
	}

	g := game.NewGame(s.newID(), mode)
	g.AgeMode = string(age)

	if mode != game.ModeSingle {
		return g, nil
	}
	if age == "" {
		return nil, ErrAgeModeRequired
	}

	switch {
	case params.Difficulty != nil:
		g.Difficulty = bot.ClampDifficulty(*params.Difficulty)
	default:
		d, err := s.mapper.Difficulty(ctx, age)
		if err != nil {
			slog.WarnContext(ctx, "Falling back to default difficulty", "game.age_mode", age, "error", err)
			d = difficulty.DefaultDifficulty
		}
		g.Difficulty = bot.ClampDifficulty(d)
	}
	return g, nil
}

func (s *service) GetGame(ctx context.Context, id string) (*game.Game, error) {
	ctx, span := tracer.Start(ctx, "Session.GetGame", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	g, err := s.games.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load game")
		return nil, err
	}
	return g, nil
}

func (s *service) Move(ctx context.Context, id string, index int) (*game.Game, error) {
	ctx, span := tracer.Start(ctx, "Session.Move", trace.WithAttributes(
		attribute.String("game.id", id),
		attribute.Int("move.index", index),
	))
	defer span.End()

	g, err := s.games.Update(ctx, id, func(g *game.Game) error {
		if g.IsBotTurn() {
			return errReplyPending
		}
		return g.Move(index)
	})
	if errors.Is(err, errReplyPending) {
		// An earlier request stored its move but never got the bot's reply.
		slog.InfoContext(ctx, "Playing pending bot reply", "game.id", id)
		span.AddEvent("pending bot reply")
		if _, err := s.botReply(ctx, id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pending bot move failed")
			return nil, fmt.Errorf("bot move: %w", err)
		}
		g, err = s.games.Update(ctx, id, func(g *game.Game) error {
			if g.IsBotTurn() {
				return ErrNotYourTurn
			}
			return g.Move(index)
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "move rejected")
		return nil, err
	}
	s.afterMove(ctx, g, g.Board[index])

	if !g.IsBotTurn() {
		return g, nil
	}

	// A failure from here on leaves the reply pending; the next Move plays it.
	if err := s.think(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bot move cancelled")
		return g, err
	}

	next, err := s.botReply(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bot move failed")
		slog.ErrorContext(ctx, "Bot move failed", "game.id", id, "error", err)
		return g, fmt.Errorf("bot move: %w", err)
	}
	return next, nil
}

// botReply plays the bot's move. When no reply is due anymore, for instance
// after a concurrent reset, it returns the stored game untouched.
func (s *service) botReply(ctx context.Context, id string) (*game.Game, error) {
	botMove := bot.NoMove
	g, err := s.games.Update(ctx, id, func(g *game.Game) error {
		if !g.IsBotTurn() {
			return errNoReplyDue
		}
		botMove = s.calculator.CalculateNextMove(g.Board, g.BotMark, g.Difficulty)
		if botMove == bot.NoMove {
			return fmt.Errorf("bot found no move on board %v", g.Board)
		}
		return g.Move(botMove)
	})
	if errors.Is(err, errNoReplyDue) {
		return s.games.FindByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("bot.index", botMove))
	s.afterMove(ctx, g, g.BotMark)
	return g, nil
}

// think waits the configured delay before the bot replies.
func (s *service) think(ctx context.Context) error {
	if s.botDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.botDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// afterMove runs once per applied move. Only the move that ends a game sees
// a terminal outcome, since every later move fails with game.ErrGameOver.
func (s *service) afterMove(ctx context.Context, g *game.Game, mover game.PlayerMark) {
	s.movesCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("game.mode", string(g.Mode)),
		attribute.String("player.mark", string(mover)),
	))
	slog.DebugContext(ctx, "Move applied", "game.id", g.ID, "player.mark", mover, "game.outcome", g.Outcome.String())

	if !g.IsOver() {
		s.publish(ctx, events.GameUpdated, g)
		return
	}

	key := game.StatsKey(g.Mode, g.AgeMode)
	if _, err := s.stats.Record(ctx, key, g.Outcome); err != nil {
		slog.ErrorContext(ctx, "Failed to record outcome", "game.id", g.ID, "stats.key", key, "error", err)
	}
	s.finishedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("game.mode", string(g.Mode)),
		attribute.String("game.outcome", g.Outcome.Status.String()),
	))
	slog.InfoContext(ctx, "Game finished", "game.id", g.ID, "game.outcome", g.Outcome.String())
	s.publish(ctx, events.GameFinished, g)
}

func (s *service) publish(ctx context.Context, eventType string, g *game.Game) {
	event, err := events.NewEvent(eventType, proto.NewGameStateMessage(g))
	if err == nil {
		err = s.publisher.Publish(ctx, g.ID, event)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish game event", "game.id", g.ID, "event", eventType, "error", err)
	}
}

func (s *service) Reset(ctx context.Context, id string) (*game.Game, error) {
	ctx, span := tracer.Start(ctx, "Session.Reset", trace.WithAttributes(attribute.String("game.id", id)))
	defer span.End()

	g, err := s.games.Update(ctx, id, func(g *game.Game) error {
		g.Reset()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reset game")
		return nil, err
	}

	slog.InfoContext(ctx, "Game reset", "game.id", id)
	s.publish(ctx, events.GameReset, g)
	return g, nil
}

func (s *service) Stats(ctx context.Context, key string) (*game.Stats, error) {
	ctx, span := tracer.Start(ctx, "Session.Stats", trace.WithAttributes(attribute.String("stats.key", key)))
	defer span.End()

	stats, err := s.stats.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load stats")
		return nil, err
	}
	return stats, nil
}
