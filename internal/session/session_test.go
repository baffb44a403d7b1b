package session

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/bot"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/difficulty"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/events"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/mocks"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	x = game.PlayerX
	o = game.PlayerO
	e = game.None
)

// zeroRand always passes the difficulty gate and picks the first candidate.
type zeroRand struct{}

func (zeroRand) Float64() float64 { return 0 }
func (zeroRand) IntN(int) int     { return 0 }

type countingCalculator struct {
	mu    sync.Mutex
	calls int
	next  MoveCalculator
}

func (c *countingCalculator) CalculateNextMove(b game.Board, mark game.PlayerMark, d float64) int {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.CalculateNextMove(b, mark, d)
}

type failingMapper struct{}

func (failingMapper) Difficulty(context.Context, difficulty.AgeMode) (float64, error) {
	return 0, errors.New("mapper unavailable")
}

type fixture struct {
	games      *mocks.MockGameRepository
	stats      *mocks.MockStatsRepository
	publisher  *mocks.MockPublisher
	calculator *countingCalculator
	svc        Service

	mu        sync.Mutex
	published []string
	updates   int
	// beforeUpdate runs against the stored game ahead of each Update, with
	// the 1-based number of the call.
	beforeUpdate func(n int, stored *game.Game)
}

func newFixture(t *testing.T, mapper difficulty.Mapper, opts Options) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		games:      mocks.NewMockGameRepository(ctrl),
		stats:      mocks.NewMockStatsRepository(ctrl),
		publisher:  mocks.NewMockPublisher(ctrl),
		calculator: &countingCalculator{next: bot.NewSelector(zeroRand{})},
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return "game-1" }
	}
	f.svc = NewService(f.games, f.stats, f.publisher, f.calculator, mapper, opts)
	return f
}

// store makes the repository mock behave like a single-game store.
func (f *fixture) store(g *game.Game) {
	f.games.EXPECT().FindByID(gomock.Any(), g.ID).DoAndReturn(
		func(context.Context, string) (*game.Game, error) {
			cp := *g
			return &cp, nil
		}).AnyTimes()
	f.games.EXPECT().Update(gomock.Any(), g.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, mutate func(*game.Game) error) (*game.Game, error) {
			f.mu.Lock()
			f.updates++
			n := f.updates
			f.mu.Unlock()
			if f.beforeUpdate != nil {
				f.beforeUpdate(n, g)
			}
			cp := *g
			if err := mutate(&cp); err != nil {
				return nil, err
			}
			*g = cp
			out := cp
			return &out, nil
		}).AnyTimes()
}

func (f *fixture) capturePublishes() {
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, ev *events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.published = append(f.published, ev.Type)
			return nil
		}).AnyTimes()
}

func (f *fixture) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func singleGame(board game.Board, turn game.PlayerMark) *game.Game {
	g := game.NewGame("game-1", game.ModeSingle)
	g.AgeMode = "Adult"
	g.Difficulty = 10
	g.Board = board
	g.CurrentTurn = turn
	g.Outcome = game.Evaluate(board)
	return g
}

func ptr(f float64) *float64 { return &f }

func TestNewGame(t *testing.T) {
	testCases := []struct {
		name           string
		mapper         difficulty.Mapper
		params         NewGameParams
		wantDifficulty float64
		wantBot        game.PlayerMark
	}{
		{
			name:           "Single mode derives difficulty from age mode",
			mapper:         difficulty.NewBandMapper(nil),
			params:         NewGameParams{Mode: "single", AgeMode: "Adult"},
			wantDifficulty: 9,
			wantBot:        o,
		},
		{
			name:           "Explicit difficulty is clamped",
			mapper:         difficulty.NewBandMapper(nil),
			params:         NewGameParams{Mode: "single", AgeMode: "Child", Difficulty: ptr(42)},
			wantDifficulty: 10,
			wantBot:        o,
		},
		{
			name:           "Mapper failure falls back to the default",
			mapper:         failingMapper{},
			params:         NewGameParams{Mode: "single", AgeMode: "Teen"},
			wantDifficulty: difficulty.DefaultDifficulty,
			wantBot:        o,
		},
		{
			name:           "Local mode has no bot",
			mapper:         failingMapper{},
			params:         NewGameParams{Mode: "local"},
			wantDifficulty: 0,
			wantBot:        e,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.mapper, Options{})
			f.games.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

			g, err := f.svc.NewGame(context.Background(), tc.params)
			require.NoError(t, err)

			assert.Equal(t, "game-1", g.ID)
			assert.Equal(t, tc.wantDifficulty, g.Difficulty)
			assert.Equal(t, tc.wantBot, g.BotMark)
			assert.Equal(t, x, g.CurrentTurn)
			assert.Equal(t, game.Board{}, g.Board)
			assert.Equal(t, tc.params.AgeMode, g.AgeMode)
		})
	}
}

func TestNewGame_InvalidParams(t *testing.T) {
	testCases := []struct {
		name    string
		params  NewGameParams
		wantErr error
	}{
		{"Single mode without age mode", NewGameParams{Mode: "single"}, ErrAgeModeRequired},
		{"Unknown mode", NewGameParams{Mode: "online"}, game.ErrInvalidInput},
		{"Unknown age mode", NewGameParams{Mode: "single", AgeMode: "Senior"}, difficulty.ErrUnknownAgeMode},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, difficulty.NewBandMapper(nil), Options{})

			_, err := f.svc.NewGame(context.Background(), tc.params)
			require.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, game.ErrInvalidInput)
		})
	}
}

func TestNewGame_StoreFailure(t *testing.T) {
	f := newFixture(t, difficulty.NewBandMapper(nil), Options{})
	f.games.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	_, err := f.svc.NewGame(context.Background(), NewGameParams{Mode: "local"})
	assert.Error(t, err)
}

func TestMove_BotReplies(t *testing.T) {
	f := newFixture(t, nil, Options{})
	stored := singleGame(game.Board{}, x)
	f.store(stored)
	f.capturePublishes()

	g, err := f.svc.Move(context.Background(), "game-1", 0)
	require.NoError(t, err)

	assert.Equal(t, game.Board{x, e, e, e, o, e, e, e, e}, g.Board)
	assert.Equal(t, x, g.CurrentTurn)
	assert.Equal(t, game.NoOutcome(), g.Outcome)
	assert.Equal(t, 1, f.calculator.calls)
	assert.Equal(t, []string{events.GameUpdated, events.GameUpdated}, f.events())
	assert.Equal(t, g.Board, stored.Board)
}

func TestMove_HumanWins(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.store(singleGame(game.Board{
		x, x, e,
		o, o, e,
		e, e, e,
	}, x))
	f.capturePublishes()
	f.stats.EXPECT().
		Record(gomock.Any(), "ttt_stats_Adult", game.WinOutcome(x, game.Line{0, 1, 2})).
		Return(&game.Stats{X: 1}, nil).
		Times(1)

	g, err := f.svc.Move(context.Background(), "game-1", 2)
	require.NoError(t, err)

	assert.True(t, g.IsOver())
	assert.Equal(t, x, g.Outcome.Winner)
	assert.Zero(t, f.calculator.calls, "bot must not move after the game ended")
	assert.Equal(t, []string{events.GameFinished}, f.events())
}

func TestMove_BotWins(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.store(singleGame(game.Board{
		x, e, e,
		o, o, e,
		x, e, e,
	}, x))
	f.capturePublishes()
	f.stats.EXPECT().
		Record(gomock.Any(), "ttt_stats_Adult", game.WinOutcome(o, game.Line{3, 4, 5})).
		Return(&game.Stats{O: 1}, nil).
		Times(1)

	g, err := f.svc.Move(context.Background(), "game-1", 8)
	require.NoError(t, err)

	assert.Equal(t, o, g.Board[5])
	assert.Equal(t, game.WinOutcome(o, game.Line{3, 4, 5}), g.Outcome)
	assert.Equal(t, []string{events.GameUpdated, events.GameFinished}, f.events())
}

func TestMove_LocalGameDoesNotCallBot(t *testing.T) {
	f := newFixture(t, nil, Options{})
	local := game.NewGame("game-1", game.ModeLocal)
	f.store(local)
	f.capturePublishes()

	g, err := f.svc.Move(context.Background(), "game-1", 4)
	require.NoError(t, err)
	assert.Equal(t, o, g.CurrentTurn)

	g, err = f.svc.Move(context.Background(), "game-1", 0)
	require.NoError(t, err)
	assert.Equal(t, o, g.Board[0])
	assert.Zero(t, f.calculator.calls)
}

func TestMove_LocalDrawRecordedUnderLocalKey(t *testing.T) {
	f := newFixture(t, nil, Options{})
	local := game.NewGame("game-1", game.ModeLocal)
	local.Board = game.Board{
		x, o, x,
		x, o, o,
		o, x, e,
	}
	f.store(local)
	f.capturePublishes()
	f.stats.EXPECT().Record(gomock.Any(), "ttt_stats_local", game.DrawOutcome()).Return(&game.Stats{Draw: 1}, nil)

	g, err := f.svc.Move(context.Background(), "game-1", 8)
	require.NoError(t, err)
	assert.Equal(t, game.DrawOutcome(), g.Outcome)
}

func TestMove_Rejected(t *testing.T) {
	finished := game.Board{
		x, x, x,
		o, o, e,
		e, e, e,
	}

	testCases := []struct {
		name    string
		game    *game.Game
		index   int
		wantErr error
	}{
		{"Game over", singleGame(finished, x), 5, game.ErrGameOver},
		{"Occupied cell", singleGame(game.Board{x, e, e, e, o, e, e, e, e}, x), 4, game.ErrCellOccupied},
		{"Out of range", singleGame(game.Board{}, x), 9, game.ErrInvalidCell},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil, Options{})
			before := tc.game.Board
			f.store(tc.game)

			_, err := f.svc.Move(context.Background(), "game-1", tc.index)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before, tc.game.Board, "rejected moves must not change the board")
			assert.Zero(t, f.calculator.calls)
		})
	}
}

func TestMove_GameNotFound(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.games.EXPECT().Update(gomock.Any(), "missing", gomock.Any()).Return(nil, ErrGameNotFound)

	_, err := f.svc.Move(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestMove_ThinkDelayCancelled(t *testing.T) {
	f := newFixture(t, nil, Options{BotThinkDelay: time.Hour})
	stored := singleGame(game.Board{}, x)
	f.store(stored)
	f.capturePublishes()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	g, err := f.svc.Move(ctx, "game-1", 0)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, g)
	assert.Equal(t, x, g.Board[0], "the human move is kept")
	assert.Equal(t, o, stored.CurrentTurn)
	assert.Zero(t, f.calculator.calls)
}

func TestMove_ContinuesAfterCancelledReply(t *testing.T) {
	f := newFixture(t, nil, Options{BotThinkDelay: 50 * time.Millisecond})
	stored := singleGame(game.Board{}, x)
	f.store(stored)
	f.capturePublishes()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := f.svc.Move(ctx, "game-1", 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, o, stored.CurrentTurn, "the reply is left pending")

	g, err := f.svc.Move(context.Background(), "game-1", 1)
	require.NoError(t, err)

	assert.Equal(t, game.Board{
		x, x, o,
		e, o, e,
		e, e, e,
	}, g.Board, "pending reply at the center, human at 1, block at 2")
	assert.Equal(t, x, g.CurrentTurn)
	assert.Equal(t, 2, f.calculator.calls)
	assert.Equal(t, g.Board, stored.Board)
}

func TestMove_PendingReplyTakesRequestedCell(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.store(singleGame(game.Board{x, e, e, e, e, e, e, e, e}, o))
	f.capturePublishes()

	_, err := f.svc.Move(context.Background(), "game-1", 4)
	require.ErrorIs(t, err, game.ErrCellOccupied, "the pending reply took the center first")

	g, err := f.svc.GetGame(context.Background(), "game-1")
	require.NoError(t, err)
	assert.Equal(t, o, g.Board[4])
	assert.Equal(t, x, g.CurrentTurn, "the human can move again")
}

func TestMove_ResetDuringThinkDelay(t *testing.T) {
	f := newFixture(t, nil, Options{})
	stored := singleGame(game.Board{}, x)
	f.store(stored)
	f.capturePublishes()
	f.beforeUpdate = func(n int, g *game.Game) {
		if n == 2 {
			g.Reset()
		}
	}

	g, err := f.svc.Move(context.Background(), "game-1", 0)
	require.NoError(t, err)

	assert.Equal(t, game.Board{}, g.Board, "the reset state is returned")
	assert.Equal(t, x, g.CurrentTurn)
	assert.Zero(t, f.calculator.calls)
	assert.Equal(t, []string{events.GameUpdated}, f.events())
}

func TestMove_FailedReplyIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	games := mocks.NewMockGameRepository(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), "game-1", gomock.Any()).Return(nil).AnyTimes()
	svc := NewService(games, mocks.NewMockStatsRepository(ctrl), publisher,
		bot.NewSelector(zeroRand{}), nil, Options{})

	stored := singleGame(game.Board{}, x)
	apply := func(_ context.Context, _ string, mutate func(*game.Game) error) (*game.Game, error) {
		cp := *stored
		if err := mutate(&cp); err != nil {
			return nil, err
		}
		*stored = cp
		out := cp
		return &out, nil
	}
	redisDown := errors.New("redis down")
	gomock.InOrder(
		games.EXPECT().Update(gomock.Any(), "game-1", gomock.Any()).DoAndReturn(apply),
		games.EXPECT().Update(gomock.Any(), "game-1", gomock.Any()).Return(nil, redisDown),
		games.EXPECT().Update(gomock.Any(), "game-1", gomock.Any()).DoAndReturn(apply).Times(4),
	)

	g, err := svc.Move(context.Background(), "game-1", 0)
	require.ErrorIs(t, err, redisDown)
	require.NotNil(t, g)
	assert.Equal(t, o, stored.CurrentTurn)

	g, err = svc.Move(context.Background(), "game-1", 8)
	require.NoError(t, err)
	assert.Equal(t, o, g.Board[4], "pending reply")
	assert.Equal(t, x, g.Board[8])
	assert.Equal(t, x, g.CurrentTurn)
}

func TestMove_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.store(game.NewGame("game-1", game.ModeLocal))
	f.publisher.EXPECT().Publish(gomock.Any(), "game-1", gomock.Any()).Return(errors.New("redis down"))

	g, err := f.svc.Move(context.Background(), "game-1", 4)
	require.NoError(t, err)
	assert.Equal(t, x, g.Board[4])
}

func TestReset(t *testing.T) {
	f := newFixture(t, nil, Options{})
	stored := singleGame(game.Board{
		x, x, x,
		o, o, e,
		e, e, e,
	}, x)
	f.store(stored)
	f.capturePublishes()

	g, err := f.svc.Reset(context.Background(), "game-1")
	require.NoError(t, err)

	assert.Equal(t, game.Board{}, g.Board)
	assert.Equal(t, x, g.CurrentTurn)
	assert.Equal(t, game.NoOutcome(), g.Outcome)
	assert.Equal(t, float64(10), g.Difficulty, "settings survive a reset")
	assert.Equal(t, []string{events.GameReset}, f.events())
}

func TestGetGameAndStats(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.store(singleGame(game.Board{}, x))
	f.stats.EXPECT().Get(gomock.Any(), "ttt_stats_Teen").Return(&game.Stats{X: 2, O: 1}, nil)

	g, err := f.svc.GetGame(context.Background(), "game-1")
	require.NoError(t, err)
	assert.Equal(t, "game-1", g.ID)

	stats, err := f.svc.Stats(context.Background(), "ttt_stats_Teen")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total())
}
