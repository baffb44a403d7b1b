package bot

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"math"
	"math/rand/v2"
)

const (
	// NoMove is returned when the board has no empty cell.
	NoMove = -1

	MinDifficulty = 0.0
	MaxDifficulty = 10.0
)

// RandomSource is the randomness the selector draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type RandomSource interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// DefaultSource returns the process-wide source. It is safe for concurrent
// use, unlike a *rand.Rand.
func DefaultSource() RandomSource { return globalSource{} }

// Selector picks the bot's next cell.
type Selector struct {
	rng RandomSource
}

// NewSelector creates a selector backed by rng, or by the process-wide
// source when rng is nil.
func NewSelector(rng RandomSource) *Selector {
	if rng == nil {
		rng = DefaultSource()
	}
	return &Selector{rng: rng}
}

// NewSeededSelector creates a selector whose choices are reproducible.
func NewSeededSelector(seed uint64) *Selector {
	return NewSelector(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// CalculateNextMove implements session.MoveCalculator.
func (s *Selector) CalculateNextMove(board game.Board, mark game.PlayerMark, difficulty float64) int {
	return s.SelectMove(board, difficulty, mark)
}

// ClampDifficulty bounds difficulty to [MinDifficulty, MaxDifficulty]. NaN
// counts as the minimum.
func ClampDifficulty(difficulty float64) float64 {
	if math.IsNaN(difficulty) {
		return MinDifficulty
	}
	return math.Max(MinDifficulty, math.Min(MaxDifficulty, difficulty))
}
