package difficulty

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/bot"
	"errors"
	"fmt"
)

// AgeMode is the player's self-selected skill bracket.
type AgeMode string

const (
	Child AgeMode = "Child"
	Teen  AgeMode = "Teen"
	Adult AgeMode = "Adult"
)

// DefaultDifficulty is used when no difficulty can be derived.
const DefaultDifficulty = 5.0

var ErrUnknownAgeMode = errors.New("unknown age mode")

type band struct{ min, max int }

var bands = map[AgeMode]band{
	Child: {min: 1, max: 3},
	Teen:  {min: 4, max: 7},
	Adult: {min: 8, max: 10},
}

// ParseAgeMode validates an age mode name.
func ParseAgeMode(s string) (AgeMode, error) {
	mode := AgeMode(s)
	if _, ok := bands[mode]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgeMode, s)
	}
	return mode, nil
}

// Mapper turns an age mode into a bot difficulty.
type Mapper interface {
	Difficulty(ctx context.Context, age AgeMode) (float64, error)
}

// BandMapper picks a whole difficulty uniformly inside the age mode's band.
type BandMapper struct {
	rng bot.RandomSource
}

// NewBandMapper creates a BandMapper. A nil rng always picks the middle of the band.
func NewBandMapper(rng bot.RandomSource) *BandMapper {
	return &BandMapper{rng: rng}
}

// Difficulty implements Mapper.
func (m *BandMapper) Difficulty(ctx context.Context, age AgeMode) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b, ok := bands[age]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAgeMode, string(age))
	}
	if m.rng == nil {
		return float64(b.min+b.max) / 2, nil
	}
	return float64(b.min + m.rng.IntN(b.max-b.min+1)), nil
}

// Range reports the inclusive band for an age mode.
func Range(age AgeMode) (lo, hi float64, ok bool) {
	b, ok := bands[age]
	return float64(b.min), float64(b.max), ok
}
