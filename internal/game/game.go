package game

import (
	"errors"
	"fmt"
	"time"
)

// GameMode selects who plays the O mark.
type GameMode string

const (
	// ModeSingle pits the human (X) against the bot (O).
	ModeSingle GameMode = "single"
	// ModeLocal is two humans sharing one board.
	ModeLocal GameMode = "local"
)

var (
	ErrGameOver    = errors.New("game already finished")
	ErrNotYourTurn = errors.New("not your turn")
)

// Game is the authoritative state of one match.
type Game struct {
	ID          string
	Board       Board
	CurrentTurn PlayerMark
	Outcome     Outcome
	Mode        GameMode
	AgeMode     string
	Difficulty  float64
	BotMark     PlayerMark
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewGame returns an empty game with X to move.
func NewGame(id string, mode GameMode) *Game {
	now := time.Now().UTC()
	g := &Game{
		ID:          id,
		Board:       Board{},
		CurrentTurn: PlayerX,
		Outcome:     NoOutcome(),
		Mode:        mode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mode == ModeSingle {
		g.BotMark = PlayerO
	}
	return g
}

// IsOver reports whether the game has a win or a draw.
func (g *Game) IsOver() bool {
	return g.Outcome.IsOver()
}

// IsBotTurn reports whether the bot is expected to move next.
func (g *Game) IsBotTurn() bool {
	return g.Mode == ModeSingle && !g.IsOver() && g.CurrentTurn == g.BotMark
}

// Move places the current player's mark at index and re-evaluates the board.
// The turn only passes to the other player while the game is in progress.
func (g *Game) Move(index int) error {
	if g.IsOver() {
		return ErrGameOver
	}

	board, err := g.Board.Place(index, g.CurrentTurn)
	if err != nil {
		return fmt.Errorf("move %d by %s: %w", index, g.CurrentTurn, err)
	}

	g.Board = board
	g.Outcome = Evaluate(board)
	if !g.Outcome.IsOver() {
		g.CurrentTurn = g.CurrentTurn.Opponent()
	}
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// Reset reinitializes the board. Settings such as mode and difficulty survive.
func (g *Game) Reset() {
	g.Board = Board{}
	g.CurrentTurn = PlayerX
	g.Outcome = NoOutcome()
	g.UpdatedAt = time.Now().UTC()
}
