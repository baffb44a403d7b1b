package proto

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"time"
)

// Server message types
const (
	TypeState = "state"
	TypeError = "error"
)

// Client message types
const (
	TypeMove  = "move"
	TypeReset = "reset"
)

// ClientMessage represents a message from a websocket client.
type ClientMessage struct {
	Type  string `json:"type" validate:"required,oneof=move reset"`
	Index *int   `json:"index,omitempty" validate:"required_if=Type move"`
}

// GameStateMessage is a full snapshot of a game. It carries everything a
// client needs to render the board, and everything a commentary service
// needs to describe it.
type GameStateMessage struct {
	Type       string            `json:"type"`
	GameID     string            `json:"game_id"`
	Board      []game.PlayerMark `json:"board"`
	Next       game.PlayerMark   `json:"next,omitempty"`
	Outcome    game.Outcome      `json:"outcome"`
	Mode       game.GameMode     `json:"mode"`
	AgeMode    string            `json:"age_mode,omitempty"`
	Difficulty float64           `json:"difficulty"`
	BotMark    game.PlayerMark   `json:"bot_mark,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewGameStateMessage snapshots g. Next is left empty once the game is over.
func NewGameStateMessage(g *game.Game) *GameStateMessage {
	msg := &GameStateMessage{
		Type:       TypeState,
		GameID:     g.ID,
		Board:      g.Board.Cells(),
		Outcome:    g.Outcome,
		Mode:       g.Mode,
		AgeMode:    g.AgeMode,
		Difficulty: g.Difficulty,
		BotMark:    g.BotMark,
		UpdatedAt:  g.UpdatedAt,
	}
	if !g.IsOver() {
		msg.Next = g.CurrentTurn
	}
	return msg
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewErrorMessage(reason string) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Reason: reason}
}
