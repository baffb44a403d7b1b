package models

import "ctchen222/Adaptive-Tic-Tac-Toe/internal/game"

// EvaluateRequest asks for the outcome of a board.
type EvaluateRequest struct {
	Board []game.PlayerMark `json:"board" binding:"required,dive,cell"`
}

// EvaluateResponse carries the outcome of a board.
type EvaluateResponse struct {
	Outcome game.Outcome `json:"outcome"`
}

// SuggestMoveRequest asks the bot for a move on an arbitrary board.
type SuggestMoveRequest struct {
	Board      []game.PlayerMark `json:"board" binding:"required,dive,cell"`
	Mark       game.PlayerMark   `json:"mark" binding:"required,mark"`
	Difficulty *float64          `json:"difficulty" binding:"required"`
}

// SuggestMoveResponse holds the chosen cell, -1 when the board is full.
type SuggestMoveResponse struct {
	Index int `json:"index"`
}

// CreateGameRequest starts a new game.
type CreateGameRequest struct {
	Mode       string   `json:"mode" binding:"required,oneof=single local"`
	AgeMode    string   `json:"age_mode" binding:"omitempty,oneof=Child Teen Adult"`
	Difficulty *float64 `json:"difficulty"`
}

// MoveRequest places the current player's mark.
type MoveRequest struct {
	Index *int `json:"index" binding:"required"`
}

// StatsResponse reports the counters stored under a key.
type StatsResponse struct {
	Key   string `json:"key"`
	X     int64  `json:"x"`
	O     int64  `json:"o"`
	Draw  int64  `json:"draw"`
	Total int64  `json:"total"`
}

func NewStatsResponse(key string, s *game.Stats) StatsResponse {
	return StatsResponse{Key: key, X: s.X, O: s.O, Draw: s.Draw, Total: s.Total()}
}
