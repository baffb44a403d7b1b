package bot

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
)

// corners lists every corner with the corner across from it, in the order the
// corner response checks them.
var corners = [4][2]int{{0, 8}, {2, 6}, {6, 2}, {8, 0}}

const center = 4

// SelectMove chooses the bot's next cell. With probability 1-difficulty/10 it
// plays a random empty cell; otherwise it wins if it can, blocks if it must,
// and falls back to center and corner heuristics.
func (s *Selector) SelectMove(board game.Board, difficulty float64, botMark game.PlayerMark) int {
	empty := board.EmptyCells()
	if len(empty) == 0 || !botMark.Valid() {
		return NoMove
	}
	humanMark := botMark.Opponent()

	// 1. Gate: play randomly some of the time
	if s.rng.Float64() > ClampDifficulty(difficulty)/MaxDifficulty {
		return s.randomCell(empty)
	}

	// 2. Win: Check if the bot can win in the next move
	if idx, canWin := findWinningMove(board, botMark); canWin {
		return idx
	}

	// 3. Block: Check if the opponent is about to win and block them
	if idx, canBlock := findWinningMove(board, humanMark); canBlock {
		return idx
	}

	// 4. Center: Take the center if it's available
	if board[center] == game.None {
		return center
	}

	// 5. Opposite corner: answer a human corner with the one across from it
	for _, pair := range corners {
		if board[pair[0]] == humanMark && board[pair[1]] == game.None {
			return pair[1]
		}
	}

	// 6. Corners: Take an available corner randomly
	availableCorners := make([]int, 0, len(corners))
	for _, pair := range corners {
		if board[pair[0]] == game.None {
			availableCorners = append(availableCorners, pair[0])
		}
	}
	if len(availableCorners) > 0 {
		return s.randomCell(availableCorners)
	}

	// 7. Anything left
	return s.randomCell(empty)
}

func (s *Selector) randomCell(cells []int) int {
	return cells[s.rng.IntN(len(cells))]
}

// findWinningMove returns the first empty cell, in ascending order, where
// mark would complete a line.
func findWinningMove(board game.Board, mark game.PlayerMark) (int, bool) {
	for _, idx := range board.EmptyCells() {
		next, err := board.Place(idx, mark)
		if err != nil {
			continue
		}
		if outcome := game.Evaluate(next); outcome.Status == game.Win && outcome.Winner == mark {
			return idx, true
		}
	}
	return NoMove, false
}
