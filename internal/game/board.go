package game

import (
	"errors"
	"fmt"
)

// PlayerMark represents the mark of a player (X, O) or an empty cell.
type PlayerMark string

const (
	// Player marks
	None    PlayerMark = ""
	PlayerX PlayerMark = "X"
	PlayerO PlayerMark = "O"

	// BoardSize is the number of cells on a board.
	BoardSize = 9

	// Board boundaries
	BorderMin = 0
	BorderMax = BoardSize - 1
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidBoard = fmt.Errorf("%w: board must have exactly %d cells", ErrInvalidInput, BoardSize)
	ErrInvalidMark  = fmt.Errorf("%w: unknown player mark", ErrInvalidInput)
	ErrInvalidCell  = fmt.Errorf("%w: cell index out of range", ErrInvalidInput)
	ErrCellOccupied = errors.New("cell already occupied")
)

// Valid reports whether m is one of the two player marks.
func (m PlayerMark) Valid() bool {
	return m == PlayerX || m == PlayerO
}

// Opponent returns the other player's mark, or None for an empty mark.
func (m PlayerMark) Opponent() PlayerMark {
	switch m {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return None
	}
}

// Board is a 3x3 grid stored in row-major order.
type Board [BoardSize]PlayerMark

// ParseBoard converts a dynamic slice of cells into a Board.
func ParseBoard(cells []PlayerMark) (Board, error) {
	var b Board
	if len(cells) != BoardSize {
		return b, fmt.Errorf("%w (got %d)", ErrInvalidBoard, len(cells))
	}
	for i, cell := range cells {
		if cell != None && !cell.Valid() {
			return b, fmt.Errorf("%w %q at cell %d", ErrInvalidMark, string(cell), i)
		}
		b[i] = cell
	}
	return b, nil
}

// ParseMark converts a string into a player mark. The empty string is rejected.
func ParseMark(s string) (PlayerMark, error) {
	m := PlayerMark(s)
	if !m.Valid() {
		return None, fmt.Errorf("%w %q", ErrInvalidMark, s)
	}
	return m, nil
}

// Cells returns the board as a slice of marks.
func (b Board) Cells() []PlayerMark {
	cells := make([]PlayerMark, BoardSize)
	copy(cells, b[:])
	return cells
}

// EmptyCells returns the indices of empty cells in ascending order.
func (b Board) EmptyCells() []int {
	empty := make([]int, 0, BoardSize)
	for i, cell := range b {
		if cell == None {
			empty = append(empty, i)
		}
	}
	return empty
}

// IsFull reports whether every cell holds a mark.
func (b Board) IsFull() bool {
	for _, cell := range b {
		if cell == None {
			return false
		}
	}
	return true
}

// Place returns a copy of the board with mark placed at index.
func (b Board) Place(index int, mark PlayerMark) (Board, error) {
	if index < BorderMin || index > BorderMax {
		return b, ErrInvalidCell
	}
	if !mark.Valid() {
		return b, ErrInvalidMark
	}
	if b[index] != None {
		return b, ErrCellOccupied
	}
	b[index] = mark
	return b, nil
}
