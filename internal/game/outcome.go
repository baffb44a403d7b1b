package game

import (
	"encoding/json"
	"fmt"
)

// OutcomeStatus tags the variant held by an Outcome.
type OutcomeStatus int

const (
	InProgress OutcomeStatus = iota
	Win
	Draw
)

func (s OutcomeStatus) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return fmt.Sprintf("OutcomeStatus(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *OutcomeStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "in_progress", "":
		*s = InProgress
	case "win":
		*s = Win
	case "draw":
		*s = Draw
	default:
		return fmt.Errorf("%w: unknown outcome status %q", ErrInvalidInput, string(text))
	}
	return nil
}

// Line is one of the winning index triples.
type Line [3]int

// lines must stay in this order: Evaluate reports the first complete line.
var lines = [8]Line{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// columns
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diagonals
	{0, 4, 8}, {2, 4, 6},
}

// Lines returns the winning lines in evaluation order.
func Lines() [8]Line {
	return lines
}

// Outcome is the result of evaluating a board. Winner and Line are only
// meaningful when Status is Win.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Winner PlayerMark    `json:"winner,omitempty"`
	Line   *Line         `json:"line,omitempty"`
}

func NoOutcome() Outcome { return Outcome{Status: InProgress} }

func DrawOutcome() Outcome { return Outcome{Status: Draw} }

func WinOutcome(mark PlayerMark, line Line) Outcome {
	return Outcome{Status: Win, Winner: mark, Line: &line}
}

// IsOver reports whether the outcome ends the game.
func (o Outcome) IsOver() bool {
	return o.Status != InProgress
}

// Equal compares two outcomes by value.
func (o Outcome) Equal(other Outcome) bool {
	if o.Status != other.Status || o.Winner != other.Winner {
		return false
	}
	if o.Line == nil || other.Line == nil {
		return o.Line == other.Line
	}
	return *o.Line == *other.Line
}

func (o Outcome) String() string {
	if o.Status == Win && o.Line != nil {
		return fmt.Sprintf("win(%s, %v)", o.Winner, *o.Line)
	}
	return o.Status.String()
}

// Evaluate determines whether the board holds a completed line, a draw or
// neither. Lines are checked in fixed order and the first complete one wins.
func Evaluate(b Board) Outcome {
	for _, line := range lines {
		first := b[line[0]]
		if first != None && first == b[line[1]] && first == b[line[2]] {
			return WinOutcome(first, line)
		}
	}

	if b.IsFull() {
		return DrawOutcome()
	}

	return NoOutcome()
}

// MarshalOutcome and UnmarshalOutcome are used by storage layers.
func MarshalOutcome(o Outcome) (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("failed to marshal outcome: %w", err)
	}
	return string(data), nil
}

func UnmarshalOutcome(s string) (Outcome, error) {
	if s == "" {
		return NoOutcome(), nil
	}
	var o Outcome
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return Outcome{}, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	return o, nil
}
