package game

import "fmt"

// Stats counts finished games by result.
type Stats struct {
	X    int64 `json:"x" db:"x_wins"`
	O    int64 `json:"o" db:"o_wins"`
	Draw int64 `json:"draw" db:"draws"`
}

// Add increments the counter matching a terminal outcome.
func (s *Stats) Add(o Outcome) error {
	switch {
	case o.Status == Draw:
		s.Draw++
	case o.Status == Win && o.Winner == PlayerX:
		s.X++
	case o.Status == Win && o.Winner == PlayerO:
		s.O++
	default:
		return fmt.Errorf("%w: cannot record outcome %s", ErrInvalidInput, o)
	}
	return nil
}

// Total returns the number of recorded games.
func (s Stats) Total() int64 {
	return s.X + s.O + s.Draw
}
