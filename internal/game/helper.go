package game

import "fmt"

// ParseGameMode validates a game mode string.
func ParseGameMode(s string) (GameMode, error) {
	switch GameMode(s) {
	case ModeSingle, ModeLocal:
		return GameMode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown game mode %q", ErrInvalidInput, s)
	}
}

// StatsKey names the counter bucket a finished game is recorded under.
// Single-player games are bucketed per age mode.
func StatsKey(mode GameMode, ageMode string) string {
	if mode == ModeSingle {
		return "ttt_stats_" + ageMode
	}
	return "ttt_stats_local"
}
