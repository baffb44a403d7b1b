package response

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/repository"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrUnavailable marks a failed dependency health check.
var ErrUnavailable = errors.New("service unavailable")

// InvalidRequest wraps a request binding error so it maps to 400.
func InvalidRequest(err error) error {
	return fmt.Errorf("%w: %w", game.ErrInvalidInput, err)
}

// StatusCode maps domain errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrGameOver),
		errors.Is(err, game.ErrCellOccupied),
		errors.Is(err, game.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes err with the status code it maps to.
func ErrorResponse(c *gin.Context, err error) {
	code := StatusCode(err)
	c.JSON(code, NewResponse(false, code, gin.H{"message": err.Error()}))
}
