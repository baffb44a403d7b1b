package controller

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/models"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/response"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/game"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/session"

	"github.com/gin-gonic/gin"
)

// EngineController exposes the stateless evaluator and move selector.
type EngineController struct {
	calculator session.MoveCalculator
}

func NewEngineController(calculator session.MoveCalculator) *EngineController {
	return &EngineController{calculator: calculator}
}

// Evaluate reports the outcome of a board.
func (ec *EngineController) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.InvalidRequest(err))
		return
	}

	board, err := game.ParseBoard(req.Board)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}

	response.SuccessResponse(c, models.EvaluateResponse{Outcome: game.Evaluate(board)})
}

// SuggestMove picks a cell for mark on the given board.
func (ec *EngineController) SuggestMove(c *gin.Context) {
	var req models.SuggestMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.InvalidRequest(err))
		return
	}

	board, err := game.ParseBoard(req.Board)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}

	index := ec.calculator.CalculateNextMove(board, req.Mark, *req.Difficulty)
	response.SuccessResponse(c, models.SuggestMoveResponse{Index: index})
}
