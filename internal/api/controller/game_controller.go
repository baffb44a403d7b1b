package controller

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/models"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/response"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/session"
	"ctchen222/Adaptive-Tic-Tac-Toe/pkg/proto"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("controller")

// GameController handles game-related HTTP requests.
type GameController struct {
	sessions session.Service
}

// NewGameController creates a new GameController.
func NewGameController(sessions session.Service) *GameController {
	return &GameController{sessions: sessions}
}

// Create starts a new game.
func (gc *GameController) Create(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GameController.Create")
	defer span.End()

	var req models.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.InvalidRequest(err))
		return
	}

	g, err := gc.sessions.NewGame(ctx, session.NewGameParams{
		Mode:       req.Mode,
		AgeMode:    req.AgeMode,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create game")
		response.ErrorResponse(c, err)
		return
	}

	response.SuccessResponse(c, proto.NewGameStateMessage(g))
}

// Get returns the current state of a game.
func (gc *GameController) Get(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GameController.Get", trace.WithAttributes(
		attribute.String("game.id", c.Param("id")),
	))
	defer span.End()

	g, err := gc.sessions.GetGame(ctx, c.Param("id"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load game")
		response.ErrorResponse(c, err)
		return
	}

	response.SuccessResponse(c, proto.NewGameStateMessage(g))
}

// Move plays a cell for the player whose turn it is.
func (gc *GameController) Move(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GameController.Move", trace.WithAttributes(
		attribute.String("game.id", c.Param("id")),
	))
	defer span.End()

	var req models.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, response.InvalidRequest(err))
		return
	}

	g, err := gc.sessions.Move(ctx, c.Param("id"), *req.Index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "move failed")
		response.ErrorResponse(c, err)
		return
	}

	response.SuccessResponse(c, proto.NewGameStateMessage(g))
}

// Reset clears the board of a game.
func (gc *GameController) Reset(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GameController.Reset", trace.WithAttributes(
		attribute.String("game.id", c.Param("id")),
	))
	defer span.End()

	g, err := gc.sessions.Reset(ctx, c.Param("id"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset failed")
		response.ErrorResponse(c, err)
		return
	}

	response.SuccessResponse(c, proto.NewGameStateMessage(g))
}
