package controller

import (
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/models"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/response"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/session"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StatsController serves the win/draw counters.
type StatsController struct {
	sessions session.Service
}

func NewStatsController(sessions session.Service) *StatsController {
	return &StatsController{sessions: sessions}
}

// Get returns the counters stored under :key, zero when nothing was recorded.
func (sc *StatsController) Get(c *gin.Context) {
	key := c.Param("key")
	ctx, span := tracer.Start(c.Request.Context(), "StatsController.Get", trace.WithAttributes(
		attribute.String("stats.key", key),
	))
	defer span.End()

	stats, err := sc.sessions.Stats(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load stats")
		response.ErrorResponse(c, err)
		return
	}

	response.SuccessResponse(c, models.NewStatsResponse(key, stats))
}
