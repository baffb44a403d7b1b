package server

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/controller"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/api/response"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/events"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/hub"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/session"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/validator"
	"ctchen222/Adaptive-Tic-Tac-Toe/pkg/proto"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	engine   *gin.Engine
	hub      *hub.Hub
	sessions session.Service
	health   []HealthCheck
	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, sessions session.Service, calculator session.MoveCalculator, health ...HealthCheck) *Server {
	s := &Server{
		engine:   gin.New(),
		hub:      h,
		sessions: sessions,
		health:   health,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if err := validator.RegisterGinValidations(); err != nil {
		slog.Error("Failed to register custom validations", "error", err)
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.registerRoutes(
		controller.NewEngineController(calculator),
		controller.NewGameController(sessions),
		controller.NewStatsController(sessions),
	)
	return s
}

// Engine returns the HTTP handler.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes(engine *controller.EngineController, games *controller.GameController, stats *controller.StatsController) {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.POST("/engine/evaluate", engine.Evaluate)
		api.POST("/engine/move", engine.SuggestMove)

		api.POST("/games", games.Create)
		api.GET("/games/:id", games.Get)
		api.POST("/games/:id/moves", games.Move)
		api.POST("/games/:id/reset", games.Reset)

		api.GET("/stats/:key", stats.Get)
	}

	s.engine.GET("/ws/games/:id", s.handleWebSocket)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, check := range s.health {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "Health check failed", "error", err)
			response.ErrorResponse(c, fmt.Errorf("%w: %w", response.ErrUnavailable, err))
			return
		}
	}
	response.SuccessResponse(c, gin.H{"status": "ok"})
}

// Snapshot renders a game's current state as a game_state event for the hub
// to greet new clients with.
func Snapshot(sessions session.Service) hub.Snapshot {
	return func(ctx context.Context, gameID string) ([]byte, error) {
		g, err := sessions.GetGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		ev, err := events.NewEvent(events.GameState, proto.NewGameStateMessage(g))
		if err != nil {
			return nil, err
		}
		return json.Marshal(ev)
	}
}

// handleWebSocket streams a game's events to the client and routes the
// client's moves to the session service. The hub sends the current state
// once the game's subscription is live.
func (s *Server) handleWebSocket(c *gin.Context) {
	gameID := c.Param("id")
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("game.id", gameID),
	))
	defer span.End()

	if _, err := s.sessions.GetGame(ctx, gameID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Game not available")
		response.ErrorResponse(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to upgrade connection", "game.id", gameID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	client := hub.NewClient(gameID, conn)
	span.SetAttributes(attribute.String("client.id", client.ID))
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(s.hub, s.handleClientMessage)
}

// handleClientMessage applies one client message. Results reach every
// client through the game's events; only rejections are answered directly.
func (s *Server) handleClientMessage(c *hub.Client, data []byte) {
	ctx, span := tracer.Start(context.Background(), "server.handleClientMessage", trace.WithAttributes(
		attribute.String("game.id", c.GameID),
		attribute.String("client.id", c.ID),
	))
	defer span.End()

	var msg proto.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Malformed client message")
		c.SendJSON(proto.NewErrorMessage("malformed message"))
		return
	}
	if err := validator.GetValidator().Struct(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid client message")
		c.SendJSON(proto.NewErrorMessage(err.Error()))
		return
	}
	span.SetAttributes(attribute.String("message.type", msg.Type))

	var err error
	switch msg.Type {
	case proto.TypeMove:
		_, err = s.sessions.Move(ctx, c.GameID, *msg.Index)
	case proto.TypeReset:
		_, err = s.sessions.Reset(ctx, c.GameID)
	}
	if err != nil {
		slog.InfoContext(ctx, "Client message rejected", "game.id", c.GameID, "message.type", msg.Type, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Client message rejected")
		c.SendJSON(proto.NewErrorMessage(err.Error()))
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.DebugContext(c.Request.Context(), "HTTP request",
			"http.method", c.Request.Method,
			"http.route", c.FullPath(),
			"http.status", c.Writer.Status(),
			"http.duration", time.Since(start),
		)
	}
}
