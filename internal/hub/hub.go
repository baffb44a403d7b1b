package hub

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/events"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("hub")

// Snapshot renders the current state of a game for a client that just
// joined its audience.
type Snapshot func(ctx context.Context, gameID string) ([]byte, error)

type gameMessage struct {
	gameID string
	data   []byte
}

// gameClients are the clients watching one game, sharing one subscription.
// sub stays nil until the subscription is confirmed.
type gameClients struct {
	clients map[*Client]struct{}
	sub     events.Subscription
	cancel  context.CancelFunc
}

type subscribeResult struct {
	gameID string
	gc     *gameClients
	sub    events.Subscription
	err    error
}

// Hub fans game events out to the WebSocket clients watching each game.
type Hub struct {
	subscriber events.Subscriber
	snapshot   Snapshot
	games      map[string]*gameClients
	register   chan *Client
	unregister chan *Client
	broadcast  chan *gameMessage
	subscribed chan *subscribeResult
	done       chan struct{}
}

// NewHub creates a new hub. Every client is sent snapshot once its game's
// subscription is live; a nil snapshot sends nothing.
func NewHub(subscriber events.Subscriber, snapshot Snapshot) *Hub {
	return &Hub{
		subscriber: subscriber,
		snapshot:   snapshot,
		games:      make(map[string]*gameClients),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *gameMessage),
		subscribed: make(chan *subscribeResult),
		done:       make(chan struct{}),
	}
}

// Run owns all hub state until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Hub started")
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Hub stopping")
			return
		case c := <-h.register:
			h.addClient(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		case res := <-h.subscribed:
			h.subscriptionReady(ctx, res)
		}
	}
}

// Register adds c to its game's audience.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

// Unregister removes c. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	gc, ok := h.games[c.GameID]
	if !ok {
		gc = &gameClients{clients: make(map[*Client]struct{})}
		h.games[c.GameID] = gc
		go h.subscribe(ctx, c.GameID, gc)
	}

	gc.clients[c] = struct{}{}
	slog.InfoContext(ctx, "Client joined game", "game.id", c.GameID, "client.id", c.ID, "game.clients", len(gc.clients))
	if gc.sub != nil {
		go h.greet(ctx, c)
	}
}

// subscribe opens a game's subscription off the hub loop and hands the
// result back to it.
func (h *Hub) subscribe(ctx context.Context, gameID string, gc *gameClients) {
	ctx, span := tracer.Start(ctx, "hub.subscribe", trace.WithAttributes(
		attribute.String("game.id", gameID),
	))
	defer span.End()

	sub, err := h.subscriber.Subscribe(ctx, gameID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to subscribe to game")
	}
	select {
	case h.subscribed <- &subscribeResult{gameID: gameID, gc: gc, sub: sub, err: err}:
	case <-h.done:
		if sub != nil {
			_ = sub.Close()
		}
	}
}

func (h *Hub) subscriptionReady(ctx context.Context, res *subscribeResult) {
	if h.games[res.gameID] != res.gc {
		// Everyone left while the subscription was pending.
		if res.sub != nil {
			_ = res.sub.Close()
		}
		return
	}
	if res.err != nil {
		slog.ErrorContext(ctx, "Failed to subscribe to game", "game.id", res.gameID, "error", res.err)
		for c := range res.gc.clients {
			c.close()
		}
		delete(h.games, res.gameID)
		return
	}

	fwdCtx, cancel := context.WithCancel(ctx)
	res.gc.sub = res.sub
	res.gc.cancel = cancel
	go h.forward(fwdCtx, res.gameID, res.sub)
	for c := range res.gc.clients {
		go h.greet(ctx, c)
	}
}

// greet sends c the game's current state. It only runs once the game's
// subscription is live, so no later change can fall between the two.
func (h *Hub) greet(ctx context.Context, c *Client) {
	if h.snapshot == nil {
		return
	}
	data, err := h.snapshot(ctx, c.GameID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load game snapshot", "game.id", c.GameID, "client.id", c.ID, "error", err)
		return
	}
	c.Send(data)
}

func (h *Hub) removeClient(c *Client) {
	gc, ok := h.games[c.GameID]
	if !ok {
		return
	}
	if _, ok := gc.clients[c]; !ok {
		return
	}
	delete(gc.clients, c)
	c.close()
	slog.Info("Client left game", "game.id", c.GameID, "client.id", c.ID)
	h.releaseIfEmpty(c.GameID, gc)
}

// releaseIfEmpty drops the subscription of a game nobody watches anymore.
func (h *Hub) releaseIfEmpty(gameID string, gc *gameClients) {
	if len(gc.clients) > 0 {
		return
	}
	gc.release(gameID)
	delete(h.games, gameID)
}

func (gc *gameClients) release(gameID string) {
	if gc.cancel != nil {
		gc.cancel()
	}
	if gc.sub == nil {
		return
	}
	if err := gc.sub.Close(); err != nil {
		slog.Warn("Failed to close game subscription", "game.id", gameID, "error", err)
	}
}

func (h *Hub) fanOut(msg *gameMessage) {
	gc, ok := h.games[msg.gameID]
	if !ok {
		return
	}
	for c := range gc.clients {
		if !c.Send(msg.data) {
			slog.Warn("Dropping slow client", "game.id", msg.gameID, "client.id", c.ID)
			delete(gc.clients, c)
			c.close()
		}
	}
	h.releaseIfEmpty(msg.gameID, gc)
}

// forward relays one game's subscription into the hub loop.
func (h *Hub) forward(ctx context.Context, gameID string, sub events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.Messages():
			if !ok {
				return
			}
			select {
			case h.broadcast <- &gameMessage{gameID: gameID, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for gameID, gc := range h.games {
		for c := range gc.clients {
			c.close()
		}
		gc.release(gameID)
		delete(h.games, gameID)
	}
}
