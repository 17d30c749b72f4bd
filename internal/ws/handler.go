package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pokedraft/server/internal/engine"
	"github.com/pokedraft/server/internal/hub"
	"github.com/pokedraft/server/internal/room"
	"github.com/pokedraft/server/pkg/types"
)

const writeTimeout = 3 * time.Second

// Bounds is the seat-count policy enforced at this boundary; the engine
// never sees an out-of-range numPlayers.
type Bounds struct {
	PlayersMin int
	PlayersMax int
}

// Handler upgrades the connection and runs its reader loop. Each connection
// gets a session ID (its identity in seat bindings) and an outbox channel
// (its send capability); the two never travel together past this layer.
func Handler(h *hub.Hub, bounds Bounds, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		sessionID := uuid.NewString()
		c := &client{
			sessionID: sessionID,
			conn:      conn,
			out:       make(chan types.ServerMessage, 16),
			hub:       h,
			bounds:    bounds,
			log:       log.With(zap.String("session", sessionID)),
		}
		c.run(r.Context())
	}
}

type client struct {
	sessionID string
	conn      *websocket.Conn
	out       chan types.ServerMessage
	hub       *hub.Hub
	bounds    Bounds
	log       *zap.Logger

	// current is the room this session is seated in, if any.
	current *room.Room
}

func (c *client) run(ctx context.Context) {
	c.log.Info("connection open")

	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go c.writer(writeCtx)

	defer func() {
		if c.current != nil {
			c.current.Inbox() <- room.Leave{SessionID: c.sessionID}
		}
		c.log.Info("connection closed")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.log.Debug("undecodable frame", zap.Error(err))
			c.sendError("bad json")
			continue
		}
		c.dispatch(cm)
	}
}

// writer drains the outbox into text frames. It stays alive for the whole
// connection: rooms come and go but the outbox is owned here.
func (c *client) writer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.out:
			payload, err := json.Marshal(msg)
			if err != nil {
				c.log.Error("marshal frame", zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			_ = c.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
		}
	}
}

func (c *client) dispatch(cm types.ClientMessage) {
	switch cm.Type {
	case types.TypeCreate:
		c.handleCreate(cm)
	case types.TypeJoin:
		seat := engine.AnySeat
		if cm.SlotIndex != nil {
			seat = *cm.SlotIndex
		}
		c.handleJoin(cm.RoomCode, seat)
	case types.TypeSelectSlot:
		if cm.SlotIndex == nil {
			c.sendError("missing slotIndex")
			return
		}
		c.handleJoin(cm.RoomCode, *cm.SlotIndex)
	case types.TypeStartGame:
		rm := c.resolve(cm.RoomCode)
		if rm == nil {
			return
		}
		rm.Inbox() <- room.Start{SessionID: c.sessionID, Outbox: c.out}
	case types.TypeChoose:
		if cm.Pokemon == nil || cm.Pokemon.Name == "" {
			c.sendError("missing pokemon")
			return
		}
		rm := c.resolve(cm.RoomCode)
		if rm == nil {
			return
		}
		rm.Inbox() <- room.Pick{SessionID: c.sessionID, ItemName: cm.Pokemon.Name, Outbox: c.out}
	default:
		c.log.Debug("unknown message type", zap.String("type", cm.Type))
		c.sendError("unknown message type")
	}
}

func (c *client) handleCreate(cm types.ClientMessage) {
	if cm.NumPlayers < c.bounds.PlayersMin || cm.NumPlayers > c.bounds.PlayersMax {
		c.sendError(fmt.Sprintf("number of players must be between %d and %d",
			c.bounds.PlayersMin, c.bounds.PlayersMax))
		return
	}

	reply := make(chan hub.CreateReply, 1)
	c.hub.Inbox() <- hub.CreateRoom{SeatCount: cm.NumPlayers, Reply: reply}
	created := <-reply

	c.out <- types.RoomCreated{Type: types.TypeRoomCreated, RoomCode: created.Code}

	// The creator is seated immediately, always at seat 0 of a fresh room.
	c.join(created.Room, engine.AnySeat)
}

func (c *client) handleJoin(code string, seat int) {
	rm := c.resolve(code)
	if rm == nil {
		return
	}
	c.join(rm, seat)
}

// join seats the session in rm, moving the room binding only once the room
// accepts. A rejected join leaves any existing seat untouched, so probing
// another room's code can't evict a player from their own.
func (c *client) join(rm *room.Room, seat int) {
	reply := make(chan error, 1)
	rm.Inbox() <- room.Join{
		SessionID: c.sessionID,
		Seat:      seat,
		Outbox:    c.out,
		Reply:     reply,
	}
	if err := <-reply; err != nil {
		return
	}
	if c.current != nil && c.current != rm {
		c.current.Inbox() <- room.Leave{SessionID: c.sessionID}
	}
	c.current = rm
}

// resolve looks a room up by code, reporting the failure to the client.
func (c *client) resolve(code string) *room.Room {
	reply := make(chan *room.Room, 1)
	c.hub.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
	rm := <-reply
	if rm == nil {
		c.sendError("room not found")
	}
	return rm
}

func (c *client) sendError(message string) {
	select {
	case c.out <- types.Error{Type: types.TypeError, Message: message}:
	default:
	}
}
