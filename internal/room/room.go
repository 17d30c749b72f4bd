package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pokedraft/server/internal/catalog"
	"github.com/pokedraft/server/internal/engine"
	"github.com/pokedraft/server/pkg/types"
)

// Sampler draws the draft pool when a room goes active.
// *catalog.Catalog satisfies it; tests substitute fixed pools.
type Sampler interface {
	Sample(size int) ([]catalog.DraftItem, error)
}

// ScheduleFunc defers fn by d. The default is time.AfterFunc; tests inject
// an immediate scheduler so no real timers run.
type ScheduleFunc func(d time.Duration, fn func())

type Msg interface{ isRoomMsg() }

// Join binds a session to a seat. Seat is engine.AnySeat for first-free or a
// specific index from selectSlot. Outbox is where this session receives
// frames from now on.
type Join struct {
	SessionID string
	Seat      int
	Outbox    chan types.ServerMessage

	// Reply, when non-nil, receives the join outcome so the transport can
	// keep its room binding accurate. Error frames still go to Outbox.
	Reply chan error
}

// Leave is the disconnect signal. While Filling it frees the seat; once
// Active the seat keeps its turn rights and only the outbox is dropped.
type Leave struct{ SessionID string }

// Start is the explicit start command; it fails unless every seat is bound.
// Outbox lets a rejection reach senders the room has no outbox for.
type Start struct {
	SessionID string
	Outbox    chan types.ServerMessage
}

// Pick is one draft transaction attempt.
type Pick struct {
	SessionID string
	ItemName  string
	Outbox    chan types.ServerMessage
}

// GetState reflects internal state out for tests without data races.
type GetState struct{ Reply chan View }

type Shutdown struct{}

// revealElapsed is the deferred continuation between the reveal broadcast
// and the state (or game-over) broadcast that follows it.
type revealElapsed struct{}

func (Join) isRoomMsg()          {}
func (Leave) isRoomMsg()         {}
func (Start) isRoomMsg()         {}
func (Pick) isRoomMsg()          {}
func (GetState) isRoomMsg()      {}
func (Shutdown) isRoomMsg()      {}
func (revealElapsed) isRoomMsg() {}

type View struct {
	State      engine.State
	NumClients int
}

type Config struct {
	SeatCount   int
	RoundLimit  int
	RevealDelay time.Duration
	Sampler     Sampler

	// Schedule defaults to time.AfterFunc when nil.
	Schedule ScheduleFunc

	// OnRemove tells the registry to forget this room; called exactly once,
	// right before the actor stops on completion or abandonment.
	OnRemove func()

	Logger *zap.Logger
}

// Room is the actor owning one draft. All mutation happens on the loop
// goroutine, so every operation against the room is strictly serialized.
type Room struct {
	code    string
	cfg     Config
	inbox   chan Msg
	state   engine.State
	clients map[string]chan types.ServerMessage
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, code string, cfg Config) *Room {
	if cfg.Schedule == nil {
		cfg.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if cfg.OnRemove == nil {
		cfg.OnRemove = func() {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:    code,
		cfg:     cfg,
		inbox:   make(chan Msg, 64),
		state:   engine.NewState(cfg.SeatCount, cfg.RoundLimit),
		clients: make(map[string]chan types.ServerMessage),
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

// Inbox is the only way in; the ws layer and tests send messages here.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.cancel()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg)
			case Start:
				r.handleStart(msg)
			case Pick:
				r.handlePick(msg)
			case revealElapsed:
				if r.handleRevealElapsed() {
					return
				}
			case GetState:
				msg.Reply <- View{State: r.state, NumClients: len(r.clients)}
			case Shutdown:
				r.cancel()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	events, next, err := engine.Apply(r.state, engine.Command{
		Type:      engine.CmdJoin,
		SessionID: msg.SessionID,
		Seat:      msg.Seat,
	})
	if err != nil {
		// The session may not be registered yet, so reply on its outbox.
		trySend(msg.Outbox, types.Error{Type: types.TypeError, Message: err.Error()})
		if msg.Reply != nil {
			msg.Reply <- err
		}
		return
	}

	r.state = next
	r.clients[msg.SessionID] = msg.Outbox
	if msg.Reply != nil {
		msg.Reply <- nil
	}
	if ev := events[0]; ev.Type == engine.EvtSeatJoined {
		r.log.Info("seat joined", zap.Int("seat", ev.Seat))
	}
	r.broadcastWaitingRoom()

	if r.state.Full() {
		r.startDraft()
	}
}

func (r *Room) handleLeave(msg Leave) {
	delete(r.clients, msg.SessionID)

	events, next, _ := engine.Apply(r.state, engine.Command{
		Type:      engine.CmdLeave,
		SessionID: msg.SessionID,
	})
	r.state = next
	if engine.ContainsEvent(events, engine.EvtSeatLeft) {
		r.log.Info("seat left", zap.Int("occupied", r.state.Occupied()))
		r.broadcastWaitingRoom()
	}

	// A Filling room with no occupants left has nobody to fill it.
	if r.state.Phase == engine.PhaseFilling && r.state.Occupied() == 0 {
		r.log.Info("room abandoned")
		r.cfg.OnRemove()
		r.cancel()
	}
}

func (r *Room) handleStart(msg Start) {
	if r.state.Phase != engine.PhaseFilling {
		r.sendError(msg.SessionID, msg.Outbox, engine.ErrRoomNotJoinable)
		return
	}
	if !r.state.Full() {
		r.sendError(msg.SessionID, msg.Outbox, engine.ErrRoomNotFull)
		return
	}
	r.startDraft()
}

// startDraft samples the pool and flips the engine to Active. Callers have
// already established full occupancy.
func (r *Room) startDraft() {
	pool, err := r.cfg.Sampler.Sample(r.state.SeatCount * r.state.RoundLimit)
	if err != nil {
		r.log.Error("pool sample failed", zap.Error(err))
		r.broadcast(func(seat int) types.ServerMessage {
			return types.Error{Type: types.TypeError, Message: err.Error()}
		})
		return
	}

	_, next, err := engine.Apply(r.state, engine.Command{Type: engine.CmdStart, Pool: pool})
	if err != nil {
		r.log.Error("start rejected", zap.Error(err))
		return
	}
	r.state = next
	r.log.Info("draft started", zap.Int("pool", len(pool)))
	r.broadcastGameState()
}

func (r *Room) handlePick(msg Pick) {
	events, next, err := engine.Apply(r.state, engine.Command{
		Type:      engine.CmdPick,
		SessionID: msg.SessionID,
		ItemName:  msg.ItemName,
	})
	if err != nil {
		r.sendError(msg.SessionID, msg.Outbox, err)
		return
	}
	r.state = next

	for _, ev := range events {
		if ev.Type != engine.EvtPicked {
			continue
		}
		r.log.Info("pick accepted",
			zap.Int("seat", ev.Seat),
			zap.String("pokemon", ev.Item.Name),
			zap.Int("round", r.state.Round))
		item := ev.Item
		seat := ev.Seat
		r.broadcast(func(int) types.ServerMessage {
			return types.Reveal{Type: types.TypeReveal, PlayerIndex: seat, Pokemon: item}
		})
	}

	// The follow-up snapshot waits out the reveal window without blocking
	// the loop; other rooms and even this room keep processing.
	r.cfg.Schedule(r.cfg.RevealDelay, func() {
		select {
		case r.inbox <- revealElapsed{}:
		case <-r.ctx.Done():
		}
	})
}

// handleRevealElapsed emits the broadcast deferred behind a reveal. Returns
// true when the room is done and the loop should stop.
func (r *Room) handleRevealElapsed() bool {
	if r.state.Phase != engine.PhaseComplete {
		r.broadcastGameState()
		return false
	}

	r.broadcast(func(seat int) types.ServerMessage {
		return types.GameOver{Type: types.TypeGameOver, Teams: r.state.Teams}
	})
	r.log.Info("draft complete")
	r.cfg.OnRemove()
	r.cancel()
	return true
}

func (r *Room) broadcastWaitingRoom() {
	players := make([]bool, r.state.SeatCount)
	for i, id := range r.state.Seats {
		players[i] = id != ""
	}
	r.broadcast(func(seat int) types.ServerMessage {
		return types.WaitingRoom{
			Type:       types.TypeWaitingRoom,
			RoomCode:   r.code,
			Players:    players,
			NumPlayers: r.state.SeatCount,
			YourIndex:  seat,
		}
	})
}

func (r *Room) broadcastGameState() {
	r.broadcast(func(seat int) types.ServerMessage {
		return types.GameState{
			Type:             types.TypeGameState,
			RoomCode:         r.code,
			AvailablePokemon: r.state.Pool,
			Teams:            r.state.Teams,
			CurrentPlayer:    r.state.CurrentSeat,
			CurrentRound:     r.state.Round,
			PlayerIndex:      seat,
		}
	})
}

// broadcast fans a personalized frame out to every occupied, reachable seat.
// A seat whose session disconnected mid-draft simply has no outbox and is
// skipped; one undeliverable seat never aborts the rest.
func (r *Room) broadcast(fn func(seat int) types.ServerMessage) {
	for seat, sessionID := range r.state.Seats {
		if sessionID == "" {
			continue
		}
		out, ok := r.clients[sessionID]
		if !ok {
			continue
		}
		if !trySend(out, fn(seat)) {
			// Outbox full: the connection stopped draining. Drop the client
			// rather than stall the room.
			r.log.Warn("dropping slow client", zap.Int("seat", seat))
			delete(r.clients, sessionID)
		}
	}
}

// sendError reports a rejection to the offending session. Sessions the room
// has no outbox for (never seated here, or dropped as slow) fall back to the
// outbox carried on the triggering message.
func (r *Room) sendError(sessionID string, fallback chan types.ServerMessage, err error) {
	out, ok := r.clients[sessionID]
	if !ok {
		out = fallback
	}
	trySend(out, types.Error{Type: types.TypeError, Message: err.Error()})
}

func trySend(out chan types.ServerMessage, msg types.ServerMessage) bool {
	if out == nil {
		return false
	}
	select {
	case out <- msg:
		return true
	default:
		return false
	}
}
