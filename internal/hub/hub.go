package hub

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/pokedraft/server/internal/room"
)

type HubMsg interface{ isHubMsg() }

// CreateRoom mints a fresh, collision-checked code and starts a room actor
// for it. Seat-count bounds are validated at the ws boundary before this
// message is sent.
type CreateRoom struct {
	SeatCount int
	Reply     chan CreateReply
}

type CreateReply struct {
	Code string
	Room *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room // nil when no such room
}

type RemoveRoom struct{ Code string }

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Config struct {
	RoundLimit  int
	RevealDelay time.Duration
	Sampler     room.Sampler

	// Schedule is passed through to rooms; nil means real timers.
	Schedule room.ScheduleFunc

	Logger *zap.Logger
}

// Hub is the registry actor: it alone owns the code→room map, so code
// generation and map mutation are serialized while each room's internals
// stay on that room's own goroutine.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		cfg:    cfg,
		log:    cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				code := h.freshCode()
				rm := room.New(h.ctx, code, room.Config{
					SeatCount:   msg.SeatCount,
					RoundLimit:  h.cfg.RoundLimit,
					RevealDelay: h.cfg.RevealDelay,
					Sampler:     h.cfg.Sampler,
					Schedule:    h.cfg.Schedule,
					OnRemove:    h.removeFunc(code),
					Logger:      h.log.With(zap.String("room", code)),
				})
				h.rooms[code] = rm
				h.log.Info("room created",
					zap.String("room", code),
					zap.Int("seats", msg.SeatCount))
				msg.Reply <- CreateReply{Code: code, Room: rm}

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				delete(h.rooms, msg.Code)
				h.log.Info("room removed", zap.String("room", msg.Code))

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}

// removeFunc gives a room a way to delete itself once it completes. The
// send goes through the inbox so map mutation stays on the hub goroutine.
func (h *Hub) removeFunc(code string) func() {
	return func() {
		select {
		case h.inbox <- RemoveRoom{Code: code}:
		case <-h.ctx.Done():
		}
	}
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

// freshCode keeps generating until the code is unused. Codes of a living
// room are never reissued; collisions are vanishingly rare but checked.
func (h *Hub) freshCode() string {
	for {
		code, err := generateCode()
		if err != nil {
			h.log.Error("code generation failed", zap.Error(err))
			continue
		}
		if _, taken := h.rooms[code]; !taken {
			return code
		}
	}
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
