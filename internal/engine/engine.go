package engine

import (
	"errors"
	"slices"

	"github.com/pokedraft/server/internal/catalog"
)

var (
	ErrRoomFull           = errors.New("room is full")
	ErrRoomNotJoinable    = errors.New("game already started")
	ErrRoomNotFull        = errors.New("not all seats are filled")
	ErrSeatTaken          = errors.New("seat already taken")
	ErrInvalidSeat        = errors.New("invalid seat")
	ErrNotSeated          = errors.New("not seated in this room")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrItemNotAvailable   = errors.New("pokemon not available")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

type Phase string

const (
	PhaseFilling  Phase = "filling"
	PhaseActive   Phase = "active"
	PhaseComplete Phase = "complete"
)

// State is one room's entire draft state. It is a value: Apply never mutates
// its input, so a failed command leaves the caller's copy untouched.
type State struct {
	SeatCount  int
	RoundLimit int
	Phase      Phase

	// Seats holds the session ID bound to each seat, "" when empty.
	// Seat order is turn order.
	Seats []string

	Pool  []catalog.DraftItem
	Teams [][]catalog.DraftItem

	CurrentSeat int
	Direction   int
	Round       int
}

type CommandType string

const (
	CmdJoin  CommandType = "Join"
	CmdLeave CommandType = "Leave"
	CmdStart CommandType = "Start"
	CmdPick  CommandType = "Pick"
)

type Command struct {
	Type      CommandType
	SessionID string

	// Seat targets a specific seat on CmdJoin; AnySeat takes the first free.
	Seat int

	// Pool seeds the draft on CmdStart.
	Pool []catalog.DraftItem

	// ItemName identifies the pick on CmdPick.
	ItemName string
}

// AnySeat joins whichever seat is free first.
const AnySeat = -1

type EventType string

const (
	EvtSeatJoined     EventType = "SeatJoined"
	EvtSeatLeft       EventType = "SeatLeft"
	EvtDraftStarted   EventType = "DraftStarted"
	EvtPicked         EventType = "Picked"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtDraftCompleted EventType = "DraftCompleted"
)

type Event struct {
	Type EventType
	Seat int
	Item catalog.DraftItem
}

// NewState returns an empty Filling-phase state. Seat-count bounds are the
// boundary's concern; the engine trusts its configuration.
func NewState(seatCount, roundLimit int) State {
	return State{
		SeatCount:  seatCount,
		RoundLimit: roundLimit,
		Phase:      PhaseFilling,
		Seats:      make([]string, seatCount),
		Direction:  1,
	}
}

// Apply runs one command against the state and returns the events it
// produced plus the next state. On error the returned state is the input,
// unchanged.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdStart:
		return applyStart(s, cmd)
	case CmdPick:
		return applyPick(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoin(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseFilling {
		return nil, s, ErrRoomNotJoinable
	}

	seat := cmd.Seat
	if seat == AnySeat {
		seat = slices.Index(s.Seats, "")
		if seat < 0 {
			return nil, s, ErrRoomFull
		}
	} else {
		if seat < 0 || seat >= s.SeatCount {
			return nil, s, ErrInvalidSeat
		}
		if s.Seats[seat] != "" && s.Seats[seat] != cmd.SessionID {
			return nil, s, ErrSeatTaken
		}
	}

	newState := s
	newState.Seats = slices.Clone(s.Seats)
	// Re-seating while Filling vacates the previous seat.
	if prev := s.SeatOf(cmd.SessionID); prev >= 0 {
		newState.Seats[prev] = ""
	}
	newState.Seats[seat] = cmd.SessionID

	return []Event{{Type: EvtSeatJoined, Seat: seat}}, newState, nil
}

func applyLeave(s State, cmd Command) ([]Event, State, error) {
	seat := s.SeatOf(cmd.SessionID)
	if seat < 0 {
		return nil, s, nil
	}
	// Once the draft starts a seat keeps its turn rights; only reachability
	// changes, and that lives outside the engine.
	if s.Phase != PhaseFilling {
		return nil, s, nil
	}

	newState := s
	newState.Seats = slices.Clone(s.Seats)
	newState.Seats[seat] = ""
	return []Event{{Type: EvtSeatLeft, Seat: seat}}, newState, nil
}

func applyStart(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseFilling {
		return nil, s, ErrRoomNotJoinable
	}
	if s.Occupied() != s.SeatCount {
		return nil, s, ErrRoomNotFull
	}

	newState := s
	newState.Phase = PhaseActive
	newState.Pool = slices.Clone(cmd.Pool)
	newState.Teams = make([][]catalog.DraftItem, s.SeatCount)
	for i := range newState.Teams {
		newState.Teams[i] = []catalog.DraftItem{}
	}
	newState.CurrentSeat = 0
	newState.Direction = 1
	newState.Round = 1

	return []Event{{Type: EvtDraftStarted}}, newState, nil
}

func applyPick(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseActive {
		return nil, s, ErrNotYourTurn
	}

	seat := s.SeatOf(cmd.SessionID)
	if seat < 0 {
		return nil, s, ErrNotSeated
	}
	if seat != s.CurrentSeat {
		return nil, s, ErrNotYourTurn
	}

	i := slices.IndexFunc(s.Pool, func(it catalog.DraftItem) bool {
		return it.Name == cmd.ItemName
	})
	if i < 0 {
		return nil, s, ErrItemNotAvailable
	}

	item := s.Pool[i]
	newState := s
	newState.Pool = slices.Delete(slices.Clone(s.Pool), i, i+1)
	newState.Teams = slices.Clone(s.Teams)
	newState.Teams[seat] = append(slices.Clone(s.Teams[seat]), item)

	events := []Event{
		{Type: EvtPicked, Seat: seat, Item: item},
		{Type: EvtTurnAdvanced},
	}

	advance(&newState)
	if newState.Phase == PhaseComplete {
		events = append(events, Event{Type: EvtDraftCompleted})
	}
	return events, newState, nil
}

// SeatOf resolves a session to its seat index, -1 when unseated.
func (s State) SeatOf(sessionID string) int {
	if sessionID == "" {
		return -1
	}
	return slices.Index(s.Seats, sessionID)
}

// Occupied counts bound seats.
func (s State) Occupied() int {
	n := 0
	for _, id := range s.Seats {
		if id != "" {
			n++
		}
	}
	return n
}

// Full reports whether every seat is bound.
func (s State) Full() bool { return s.Occupied() == s.SeatCount }

// ContainsEvent reports whether events holds an event of the given type.
func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
