package types

import "github.com/pokedraft/server/internal/catalog"

// Message type discriminators, shared by both directions of the socket.
const (
	TypeCreate      = "create"
	TypeJoin        = "join"
	TypeSelectSlot  = "selectSlot"
	TypeStartGame   = "startGame"
	TypeChoose      = "choose"
	TypeRoomCreated = "roomCreated"
	TypeWaitingRoom = "waitingRoom"
	TypeGameState   = "gameState"
	TypeReveal      = "reveal"
	TypeGameOver    = "gameOver"
	TypeError       = "error"
)

// ClientMessage is the single inbound frame shape; Type selects which of the
// optional fields are meaningful.
type ClientMessage struct {
	Type       string             `json:"type"`
	NumPlayers int                `json:"numPlayers,omitempty"`
	RoomCode   string             `json:"roomCode,omitempty"`
	SlotIndex  *int               `json:"slotIndex,omitempty"`
	Pokemon    *catalog.DraftItem `json:"pokemon,omitempty"`
}

// ServerMessage is implemented by every outbound frame. Each frame is its own
// struct so zero-valued indices survive marshalling.
type ServerMessage interface{ serverMessage() }

type RoomCreated struct {
	Type        string `json:"type"`
	RoomCode    string `json:"roomCode"`
	PlayerIndex int    `json:"playerIndex"`
}

// WaitingRoom is the occupancy snapshot broadcast while seats fill.
// YourIndex is personalized per recipient.
type WaitingRoom struct {
	Type       string `json:"type"`
	RoomCode   string `json:"roomCode"`
	Players    []bool `json:"players"`
	NumPlayers int    `json:"numPlayers"`
	YourIndex  int    `json:"yourIndex"`
}

// GameState is the full draft snapshot, personalized with the recipient's
// seat so the client can derive "my turn" and "my team" from server truth.
type GameState struct {
	Type             string                `json:"type"`
	RoomCode         string                `json:"roomCode"`
	AvailablePokemon []catalog.DraftItem   `json:"availablePokemon"`
	Teams            [][]catalog.DraftItem `json:"teams"`
	CurrentPlayer    int                   `json:"currentPlayer"`
	CurrentRound     int                   `json:"currentRound"`
	PlayerIndex      int                   `json:"playerIndex"`
}

// Reveal announces a single accepted pick ahead of the next GameState, so
// clients can play the pick animation before the turn indicator moves.
type Reveal struct {
	Type        string            `json:"type"`
	PlayerIndex int               `json:"playerIndex"`
	Pokemon     catalog.DraftItem `json:"pokemon"`
}

type GameOver struct {
	Type  string                `json:"type"`
	Teams [][]catalog.DraftItem `json:"teams"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (RoomCreated) serverMessage() {}
func (WaitingRoom) serverMessage() {}
func (GameState) serverMessage()   {}
func (Reveal) serverMessage()      {}
func (GameOver) serverMessage()    {}
func (Error) serverMessage()       {}
