package ws_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokedraft/server/internal/catalog"
	"github.com/pokedraft/server/internal/httpapi"
	"github.com/pokedraft/server/internal/hub"
	"github.com/pokedraft/server/internal/ws"
)

type fixedSampler struct{ items []catalog.DraftItem }

func (f fixedSampler) Sample(size int) ([]catalog.DraftItem, error) {
	if size > len(f.items) {
		return nil, catalog.ErrInsufficientPool
	}
	return slices.Clone(f.items[:size]), nil
}

// frame is the superset of every server payload, for test-side decoding.
type frame struct {
	Type             string                `json:"type"`
	Message          string                `json:"message"`
	RoomCode         string                `json:"roomCode"`
	Players          []bool                `json:"players"`
	NumPlayers       int                   `json:"numPlayers"`
	YourIndex        int                   `json:"yourIndex"`
	AvailablePokemon []catalog.DraftItem   `json:"availablePokemon"`
	Teams            [][]catalog.DraftItem `json:"teams"`
	CurrentPlayer    int                   `json:"currentPlayer"`
	CurrentRound     int                   `json:"currentRound"`
	PlayerIndex      int                   `json:"playerIndex"`
	Pokemon          *catalog.DraftItem    `json:"pokemon"`
}

func startServer(t *testing.T, poolSize int) string {
	t.Helper()

	items := make([]catalog.DraftItem, poolSize)
	for i := range items {
		items[i] = catalog.DraftItem{Name: fmt.Sprintf("mon%02d", i), BST: 600 - i}
	}

	h := hub.NewHub(context.Background(), hub.Config{
		RoundLimit:  4,
		RevealDelay: 0,
		Sampler:     fixedSampler{items: items},
	})
	srv := httptest.NewServer(httpapi.SetupRoutes(h, ws.Bounds{PlayersMin: 2, PlayersMax: 8}, "", zap.NewNop()))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) frame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err, "reading frame")
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// readUntil discards frames until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) frame {
	t.Helper()
	for {
		f := read(t, ctx, conn)
		if f.Type == wantType {
			return f
		}
		require.NotEqual(t, "error", f.Type, "unexpected error frame while waiting for %s: %s", wantType, f.Message)
	}
}

func TestDraft_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := startServer(t, 8)

	c1 := dial(t, ctx, url)
	send(t, ctx, c1, map[string]any{"type": "create", "numPlayers": 2})

	created := readUntil(t, ctx, c1, "roomCreated")
	require.Len(t, created.RoomCode, 6)
	waiting := readUntil(t, ctx, c1, "waitingRoom")
	assert.Equal(t, []bool{true, false}, waiting.Players)
	assert.Equal(t, 0, waiting.YourIndex)

	c2 := dial(t, ctx, url)
	send(t, ctx, c2, map[string]any{"type": "join", "roomCode": created.RoomCode})

	// Filling the last seat auto-starts: both ends get the fresh snapshot.
	state1 := readUntil(t, ctx, c1, "gameState")
	state2 := readUntil(t, ctx, c2, "gameState")
	require.Len(t, state1.AvailablePokemon, 8)
	assert.Equal(t, 0, state1.CurrentPlayer)
	assert.Equal(t, 1, state1.CurrentRound)
	assert.Equal(t, 0, state1.PlayerIndex)
	assert.Equal(t, 1, state2.PlayerIndex)

	conns := []*websocket.Conn{c1, c2}
	// Two-seat snake across four rounds.
	turnOrder := []int{0, 1, 1, 0, 0, 1, 1, 0}
	state := state1

	for pick, seat := range turnOrder {
		choice := state.AvailablePokemon[0]
		send(t, ctx, conns[seat], map[string]any{
			"type":     "choose",
			"roomCode": created.RoomCode,
			"pokemon":  map[string]any{"name": choice.Name},
		})

		for _, conn := range conns {
			reveal := readUntil(t, ctx, conn, "reveal")
			assert.Equal(t, seat, reveal.PlayerIndex)
			require.NotNil(t, reveal.Pokemon)
			assert.Equal(t, choice.Name, reveal.Pokemon.Name)
		}

		if pick == len(turnOrder)-1 {
			break
		}
		next := readUntil(t, ctx, c1, "gameState")
		_ = readUntil(t, ctx, c2, "gameState")
		assert.Len(t, next.AvailablePokemon, 7-pick)
		state = next
	}

	for _, conn := range conns {
		over := readUntil(t, ctx, conn, "gameOver")
		require.Len(t, over.Teams, 2)
		assert.Len(t, over.Teams[0], 4)
		assert.Len(t, over.Teams[1], 4)
	}

	// The room unregisters itself right after the final snapshot; give the
	// registry a beat to process the removal before probing.
	time.Sleep(100 * time.Millisecond)
	send(t, ctx, c2, map[string]any{"type": "join", "roomCode": created.RoomCode})
	errFrame := readUntil(t, ctx, c2, "error")
	assert.Contains(t, errFrame.Message, "not found")
}

func TestCreate_RejectsOutOfBoundsPlayerCount(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startServer(t, 8)
	conn := dial(t, ctx, url)

	for _, n := range []int{0, 1, 9} {
		send(t, ctx, conn, map[string]any{"type": "create", "numPlayers": n})
		f := read(t, ctx, conn)
		require.Equal(t, "error", f.Type, "numPlayers=%d", n)
		assert.Contains(t, f.Message, "between")
	}
}

func TestJoin_UnknownRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startServer(t, 8)
	conn := dial(t, ctx, url)

	send(t, ctx, conn, map[string]any{"type": "join", "roomCode": "ZZZZZZ"})
	f := read(t, ctx, conn)
	require.Equal(t, "error", f.Type)
	assert.Contains(t, f.Message, "not found")
}

func TestMalformedFrameGetsErrorNotDisconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startServer(t, 8)
	conn := dial(t, ctx, url)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	f := read(t, ctx, conn)
	assert.Equal(t, "error", f.Type)

	// The connection survives and keeps working.
	send(t, ctx, conn, map[string]any{"type": "create", "numPlayers": 2})
	created := readUntil(t, ctx, conn, "roomCreated")
	assert.Len(t, created.RoomCode, 6)
}

func TestLateJoinerRejectedOnceActive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startServer(t, 8)

	c1 := dial(t, ctx, url)
	send(t, ctx, c1, map[string]any{"type": "create", "numPlayers": 2})
	created := readUntil(t, ctx, c1, "roomCreated")

	c2 := dial(t, ctx, url)
	send(t, ctx, c2, map[string]any{"type": "join", "roomCode": created.RoomCode})
	_ = readUntil(t, ctx, c2, "gameState")

	c3 := dial(t, ctx, url)
	send(t, ctx, c3, map[string]any{"type": "join", "roomCode": created.RoomCode})
	f := readUntil(t, ctx, c3, "error")
	assert.Contains(t, f.Message, "started")
}

func TestChoose_WithoutSeatGetsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startServer(t, 8)

	c1 := dial(t, ctx, url)
	send(t, ctx, c1, map[string]any{"type": "create", "numPlayers": 2})
	created := readUntil(t, ctx, c1, "roomCreated")

	c2 := dial(t, ctx, url)
	send(t, ctx, c2, map[string]any{"type": "join", "roomCode": created.RoomCode})
	state := readUntil(t, ctx, c2, "gameState")

	// A connection that never joined the room picks anyway; it must hear
	// the rejection rather than silence.
	c3 := dial(t, ctx, url)
	send(t, ctx, c3, map[string]any{
		"type":     "choose",
		"roomCode": created.RoomCode,
		"pokemon":  map[string]any{"name": state.AvailablePokemon[0].Name},
	})
	f := read(t, ctx, c3)
	require.Equal(t, "error", f.Type)
	assert.Contains(t, f.Message, "seated")
}

func TestFailedJoinKeepsExistingSeat(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startServer(t, 8)

	// c1 opens a 3-seat room; c2 opens its own 2-seat room.
	c1 := dial(t, ctx, url)
	send(t, ctx, c1, map[string]any{"type": "create", "numPlayers": 3})
	roomA := readUntil(t, ctx, c1, "roomCreated")

	c2 := dial(t, ctx, url)
	send(t, ctx, c2, map[string]any{"type": "create", "numPlayers": 2})
	roomB := readUntil(t, ctx, c2, "roomCreated")
	_ = readUntil(t, ctx, c2, "waitingRoom")

	// c2 probes roomA's occupied seat and is rejected; that must not cost
	// c2 its seat in roomB.
	send(t, ctx, c2, map[string]any{"type": "selectSlot", "roomCode": roomA.RoomCode, "slotIndex": 0})
	f := readUntil(t, ctx, c2, "error")
	assert.Contains(t, f.Message, "taken")

	// roomB still has c2 seated: a second joiner fills it and the draft
	// starts for both.
	c3 := dial(t, ctx, url)
	send(t, ctx, c3, map[string]any{"type": "join", "roomCode": roomB.RoomCode})
	_ = readUntil(t, ctx, c3, "gameState")
	state := readUntil(t, ctx, c2, "gameState")
	assert.Equal(t, 0, state.PlayerIndex)
	assert.Len(t, state.AvailablePokemon, 8)
}

func TestSelectSlot_SeatConflict(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startServer(t, 12)

	c1 := dial(t, ctx, url)
	send(t, ctx, c1, map[string]any{"type": "create", "numPlayers": 3})
	created := readUntil(t, ctx, c1, "roomCreated")
	_ = readUntil(t, ctx, c1, "waitingRoom")

	c2 := dial(t, ctx, url)
	send(t, ctx, c2, map[string]any{"type": "selectSlot", "roomCode": created.RoomCode, "slotIndex": 0})
	f := readUntil(t, ctx, c2, "error")
	assert.Contains(t, f.Message, "taken")

	send(t, ctx, c2, map[string]any{"type": "selectSlot", "roomCode": created.RoomCode, "slotIndex": 2})
	waiting := readUntil(t, ctx, c2, "waitingRoom")
	assert.Equal(t, 2, waiting.YourIndex)
	assert.Equal(t, []bool{true, false, true}, waiting.Players)
}
