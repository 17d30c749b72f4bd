package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	CatalogPath string
	StaticDir   string

	// PlayersMin/PlayersMax bound numPlayers on create; the boundary
	// validates, the engine trusts.
	PlayersMin int
	PlayersMax int

	// RoundLimit is how many snake sweeps a draft runs; each seat ends up
	// with RoundLimit picks.
	RoundLimit int

	// RevealDelay is the gap between a reveal broadcast and the state
	// broadcast that follows it. Presentation accommodation, zero is valid.
	RevealDelay time.Duration
}

// Load reads configuration from the environment, after loading .env if one
// exists. Every knob has a default, so an empty environment works.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:        envString("ADDR", ":8080"),
		CatalogPath: envString("CATALOG_PATH", "pokedex.json"),
		StaticDir:   envString("STATIC_DIR", "public"),
		PlayersMin:  envInt("PLAYERS_MIN", 2),
		PlayersMax:  envInt("PLAYERS_MAX", 8),
		RoundLimit:  envInt("DRAFT_ROUNDS", 4),
		RevealDelay: time.Duration(envInt("REVEAL_DELAY_MS", 1750)) * time.Millisecond,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
