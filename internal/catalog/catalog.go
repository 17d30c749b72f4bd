package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
)

var ErrInsufficientPool = errors.New("not enough eligible pokemon in catalog")

// DraftItem is one draftable catalog entry. The engine treats these as
// immutable values; pools and teams hold copies, never catalog-backed state.
type DraftItem struct {
	Name      string         `json:"name"`
	Types     []string       `json:"types"`
	BaseStats map[string]int `json:"baseStats"`
	BST       int            `json:"bst"`
}

// dexEntry mirrors the Pokémon Showdown pokedex.json schema, which is the
// on-disk format this server loads.
type dexEntry struct {
	Num           int            `json:"num"`
	Name          string         `json:"name"`
	Types         []string       `json:"types"`
	BaseStats     map[string]int `json:"baseStats"`
	IsNonstandard string         `json:"isNonstandard"`
	Forme         string         `json:"forme"`
}

// Names that end with one of these are regional or typed formes of a base
// entry already in the dex, so they are excluded from drafting.
var excludedSuffixes = []string{
	"Normal", "Fire", "Water", "Electric", "Grass", "Ice", "Fighting",
	"Poison", "Ground", "Flying", "Psychic", "Bug", "Rock", "Ghost",
	"Dragon", "Dark", "Steel", "Fairy",
	"Alola", "Galar", "Hisui", "Paldea", "Kalos",
}

const maxDexNum = 1010

// Catalog is the curated, read-only set of draftable entries.
type Catalog struct {
	items []DraftItem
}

// New builds a catalog from pre-curated items. Intended for tests.
func New(items []DraftItem) *Catalog {
	return &Catalog{items: slices.Clone(items)}
}

// Load reads a Showdown-format pokedex file and curates it down to standard,
// base-forme entries. An unreadable file or an empty eligible set is an
// error; the caller is expected to treat that as fatal at startup.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var dex map[string]dexEntry
	if err := json.Unmarshal(raw, &dex); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	items := make([]DraftItem, 0, len(dex))
	for _, entry := range dex {
		if !eligible(entry) {
			continue
		}
		items = append(items, DraftItem{
			Name:      entry.Name,
			Types:     entry.Types,
			BaseStats: entry.BaseStats,
			BST:       statTotal(entry.BaseStats),
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog %s: no eligible entries", path)
	}
	return &Catalog{items: items}, nil
}

func eligible(e dexEntry) bool {
	if e.Num < 1 || e.Num > maxDexNum {
		return false
	}
	if e.IsNonstandard != "" || e.Forme != "" {
		return false
	}
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(e.Name, "-"+suffix) {
			return false
		}
	}
	return true
}

func statTotal(stats map[string]int) int {
	total := 0
	for _, v := range stats {
		total += v
	}
	return total
}

// Len reports the number of eligible entries.
func (c *Catalog) Len() int { return len(c.items) }

// Sample draws size distinct entries uniformly at random. The result is
// sorted by descending base-stat total; that ordering is presentation only
// and carries no gameplay meaning.
func (c *Catalog) Sample(size int) ([]DraftItem, error) {
	if size > len(c.items) {
		return nil, fmt.Errorf("%w: want %d of %d", ErrInsufficientPool, size, len(c.items))
	}

	picked := slices.Clone(c.items)
	rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	picked = picked[:size]

	slices.SortFunc(picked, func(a, b DraftItem) int {
		if a.BST != b.BST {
			return b.BST - a.BST
		}
		return strings.Compare(a.Name, b.Name)
	})
	return picked, nil
}
