package game

import (
	"math"
	"strings"
)

// DefaultStats is the stat block a fresh character starts with.
func DefaultStats() Stats {
	return Stats{
		Health:       100,
		MaxHealth:    100,
		Mana:         50,
		MaxMana:      50,
		Strength:     10,
		Agility:      10,
		Intelligence: 10,
		Gold:         100,
		Experience:   0,
		Level:        1,
	}
}

// ApplyStatsChange adds deltas to the stat block and clamps the result to
// character bounds. Unknown stat names are ignored. Maximums are applied
// before current values so a single change can raise both.
func ApplyStatsChange(s Stats, deltas map[string]int) Stats {
	out := s
	for name, delta := range deltas {
		switch normalizeStat(name) {
		case "maxhealth":
			out.MaxHealth = addSat(out.MaxHealth, delta)
		case "maxmana":
			out.MaxMana = addSat(out.MaxMana, delta)
		}
	}
	for name, delta := range deltas {
		switch normalizeStat(name) {
		case "health", "hp":
			out.Health = addSat(out.Health, delta)
		case "mana", "mp":
			out.Mana = addSat(out.Mana, delta)
		case "strength":
			out.Strength = addSat(out.Strength, delta)
		case "agility":
			out.Agility = addSat(out.Agility, delta)
		case "intelligence":
			out.Intelligence = addSat(out.Intelligence, delta)
		case "gold":
			out.Gold = addSat(out.Gold, delta)
		case "experience", "exp", "xp":
			out.Experience = addSat(out.Experience, delta)
		case "level":
			out.Level = addSat(out.Level, delta)
		}
	}
	return ClampStats(out)
}

// ClampStats enforces the stat invariants.
func ClampStats(s Stats) Stats {
	s.MaxHealth = atLeast(s.MaxHealth, 1)
	s.MaxMana = atLeast(s.MaxMana, 0)
	s.Health = clamp(s.Health, 0, s.MaxHealth)
	s.Mana = clamp(s.Mana, 0, s.MaxMana)
	s.Strength = atLeast(s.Strength, 0)
	s.Agility = atLeast(s.Agility, 0)
	s.Intelligence = atLeast(s.Intelligence, 0)
	s.Gold = atLeast(s.Gold, 0)
	s.Experience = atLeast(s.Experience, 0)
	s.Level = atLeast(s.Level, 1)
	return s
}

func normalizeStat(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(n, "_", "")
}

// addSat adds b to a, saturating at the int range instead of wrapping.
func addSat(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func atLeast(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}
