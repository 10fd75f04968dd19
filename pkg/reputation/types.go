// Package reputation keeps a character's standing with each faction.
package reputation

import "time"

// Publicity is how widely a deed becomes known; wider news moves
// reputation further.
type Publicity string

const (
	PublicityPrivate  Publicity = "private"
	PublicityLocal    Publicity = "local"
	PublicityRegional Publicity = "regional"
	PublicityGlobal   Publicity = "global"
)

// Multiplier scales a raw delta. Unknown or empty publicity counts as local.
func (p Publicity) Multiplier() float64 {
	switch p {
	case PublicityPrivate:
		return 0.5
	case PublicityRegional:
		return 1.5
	case PublicityGlobal:
		return 2
	default:
		return 1
	}
}

// Event is one history entry of a faction ledger.
type Event struct {
	EventType        string    `json:"eventType"`
	ReputationChange int       `json:"reputationChange"`
	Description      string    `json:"description"`
	Location         string    `json:"location,omitempty"`
	NPCsInvolved     []string  `json:"npcsInvolved,omitempty"`
	Publicity        Publicity `json:"publicity"`
	Timestamp        time.Time `json:"timestamp"`
}

// State is a character's standing with one faction.
type State struct {
	CharacterID     string   `json:"characterId"`
	FactionID       string   `json:"factionId"`
	FactionName     string   `json:"factionName"`
	Reputation      int      `json:"reputation"`
	ReputationLevel Level    `json:"reputationLevel"`
	Standing        string   `json:"standing"`
	Benefits        []string `json:"benefits"`
	Penalties       []string `json:"penalties"`
	History         []Event  `json:"history"`
	IsKnown         bool     `json:"isKnown"`
}

// UpdateInput describes a deed that changes faction standing.
type UpdateInput struct {
	CharacterID  string
	FactionID    string
	FactionName  string
	EventType    string
	Delta        int
	Description  string
	Location     string
	NPCsInvolved []string
	Publicity    Publicity
}

// Trend is the recent direction of a faction ledger.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendStable  Trend = "stable"
	TrendFalling Trend = "falling"
)

// Standing is one faction line in a Summary.
type Standing struct {
	FactionID   string `json:"factionId"`
	FactionName string `json:"factionName"`
	Reputation  int    `json:"reputation"`
	Level       Level  `json:"level"`
	Standing    string `json:"standing"`
	Trend       Trend  `json:"trend"`
}

// Summary is an overview of every faction a character is known to.
type Summary struct {
	Standings     []Standing `json:"standings"`
	Opportunities []string   `json:"opportunities"`
	Warnings      []string   `json:"warnings"`
}
