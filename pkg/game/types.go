// Package game holds the orchestrator-owned data model (characters, game
// state, story events) and the persistence collaborator that stores it.
package game

import "time"

// Status values for a running game.
type Status string

const (
	StatusPlaying   Status = "playing"
	StatusGameOver  Status = "gameOver"
	StatusCompleted Status = "completed"
)

// EventType classifies a StoryEvent.
type EventType string

const (
	EventStory      EventType = "story"
	EventCombat     EventType = "combat"
	EventEvent      EventType = "event"
	EventGuestLimit EventType = "guestLimit"
	EventFallback   EventType = "fallback"
)

// Stats is the character stat block consequences apply to.
type Stats struct {
	Health       int `json:"health"`
	MaxHealth    int `json:"maxHealth"`
	Mana         int `json:"mana"`
	MaxMana      int `json:"maxMana"`
	Strength     int `json:"strength"`
	Agility      int `json:"agility"`
	Intelligence int `json:"intelligence"`
	Gold         int `json:"gold"`
	Experience   int `json:"experience"`
	Level        int `json:"level"`
}

// Character is the player character.
type Character struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	WorldID   string    `json:"worldId"`
	IsGuest   bool      `json:"isGuest"`
	Stats     Stats     `json:"stats"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReputationChange is a faction consequence attached to a choice.
type ReputationChange struct {
	FactionID   string `json:"factionId"`
	FactionName string `json:"factionName"`
	Delta       int    `json:"delta"`
	Description string `json:"description,omitempty"`
}

// EmotionChange is an NPC relationship consequence attached to a choice.
type EmotionChange struct {
	NPCID       string         `json:"npcId"`
	NPCName     string         `json:"npcName"`
	Deltas      map[string]int `json:"deltas"`
	Description string         `json:"description,omitempty"`
}

// MemoryHint asks the engine to remember the choice itself.
type MemoryHint struct {
	EventType string   `json:"eventType"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
}

// Consequences are the state changes a choice triggers.
type Consequences struct {
	StatsChange       map[string]int     `json:"statsChange,omitempty"`
	ReputationChanges []ReputationChange `json:"reputationChanges,omitempty"`
	EmotionChanges    []EmotionChange    `json:"emotionChanges,omitempty"`
	Memory            *MemoryHint        `json:"memory,omitempty"`
}

// Choice is one option offered by a StoryEvent.
type Choice struct {
	ID           int           `json:"id"`
	Text         string        `json:"text"`
	Consequences *Consequences `json:"consequences,omitempty"`
}

// StoryEvent is one narrative beat shown to the player.
type StoryEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Choices   []Choice       `json:"choices"`
	Stage     int            `json:"stage"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FindChoice returns the choice with the given id.
func (e *StoryEvent) FindChoice(id int) (Choice, bool) {
	if e == nil {
		return Choice{}, false
	}
	for _, c := range e.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// State is the orchestrator-owned game state for one character.
type State struct {
	CharacterID   string      `json:"characterId"`
	CurrentStage  int         `json:"currentStage"`
	GameStatus    Status      `json:"gameStatus"`
	CurrentEvent  *StoryEvent `json:"currentEvent,omitempty"`
	WorldContext  string      `json:"worldContext"`
	WaitingForAPI bool        `json:"waitingForApi"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
