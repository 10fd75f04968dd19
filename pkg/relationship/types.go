// Package relationship tracks how each NPC feels about a character across
// eight emotion channels.
package relationship

import "time"

// Emotion names one channel of an NPC's feelings toward the character.
type Emotion string

const (
	Trust     Emotion = "trust"
	Love      Emotion = "love"
	Happiness Emotion = "happiness"
	Respect   Emotion = "respect"
	Fear      Emotion = "fear"
	Anger     Emotion = "anger"
	Sadness   Emotion = "sadness"
	Hostility Emotion = "hostility"
)

// Channels lists every emotion in tie-break order.
var Channels = []Emotion{Trust, Love, Happiness, Respect, Fear, Anger, Sadness, Hostility}

const (
	MinEmotion = -100
	MaxEmotion = 100

	// MaxHistory bounds the interaction history kept per NPC.
	MaxHistory = 10
)

func knownChannel(e Emotion) bool {
	for _, c := range Channels {
		if c == e {
			return true
		}
	}
	return false
}

// Interaction is one entry in an NPC's interaction history.
type Interaction struct {
	EventType      string          `json:"eventType"`
	Description    string          `json:"description"`
	EmotionChanges map[Emotion]int `json:"emotionChanges"`
	Context        string          `json:"context,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// State is the relationship between one character and one NPC.
type State struct {
	CharacterID        string          `json:"characterId"`
	NPCID              string          `json:"npcId"`
	NPCName            string          `json:"npcName"`
	Emotions           map[Emotion]int `json:"emotions"`
	DominantEmotion    Emotion         `json:"dominantEmotion"`
	EmotionIntensity   int             `json:"emotionIntensity"`
	LastInteraction    time.Time       `json:"lastInteraction"`
	InteractionHistory []Interaction   `json:"interactionHistory"`
}

// Value returns the channel value, zero when unset.
func (s State) Value(e Emotion) int {
	return s.Emotions[e]
}

// UpdateInput describes an interaction that shifts an NPC's emotions.
type UpdateInput struct {
	CharacterID string
	NPCID       string
	NPCName     string
	EventType   string
	Deltas      map[string]int
	Description string
	Context     string
}

// Mood is the aggregate tone of all of a character's relationships.
type Mood string

const (
	MoodPositive Mood = "positive"
	MoodNeutral  Mood = "neutral"
	MoodNegative Mood = "negative"
)

// NPCSummary is one line of a relationship summary.
type NPCSummary struct {
	NPCID   string `json:"npcId"`
	NPCName string `json:"npcName"`
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

// RecentChange is an interaction annotated with the NPC it happened with.
type RecentChange struct {
	NPCID   string `json:"npcId"`
	NPCName string `json:"npcName"`
	Interaction
}

// Summary describes every relationship a character has.
type Summary struct {
	OverallMood   Mood           `json:"overallMood"`
	Relationships []NPCSummary   `json:"relationships"`
	RecentChanges []RecentChange `json:"recentChanges"`
}
