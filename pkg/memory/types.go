package memory

import "time"

// EventType classifies what kind of event a memory records.
type EventType string

const (
	EventCombat      EventType = "combat"
	EventDialogue    EventType = "dialogue"
	EventDiscovery   EventType = "discovery"
	EventAchievement EventType = "achievement"
	EventAction      EventType = "action"
)

// Importance is the retention tier of a memory.
type Importance string

const (
	ImportanceTrivial  Importance = "trivial"
	ImportanceMinor    Importance = "minor"
	ImportanceModerate Importance = "moderate"
	ImportanceMajor    Importance = "major"
	ImportanceCritical Importance = "critical"
)

// IsSignificant reports whether the tier is major or critical.
func (i Importance) IsSignificant() bool {
	return i == ImportanceMajor || i == ImportanceCritical
}

// Memory is an immutable record of a significant character event.
type Memory struct {
	ID          string     `json:"id"`
	CharacterID string     `json:"characterId"`
	EventType   EventType  `json:"eventType"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Importance  Importance `json:"importance"`
	Score       int        `json:"score"`
	Tags        []string   `json:"tags,omitempty"`
	NPCInvolved []string   `json:"npcInvolved,omitempty"`
	Location    string     `json:"location,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// HasTag reports whether the memory carries tag.
func (m Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Involves reports whether npcID took part in the event.
func (m Memory) Involves(npcID string) bool {
	for _, id := range m.NPCInvolved {
		if id == npcID {
			return true
		}
	}
	return false
}

// RecordInput is what callers supply when recording a memory.
type RecordInput struct {
	CharacterID string
	EventType   EventType
	Title       string
	Description string
	Tags        []string
	NPCInvolved []string
	Location    string
}

// Filter narrows a Query. Zero-valued fields do not filter.
type Filter struct {
	Tags        []string     // any of the listed tags
	EventType   EventType    // exact match
	NPCInvolved string       // memory involves this npc
	Importance  []Importance // any of the listed tiers
	Limit       int          // defaults to DefaultQueryLimit
}

// Stats summarizes a character's memory log.
type Stats struct {
	Total        int                `json:"total"`
	ByEventType  map[EventType]int  `json:"byEventType"`
	ByImportance map[Importance]int `json:"byImportance"`
}
