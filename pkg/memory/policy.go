package memory

import "strings"

const (
	baseImportanceScore = 3
	maxImportanceScore  = 10

	// DefaultImportanceThreshold is the minimum score an automatic
	// recording needs to be kept.
	DefaultImportanceThreshold = 5
)

var categoryWeights = map[EventType]int{
	EventAchievement: 3,
	EventCombat:      2,
	EventDiscovery:   2,
	EventDialogue:    1,
}

// Each concept counts once when any of its spellings appears.
var importanceKeywords = [][]string{
	{"사망", "death"},
	{"승리", "victory"},
	{"발견", "discovery"},
	{"비밀", "secret"},
	{"보상", "reward"},
	{"실패", "failure"},
}

// ImportancePolicy scores automatic recordings and gates what gets kept.
type ImportancePolicy struct {
	Threshold int
}

func NewImportancePolicy(threshold int) *ImportancePolicy {
	if threshold <= 0 {
		threshold = DefaultImportanceThreshold
	}
	return &ImportancePolicy{Threshold: threshold}
}

// Score computes the 0-10 importance score for an event.
func (p *ImportancePolicy) Score(eventType EventType, description string) int {
	score := baseImportanceScore + categoryWeights[eventType]

	lower := strings.ToLower(description)
	for _, spellings := range importanceKeywords {
		for _, kw := range spellings {
			if strings.Contains(lower, kw) {
				score++
				break
			}
		}
	}

	if score < 0 {
		return 0
	}
	if score > maxImportanceScore {
		return maxImportanceScore
	}
	return score
}

// ShouldCapture reports whether a score clears the threshold.
func (p *ImportancePolicy) ShouldCapture(score int) bool {
	return score >= p.Threshold
}

// ImportanceFor buckets a score into a tier.
func ImportanceFor(score int) Importance {
	switch {
	case score >= 9:
		return ImportanceCritical
	case score >= 7:
		return ImportanceMajor
	case score >= 5:
		return ImportanceModerate
	case score >= 3:
		return ImportanceMinor
	default:
		return ImportanceTrivial
	}
}

// scoreFor is the representative score stored with a manual importance.
func scoreFor(i Importance) int {
	switch i {
	case ImportanceCritical:
		return 9
	case ImportanceMajor:
		return 7
	case ImportanceModerate:
		return 5
	case ImportanceMinor:
		return 3
	default:
		return 1
	}
}

func validImportance(i Importance) bool {
	switch i {
	case ImportanceTrivial, ImportanceMinor, ImportanceModerate, ImportanceMajor, ImportanceCritical:
		return true
	}
	return false
}

func validEventType(t EventType) bool {
	switch t {
	case EventCombat, EventDialogue, EventDiscovery, EventAchievement, EventAction:
		return true
	}
	return false
}
