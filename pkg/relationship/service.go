package relationship

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

const (
	collectionRelationships = "relationships"

	moodThreshold      = 30
	recentChangesLimit = 5
)

// Service owns relationship state. Updates to the same (character, npc)
// pair are serialized; different pairs proceed in parallel.
type Service struct {
	store store.Store
	locks store.KeyedMutex
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// UpdateEmotion applies deltas to an NPC's emotions, creating the
// relationship on first contact.
func (s *Service) UpdateEmotion(ctx context.Context, in UpdateInput) (State, error) {
	if strings.TrimSpace(in.CharacterID) == "" || strings.TrimSpace(in.NPCID) == "" {
		return State{}, apperrors.Validation("relationship requires character id and npc id")
	}

	key := store.Key(in.CharacterID, in.NPCID)
	unlock := s.locks.Lock(key)
	defer unlock()

	st, err := s.load(ctx, in.CharacterID, in.NPCID)
	if err != nil {
		return State{}, err
	}
	if in.NPCName != "" {
		st.NPCName = in.NPCName
	}

	applied := make(map[Emotion]int, len(in.Deltas))
	for name, delta := range in.Deltas {
		e := Emotion(strings.ToLower(strings.TrimSpace(name)))
		if !knownChannel(e) {
			logger.DebugCF("relationship", "Ignoring unknown emotion channel", map[string]interface{}{
				"npc_id":  in.NPCID,
				"channel": name,
			})
			continue
		}
		delta = boundDelta(delta)
		st.Emotions[e] = clamp(st.Emotions[e] + delta)
		applied[e] = boundDelta(applied[e] + delta)
	}
	st.DominantEmotion, st.EmotionIntensity = dominant(st.Emotions)

	ts := s.now().UTC()
	st.LastInteraction = ts
	st.InteractionHistory = append(st.InteractionHistory, Interaction{
		EventType:      in.EventType,
		Description:    in.Description,
		EmotionChanges: applied,
		Context:        in.Context,
		Timestamp:      ts,
	})
	if n := len(st.InteractionHistory); n > MaxHistory {
		st.InteractionHistory = append([]Interaction(nil), st.InteractionHistory[n-MaxHistory:]...)
	}

	if err := store.PutJSON(ctx, s.store, collectionRelationships, key, st); err != nil {
		return State{}, fmt.Errorf("save relationship: %w", err)
	}
	return st, nil
}

func (s *Service) load(ctx context.Context, characterID, npcID string) (State, error) {
	st, err := store.GetJSON[State](ctx, s.store, collectionRelationships, store.Key(characterID, npcID))
	if errors.Is(err, store.ErrNotFound) {
		return newState(characterID, npcID), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load relationship: %w", err)
	}
	if st.Emotions == nil {
		st.Emotions = map[Emotion]int{}
	}
	return st, nil
}

func newState(characterID, npcID string) State {
	emotions := make(map[Emotion]int, len(Channels))
	for _, c := range Channels {
		emotions[c] = 0
	}
	return State{
		CharacterID:     characterID,
		NPCID:           npcID,
		NPCName:         npcID,
		Emotions:        emotions,
		DominantEmotion: Trust,
	}
}

// Get returns the relationship with one NPC.
func (s *Service) Get(ctx context.Context, characterID, npcID string) (State, error) {
	st, err := store.GetJSON[State](ctx, s.store, collectionRelationships, store.Key(characterID, npcID))
	if errors.Is(err, store.ErrNotFound) {
		return State{}, apperrors.NotFound("relationship", npcID)
	}
	if err != nil {
		return State{}, fmt.Errorf("get relationship: %w", err)
	}
	return st, nil
}

// List returns every relationship of a character ordered by npc id.
func (s *Service) List(ctx context.Context, characterID string) ([]State, error) {
	out, err := store.QueryJSON[State](ctx, s.store, collectionRelationships, store.Prefix(characterID))
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	return out, nil
}

// Summarize reports the overall mood, a line per NPC and the most recent
// interactions across all NPCs.
func (s *Service) Summarize(ctx context.Context, characterID string) (Summary, error) {
	states, err := s.List(ctx, characterID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(states), nil
}

// Summarize builds a Summary from already loaded states.
func Summarize(states []State) Summary {
	sum := Summary{
		OverallMood:   OverallMood(states),
		Relationships: make([]NPCSummary, 0, len(states)),
	}

	var recent []RecentChange
	for _, st := range states {
		sum.Relationships = append(sum.Relationships, NPCSummary{
			NPCID:   st.NPCID,
			NPCName: st.NPCName,
			Label:   Label(st),
			Summary: describe(st),
		})
		for _, it := range st.InteractionHistory {
			recent = append(recent, RecentChange{NPCID: st.NPCID, NPCName: st.NPCName, Interaction: it})
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > recentChangesLimit {
		recent = recent[:recentChangesLimit]
	}
	sum.RecentChanges = recent
	return sum
}

// OverallMood averages each NPC's positive minus negative feelings.
func OverallMood(states []State) Mood {
	if len(states) == 0 {
		return MoodNeutral
	}
	total := 0
	for _, st := range states {
		positive := st.Value(Happiness) + st.Value(Trust) + st.Value(Love)
		negative := st.Value(Anger) + st.Value(Fear) + st.Value(Hostility)
		total += positive - negative
	}
	avg := float64(total) / float64(len(states))
	switch {
	case avg > moodThreshold:
		return MoodPositive
	case avg < -moodThreshold:
		return MoodNegative
	default:
		return MoodNeutral
	}
}

// Label gives a short description of the relationship in the player's
// language.
func Label(st State) string {
	switch {
	case st.Value(Love) > 50:
		return "연인/가족"
	case st.Value(Trust) > 30 && st.Value(Hostility) < -20:
		return "신뢰하는 친구"
	case st.Value(Trust) > 10:
		return "우호적"
	case st.Value(Hostility) > 50:
		return "원수"
	case st.Value(Hostility) > 30:
		return "적대적"
	default:
		return "중립적"
	}
}

func describe(st State) string {
	return fmt.Sprintf("%s: %s (%s %d)", st.NPCName, Label(st), st.DominantEmotion, st.EmotionIntensity)
}

// dominant picks the channel with the largest magnitude. Ties go to the
// channel listed first in Channels.
func dominant(emotions map[Emotion]int) (Emotion, int) {
	best, bestAbs := Channels[0], -1
	for _, c := range Channels {
		v := emotions[c]
		if v < 0 {
			v = -v
		}
		if v > bestAbs {
			best, bestAbs = c, v
		}
	}
	return best, bestAbs
}

// boundDelta caps a delta to the width of the emotion range so the
// following addition cannot overflow.
func boundDelta(d int) int {
	const span = MaxEmotion - MinEmotion
	if d > span {
		return span
	}
	if d < -span {
		return -span
	}
	return d
}

func clamp(v int) int {
	if v < MinEmotion {
		return MinEmotion
	}
	if v > MaxEmotion {
		return MaxEmotion
	}
	return v
}
