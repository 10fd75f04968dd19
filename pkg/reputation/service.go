package reputation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

const (
	collectionReputations = "reputations"

	trendWindow    = 3
	trendThreshold = 50
)

// Service owns faction ledgers.
type Service struct {
	store store.Store
	locks store.KeyedMutex
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// UpdateReputation applies a publicity-scaled delta, recomputes the
// derived band fields and appends the deed to the history.
func (s *Service) UpdateReputation(ctx context.Context, in UpdateInput) (State, error) {
	if strings.TrimSpace(in.CharacterID) == "" || strings.TrimSpace(in.FactionID) == "" {
		return State{}, apperrors.Validation("reputation requires character id and faction id")
	}
	if in.Publicity == "" {
		in.Publicity = PublicityLocal
	}

	key := store.Key(in.CharacterID, in.FactionID)
	unlock := s.locks.Lock(key)
	defer unlock()

	st, err := store.GetJSON[State](ctx, s.store, collectionReputations, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		st = State{CharacterID: in.CharacterID, FactionID: in.FactionID, FactionName: in.FactionID}
	case err != nil:
		return State{}, fmt.Errorf("load reputation: %w", err)
	}
	if in.FactionName != "" {
		st.FactionName = in.FactionName
	}

	change := scaledChange(in.Delta, in.Publicity.Multiplier())
	before := st.ReputationLevel
	st.Reputation = clamp(st.Reputation + change)
	applyLevel(&st)
	st.IsKnown = true
	st.History = append(st.History, Event{
		EventType:        in.EventType,
		ReputationChange: change,
		Description:      in.Description,
		Location:         in.Location,
		NPCsInvolved:     in.NPCsInvolved,
		Publicity:        in.Publicity,
		Timestamp:        s.now().UTC(),
	})

	if err := store.PutJSON(ctx, s.store, collectionReputations, key, st); err != nil {
		return State{}, fmt.Errorf("save reputation: %w", err)
	}
	if before != "" && before != st.ReputationLevel {
		logger.InfoCF("reputation", "Faction standing changed", map[string]interface{}{
			"character_id": in.CharacterID,
			"faction_id":   in.FactionID,
			"from":         string(before),
			"to":           string(st.ReputationLevel),
		})
	}
	return st, nil
}

// scaledChange applies the publicity multiplier with the delta and the
// product both capped to the width of the reputation range.
func scaledChange(delta int, mult float64) int {
	const span = MaxReputation - MinReputation
	d := min(max(delta, -span), span)
	product := min(max(float64(d)*mult, -span), span)
	return int(math.Round(product))
}

func applyLevel(st *State) {
	info := infoFor(st.Reputation)
	st.ReputationLevel = info.level
	st.Standing = info.standing
	st.Benefits = append([]string{}, info.benefits...)
	st.Penalties = append([]string{}, info.penalties...)
}

// Get returns a character's ledger with one faction.
func (s *Service) Get(ctx context.Context, characterID, factionID string) (State, error) {
	st, err := store.GetJSON[State](ctx, s.store, collectionReputations, store.Key(characterID, factionID))
	if errors.Is(err, store.ErrNotFound) {
		return State{}, apperrors.NotFound("reputation", factionID)
	}
	if err != nil {
		return State{}, fmt.Errorf("get reputation: %w", err)
	}
	return st, nil
}

// List returns every faction ledger of a character ordered by faction id.
func (s *Service) List(ctx context.Context, characterID string) ([]State, error) {
	out, err := store.QueryJSON[State](ctx, s.store, collectionReputations, store.Prefix(characterID))
	if err != nil {
		return nil, fmt.Errorf("list reputations: %w", err)
	}
	return out, nil
}

// TrendOf sums the last three changes. Fewer than two events is stable.
func TrendOf(history []Event) Trend {
	if len(history) < 2 {
		return TrendStable
	}
	start := len(history) - trendWindow
	if start < 0 {
		start = 0
	}
	sum := 0
	for _, ev := range history[start:] {
		sum += ev.ReputationChange
	}
	switch {
	case sum > trendThreshold:
		return TrendRising
	case sum < -trendThreshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

func (s *Service) Summarize(ctx context.Context, characterID string) (Summary, error) {
	states, err := s.List(ctx, characterID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(states), nil
}

// Summarize lists known factions with opportunities for friendly and
// honored ones and warnings for hostile and hated ones.
func Summarize(states []State) Summary {
	sum := Summary{Standings: make([]Standing, 0, len(states))}
	for _, st := range states {
		if !st.IsKnown {
			continue
		}
		sum.Standings = append(sum.Standings, Standing{
			FactionID:   st.FactionID,
			FactionName: st.FactionName,
			Reputation:  st.Reputation,
			Level:       st.ReputationLevel,
			Standing:    st.Standing,
			Trend:       TrendOf(st.History),
		})
		switch st.ReputationLevel {
		case LevelFriendly:
			sum.Opportunities = append(sum.Opportunities, fmt.Sprintf("%s: 우호 관계를 활용한 거래와 정보 획득", st.FactionName))
		case LevelHonored:
			sum.Opportunities = append(sum.Opportunities, fmt.Sprintf("%s: 특별 임무와 동맹 제안 가능", st.FactionName))
		case LevelHostile:
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s: 적대적 세력, 영역 내 주의 필요", st.FactionName))
		case LevelHated:
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s: 증오의 대상, 공격 위험", st.FactionName))
		}
	}
	return sum
}
