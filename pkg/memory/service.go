package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

const (
	collectionMemories = "memories"

	// DefaultQueryLimit caps Query results when the filter sets no limit.
	DefaultQueryLimit = 50

	contextSignificantLimit = 5
	contextRecentLimit      = 5
)

// Config configures the memory store.
type Config struct {
	ImportanceThreshold int
	QueryLimit          int
}

// Service is the append-only memory log for characters.
type Service struct {
	store  store.Store
	policy *ImportancePolicy
	limit  int
	now    func() time.Time
}

func NewService(s store.Store, cfg Config) *Service {
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = DefaultQueryLimit
	}
	return &Service{
		store:  s,
		policy: NewImportancePolicy(cfg.ImportanceThreshold),
		limit:  cfg.QueryLimit,
		now:    time.Now,
	}
}

// Policy exposes the scoring policy in use.
func (s *Service) Policy() *ImportancePolicy { return s.policy }

// Record scores an automatic recording and persists it only if it clears
// the importance threshold. The bool reports whether it was kept.
func (s *Service) Record(ctx context.Context, in RecordInput) (Memory, bool, error) {
	if err := validateInput(&in); err != nil {
		return Memory{}, false, err
	}
	score := s.policy.Score(in.EventType, in.Description)
	if !s.policy.ShouldCapture(score) {
		logger.DebugCF("memory", "Memory below importance threshold", map[string]interface{}{
			"character_id": in.CharacterID,
			"event_type":   string(in.EventType),
			"score":        score,
			"threshold":    s.policy.Threshold,
		})
		return Memory{}, false, nil
	}
	m, err := s.append(ctx, in, ImportanceFor(score), score)
	if err != nil {
		return Memory{}, false, err
	}
	return m, true, nil
}

// RecordManual persists a memory with caller-supplied importance, bypassing
// scoring.
func (s *Service) RecordManual(ctx context.Context, in RecordInput, importance Importance) (Memory, error) {
	if err := validateInput(&in); err != nil {
		return Memory{}, err
	}
	if !validImportance(importance) {
		return Memory{}, apperrors.Validation(fmt.Sprintf("unknown importance %q", importance))
	}
	return s.append(ctx, in, importance, scoreFor(importance))
}

// SafeRecord is Record for side-effect callers: storage errors are logged
// and swallowed so a failed memory write never aborts story generation.
func (s *Service) SafeRecord(ctx context.Context, in RecordInput) (Memory, bool) {
	m, kept, err := s.Record(ctx, in)
	if err != nil {
		logger.WarnCF("memory", "Failed to record memory", map[string]interface{}{
			"character_id": in.CharacterID,
			"event_type":   string(in.EventType),
			"error":        err.Error(),
		})
		return Memory{}, false
	}
	return m, kept
}

func validateInput(in *RecordInput) error {
	if strings.TrimSpace(in.CharacterID) == "" {
		return apperrors.Validation("memory character id is required")
	}
	if in.EventType == "" {
		in.EventType = EventAction
	}
	if !validEventType(in.EventType) {
		return apperrors.Validation(fmt.Sprintf("unknown memory event type %q", in.EventType))
	}
	return nil
}

func (s *Service) append(ctx context.Context, in RecordInput, importance Importance, score int) (Memory, error) {
	ts := s.now().UTC()
	m := Memory{
		ID:          "mem-" + uuid.NewString(),
		CharacterID: in.CharacterID,
		EventType:   in.EventType,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Importance:  importance,
		Score:       score,
		Tags:        dedupe(in.Tags),
		NPCInvolved: dedupe(in.NPCInvolved),
		Location:    strings.TrimSpace(in.Location),
		Timestamp:   ts,
	}
	// Zero-padded nanos keep keys in chronological order.
	key := store.Key(in.CharacterID, fmt.Sprintf("%020d", ts.UnixNano()), m.ID)
	if err := store.PutJSON(ctx, s.store, collectionMemories, key, m); err != nil {
		return Memory{}, fmt.Errorf("append memory: %w", err)
	}
	return m, nil
}

// Query returns the character's memories matching every set filter, newest
// first, truncated to the limit after sorting.
func (s *Service) Query(ctx context.Context, characterID string, f Filter) ([]Memory, error) {
	all, err := store.QueryJSON[Memory](ctx, s.store, collectionMemories, store.Prefix(characterID))
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}

	out := make([]Memory, 0, len(all))
	for _, m := range all {
		if f.matches(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	limit := f.Limit
	if limit <= 0 {
		limit = s.limit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f Filter) matches(m Memory) bool {
	if f.EventType != "" && m.EventType != f.EventType {
		return false
	}
	if f.NPCInvolved != "" && !m.Involves(f.NPCInvolved) {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if m.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Importance) > 0 {
		found := false
		for _, imp := range f.Importance {
			if m.Importance == imp {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ContextText renders the significant memories followed by the most recent
// ones, one line each, for generation prompts.
func (s *Service) ContextText(ctx context.Context, characterID string) (string, error) {
	all, err := s.Query(ctx, characterID, Filter{Limit: s.limit})
	if err != nil {
		return "", err
	}
	return FormatContext(all, s.now()), nil
}

// FormatContext renders newest-first memories as prompt context.
func FormatContext(memories []Memory, now time.Time) string {
	if len(memories) == 0 {
		return ""
	}

	var b strings.Builder
	significant := 0
	for _, m := range memories {
		if !m.Importance.IsSignificant() {
			continue
		}
		if significant == 0 {
			b.WriteString("## 중요한 기억\n")
		}
		b.WriteString(formatLine(m, now))
		significant++
		if significant >= contextSignificantLimit {
			break
		}
	}

	b.WriteString("## 최근 기억\n")
	for i, m := range memories {
		if i >= contextRecentLimit {
			break
		}
		b.WriteString(formatLine(m, now))
	}
	return strings.TrimSpace(b.String())
}

func formatLine(m Memory, now time.Time) string {
	line := fmt.Sprintf("- [%s/%s] %s", m.EventType, m.Importance, m.Title)
	if m.Description != "" && m.Description != m.Title {
		line += ": " + m.Description
	}
	return line + " (" + humanize.RelTime(m.Timestamp, now, "ago", "from now") + ")\n"
}

// Stats counts a character's memories by type and tier.
func (s *Service) Stats(ctx context.Context, characterID string) (Stats, error) {
	all, err := store.QueryJSON[Memory](ctx, s.store, collectionMemories, store.Prefix(characterID))
	if err != nil {
		return Stats{}, fmt.Errorf("memory stats: %w", err)
	}
	st := Stats{
		Total:        len(all),
		ByEventType:  map[EventType]int{},
		ByImportance: map[Importance]int{},
	}
	for _, m := range all {
		st.ByEventType[m.EventType]++
		st.ByImportance[m.Importance]++
	}
	return st, nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
