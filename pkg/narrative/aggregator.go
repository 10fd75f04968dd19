// Package narrative assembles the tracker state a generation request needs
// into one context value.
package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotsetgreg/loreweaver/pkg/memory"
	"github.com/dotsetgreg/loreweaver/pkg/quest"
	"github.com/dotsetgreg/loreweaver/pkg/relationship"
	"github.com/dotsetgreg/loreweaver/pkg/reputation"
)

const defaultMemoryLimit = 20

type MemoryReader interface {
	Query(ctx context.Context, characterID string, f memory.Filter) ([]memory.Memory, error)
}

type RelationshipReader interface {
	List(ctx context.Context, characterID string) ([]relationship.State, error)
}

type ReputationReader interface {
	List(ctx context.Context, characterID string) ([]reputation.State, error)
}

type QuestReader interface {
	List(ctx context.Context, characterID string, statuses ...quest.Status) ([]quest.Quest, error)
}

// BranchType names a story direction the generator may take.
type BranchType string

const (
	BranchDiplomatic    BranchType = "diplomatic"
	BranchQuest         BranchType = "quest"
	BranchCombat        BranchType = "combat"
	BranchConfrontation BranchType = "confrontation"
	BranchPersonal      BranchType = "personal"
	BranchExploration   BranchType = "exploration"
)

// Branch is one candidate story direction.
type Branch struct {
	Type        BranchType `json:"type"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Source      string     `json:"source,omitempty"`
}

// Context is the aggregated narrative state for one character.
type Context struct {
	CharacterID          string               `json:"characterId"`
	Memories             []memory.Memory      `json:"memories"`
	Relationships        []relationship.State `json:"relationships"`
	Reputations          []reputation.State   `json:"reputations"`
	Quests               []quest.Quest        `json:"quests"`
	CurrentContextText   string               `json:"currentContextText"`
	Mood                 relationship.Mood    `json:"mood"`
	Recommendations      []string             `json:"recommendations"`
	NextSuggestedActions []string             `json:"nextSuggestedActions"`
	AvailableBranches    []Branch             `json:"availableBranches"`
}

// ActiveQuests returns the quests currently in progress.
func (c Context) ActiveQuests() []quest.Quest {
	var out []quest.Quest
	for _, q := range c.Quests {
		if q.Status == quest.StatusActive {
			out = append(out, q)
		}
	}
	return out
}

// Aggregator reads the four trackers and derives branches and advice.
type Aggregator struct {
	memories      MemoryReader
	relationships RelationshipReader
	reputations   ReputationReader
	quests        QuestReader
	memoryLimit   int
	now           func() time.Time
}

func NewAggregator(m MemoryReader, rel RelationshipReader, rep ReputationReader, q QuestReader) *Aggregator {
	return &Aggregator{
		memories:      m,
		relationships: rel,
		reputations:   rep,
		quests:        q,
		memoryLimit:   defaultMemoryLimit,
		now:           time.Now,
	}
}

// BuildContext reads every tracker concurrently. Any read failure fails
// the whole build.
func (a *Aggregator) BuildContext(ctx context.Context, characterID string) (Context, error) {
	out := Context{CharacterID: characterID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := a.memories.Query(gctx, characterID, memory.Filter{Limit: a.memoryLimit})
		if err != nil {
			return fmt.Errorf("read memories: %w", err)
		}
		out.Memories = ms
		return nil
	})
	g.Go(func() error {
		rs, err := a.relationships.List(gctx, characterID)
		if err != nil {
			return fmt.Errorf("read relationships: %w", err)
		}
		out.Relationships = rs
		return nil
	})
	g.Go(func() error {
		rs, err := a.reputations.List(gctx, characterID)
		if err != nil {
			return fmt.Errorf("read reputations: %w", err)
		}
		out.Reputations = rs
		return nil
	})
	g.Go(func() error {
		qs, err := a.quests.List(gctx, characterID, quest.StatusActive, quest.StatusAvailable)
		if err != nil {
			return fmt.Errorf("read quests: %w", err)
		}
		out.Quests = qs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Context{}, err
	}

	out.Mood = relationship.OverallMood(out.Relationships)
	out.AvailableBranches = Branches(out)
	out.Recommendations = Recommendations(out)
	out.NextSuggestedActions = NextActions(out)
	out.CurrentContextText = a.render(out)
	return out, nil
}

// Branches derives candidate directions, highest priority first.
func Branches(c Context) []Branch {
	var out []Branch

	for _, st := range c.Reputations {
		if st.IsKnown && st.ReputationLevel.AtLeast(reputation.LevelHonored) {
			out = append(out, Branch{
				Type:        BranchDiplomatic,
				Description: fmt.Sprintf("%s의 신뢰를 바탕으로 한 외교적 기회", st.FactionName),
				Priority:    90,
				Source:      st.FactionID,
			})
		}
	}
	for _, q := range c.ActiveQuests() {
		out = append(out, Branch{
			Type:        BranchQuest,
			Description: fmt.Sprintf("퀘스트 진행: %s (%d%%)", q.Title, q.Progress()),
			Priority:    85,
			Source:      q.ID,
		})
	}
	if m, ok := firstMemory(c.Memories, func(m memory.Memory) bool {
		return m.EventType == memory.EventCombat && m.Importance.IsSignificant()
	}); ok {
		out = append(out, Branch{
			Type:        BranchCombat,
			Description: fmt.Sprintf("이전 전투의 여파: %s", m.Title),
			Priority:    80,
			Source:      m.ID,
		})
	}
	for _, st := range c.Relationships {
		if st.Value(relationship.Hostility) > 30 {
			out = append(out, Branch{
				Type:        BranchConfrontation,
				Description: fmt.Sprintf("%s와의 대립", st.NPCName),
				Priority:    75,
				Source:      st.NPCID,
			})
		}
	}
	for _, st := range c.Relationships {
		if st.Value(relationship.Love) > 50 || st.Value(relationship.Trust) > 30 {
			out = append(out, Branch{
				Type:        BranchPersonal,
				Description: fmt.Sprintf("%s와의 개인적인 이야기", st.NPCName),
				Priority:    70,
				Source:      st.NPCID,
			})
		}
	}
	if m, ok := firstMemory(c.Memories, func(m memory.Memory) bool {
		return m.EventType == memory.EventDiscovery
	}); ok {
		out = append(out, Branch{
			Type:        BranchExploration,
			Description: fmt.Sprintf("발견의 단서를 따라가기: %s", m.Title),
			Priority:    60,
			Source:      m.ID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Recommendations advises on thin or risky narrative state.
func Recommendations(c Context) []string {
	var out []string
	if len(c.Memories) < 3 {
		out = append(out, "더 많은 경험을 쌓아 캐릭터의 이야기를 풍부하게 만드세요")
	}
	if len(c.Relationships) == 0 {
		out = append(out, "NPC와 대화하여 관계를 형성하세요")
	}
	if len(c.Reputations) == 0 {
		out = append(out, "세력과 교류하여 명성을 쌓으세요")
	}
	if len(c.ActiveQuests()) == 0 {
		out = append(out, "새로운 퀘스트를 찾아보세요")
	}
	if hostileCount(c.Relationships) > 0 {
		out = append(out, "적대적인 관계를 해결하거나 대비하세요")
	}
	return out
}

// NextActions suggests concrete next moves for the player.
func NextActions(c Context) []string {
	var out []string
	for _, q := range c.ActiveQuests() {
		out = append(out, fmt.Sprintf("%s 퀘스트 계속하기", q.Title))
	}
	for _, q := range c.Quests {
		if q.Status == quest.StatusAvailable {
			out = append(out, fmt.Sprintf("%s 퀘스트 수락하기", q.Title))
			break
		}
	}
	if len(c.Relationships) == 0 {
		out = append(out, "주변 사람들과 대화하기")
	}
	if hostileCount(c.Relationships) > 0 {
		out = append(out, "적대적인 인물에 대비하기")
	}
	if len(out) == 0 {
		out = append(out, "주변 탐험하기")
	}
	return out
}

func (a *Aggregator) render(c Context) string {
	var sections []string

	if text := memory.FormatContext(c.Memories, a.now()); text != "" {
		sections = append(sections, text)
	}

	if len(c.Relationships) > 0 {
		var b strings.Builder
		b.WriteString("## 인간관계\n")
		for _, line := range relationship.Summarize(c.Relationships).Relationships {
			b.WriteString("- " + line.Summary + "\n")
		}
		sections = append(sections, strings.TrimSpace(b.String()))
	}

	if sum := reputation.Summarize(c.Reputations); len(sum.Standings) > 0 {
		var b strings.Builder
		b.WriteString("## 세력 평판\n")
		for _, st := range sum.Standings {
			fmt.Fprintf(&b, "- %s: %s (%d, %s)\n", st.FactionName, st.Standing, st.Reputation, st.Trend)
		}
		sections = append(sections, strings.TrimSpace(b.String()))
	}

	if active := c.ActiveQuests(); len(active) > 0 {
		var b strings.Builder
		b.WriteString("## 진행 중인 퀘스트\n")
		for _, q := range active {
			fmt.Fprintf(&b, "- %s (%d%%)\n", q.Title, q.Progress())
		}
		sections = append(sections, strings.TrimSpace(b.String()))
	}

	return strings.Join(sections, "\n\n")
}

func firstMemory(ms []memory.Memory, pred func(memory.Memory) bool) (memory.Memory, bool) {
	for _, m := range ms {
		if pred(m) {
			return m, true
		}
	}
	return memory.Memory{}, false
}

func hostileCount(states []relationship.State) int {
	n := 0
	for _, st := range states {
		if st.Value(relationship.Hostility) > 30 {
			n++
		}
	}
	return n
}
