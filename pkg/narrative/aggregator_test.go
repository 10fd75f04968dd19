package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/loreweaver/pkg/memory"
	"github.com/dotsetgreg/loreweaver/pkg/quest"
	"github.com/dotsetgreg/loreweaver/pkg/relationship"
	"github.com/dotsetgreg/loreweaver/pkg/reputation"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

type trackers struct {
	memories      *memory.Service
	relationships *relationship.Service
	reputations   *reputation.Service
	quests        *quest.Service
}

func newTrackers() trackers {
	s := store.NewMemoryStore()
	return trackers{
		memories:      memory.NewService(s, memory.Config{}),
		relationships: relationship.NewService(s),
		reputations:   reputation.NewService(s),
		quests:        quest.NewService(s),
	}
}

func (tr trackers) aggregator() *Aggregator {
	return NewAggregator(tr.memories, tr.relationships, tr.reputations, tr.quests)
}

func TestBuildContext_EmptyCharacter(t *testing.T) {
	c, err := newTrackers().aggregator().BuildContext(context.Background(), "c1")
	require.NoError(t, err)

	assert.Empty(t, c.AvailableBranches)
	assert.Equal(t, relationship.MoodNeutral, c.Mood)
	assert.Len(t, c.Recommendations, 4)
	assert.Equal(t, []string{"주변 사람들과 대화하기"}, c.NextSuggestedActions)
	assert.Empty(t, c.CurrentContextText)
}

func TestBuildContext_BranchesSortedByPriority(t *testing.T) {
	ctx := context.Background()
	tr := newTrackers()

	_, err := tr.memories.RecordManual(ctx, memory.RecordInput{CharacterID: "c1", EventType: memory.EventCombat, Title: "Goblin ambush"}, memory.ImportanceMajor)
	require.NoError(t, err)
	_, err = tr.memories.RecordManual(ctx, memory.RecordInput{CharacterID: "c1", EventType: memory.EventDiscovery, Title: "Hidden cave"}, memory.ImportanceModerate)
	require.NoError(t, err)

	_, err = tr.relationships.UpdateEmotion(ctx, relationship.UpdateInput{CharacterID: "c1", NPCID: "npc-bandit", NPCName: "Bandit", Deltas: map[string]int{"hostility": 40}})
	require.NoError(t, err)
	_, err = tr.relationships.UpdateEmotion(ctx, relationship.UpdateInput{CharacterID: "c1", NPCID: "npc-sister", NPCName: "Sister", Deltas: map[string]int{"love": 60}})
	require.NoError(t, err)

	_, err = tr.reputations.UpdateReputation(ctx, reputation.UpdateInput{CharacterID: "c1", FactionID: "elves", FactionName: "Elves", Delta: 450})
	require.NoError(t, err)

	q, err := tr.quests.Create(ctx, "c1", quest.Draft{Title: "Escort", Objectives: []quest.ObjectiveDraft{{ID: "a"}}})
	require.NoError(t, err)
	_, err = tr.quests.Accept(ctx, "c1", q.ID)
	require.NoError(t, err)

	c, err := tr.aggregator().BuildContext(ctx, "c1")
	require.NoError(t, err)

	var types []BranchType
	for _, b := range c.AvailableBranches {
		types = append(types, b.Type)
	}
	assert.Equal(t, []BranchType{
		BranchDiplomatic,
		BranchQuest,
		BranchCombat,
		BranchConfrontation,
		BranchPersonal,
		BranchExploration,
	}, types)

	assert.Contains(t, c.Recommendations, "적대적인 관계를 해결하거나 대비하세요")
	assert.NotContains(t, c.Recommendations, "새로운 퀘스트를 찾아보세요")
	assert.Contains(t, c.NextSuggestedActions, "Escort 퀘스트 계속하기")

	assert.Contains(t, c.CurrentContextText, "## 중요한 기억")
	assert.Contains(t, c.CurrentContextText, "## 인간관계")
	assert.Contains(t, c.CurrentContextText, "## 세력 평판")
	assert.Contains(t, c.CurrentContextText, "## 진행 중인 퀘스트")
}

type failingQuests struct{}

func (failingQuests) List(context.Context, string, ...quest.Status) ([]quest.Quest, error) {
	return nil, errors.New("quest store offline")
}

func TestBuildContext_ReadFailurePropagates(t *testing.T) {
	tr := newTrackers()
	agg := NewAggregator(tr.memories, tr.relationships, tr.reputations, failingQuests{})

	_, err := agg.BuildContext(context.Background(), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read quests")
}
