package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/loreweaver/pkg/config"
	"github.com/dotsetgreg/loreweaver/pkg/game"
	"github.com/dotsetgreg/loreweaver/pkg/generator"
	"github.com/dotsetgreg/loreweaver/pkg/memory"
	"github.com/dotsetgreg/loreweaver/pkg/store"
	"github.com/dotsetgreg/loreweaver/pkg/story"
)

// sharedStore survives the Close each command performs.
type sharedStore struct {
	store.Store
}

func (sharedStore) Close() error { return nil }

func testRuntime(t *testing.T) (*appRuntime, runtimeOpener) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AutoSave.Enabled = false
	rt := newRuntime(cfg, sharedStore{store.NewMemoryStore()})
	return rt, func() (*appRuntime, error) { return rt, nil }
}

func runRootCommandForTest(open runtimeOpener, args ...string) (string, error) {
	root := buildRootCommand(open)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootHelp_ListsCommands(t *testing.T) {
	_, open := testRuntime(t)

	out, err := runRootCommandForTest(open, "--help")
	require.NoError(t, err)
	for _, name := range []string{"play", "characters", "memories", "relationships", "reputation", "quests", "context", "status", "version"} {
		assert.Contains(t, out, name)
	}

	_, err = runRootCommandForTest(open)
	assert.EqualError(t, err, "a subcommand is required")
}

func TestQuestCommands_Lifecycle(t *testing.T) {
	_, open := testRuntime(t)

	out, err := runRootCommandForTest(open, "quests", "add", "char-1", "--title", "잃어버린 검", "--objective", "동굴 탐색")
	require.NoError(t, err)
	questID := strings.Fields(out)[0]
	require.True(t, strings.HasPrefix(questID, "quest-"), out)
	assert.Contains(t, out, "[available, moderate] 0%")
	assert.Contains(t, out, "obj-1 동굴 탐색")

	out, err = runRootCommandForTest(open, "quests", "progress", "char-1", questID, "obj-1", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "available", "available quests record progress without completing")

	out, err = runRootCommandForTest(open, "quests", "accept", "char-1", questID)
	require.NoError(t, err)
	assert.Contains(t, out, "[active, moderate]")

	out, err = runRootCommandForTest(open, "quests", "progress", "char-1", questID, "obj-1", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "[completed, moderate] 100%")

	out, err = runRootCommandForTest(open, "quests", "char-1")
	require.NoError(t, err)
	assert.Contains(t, out, "0 active, 0 available, 1 completed, 0 failed")

	_, err = runRootCommandForTest(open, "quests", "progress", "char-1", questID, "obj-1", "lots")
	assert.Error(t, err)
	_, err = runRootCommandForTest(open, "quests", "fail", "char-1", questID)
	assert.Error(t, err, "completed quests cannot fail")
}

func TestMemoriesCommand_FiltersByType(t *testing.T) {
	rt, open := testRuntime(t)
	ctx := context.Background()

	_, err := rt.memories.RecordManual(ctx, memory.RecordInput{
		CharacterID: "char-1", EventType: memory.EventCombat, Title: "고블린 격퇴", Description: "숲에서 고블린을 물리쳤다",
	}, memory.ImportanceMajor)
	require.NoError(t, err)
	_, err = rt.memories.RecordManual(ctx, memory.RecordInput{
		CharacterID: "char-1", EventType: memory.EventDialogue, Title: "상인과 대화",
	}, memory.ImportanceMinor)
	require.NoError(t, err)

	out, err := runRootCommandForTest(open, "memories", "char-1", "--type", "combat")
	require.NoError(t, err)
	assert.Contains(t, out, "Memories: 2 total")
	assert.Contains(t, out, "[combat/major] 고블린 격퇴: 숲에서 고블린을 물리쳤다")
	assert.NotContains(t, out, "상인과 대화")

	_, err = runRootCommandForTest(open, "memories")
	assert.Error(t, err)
}

func TestCharactersCommand(t *testing.T) {
	rt, open := testRuntime(t)

	out, err := runRootCommandForTest(open, "characters")
	require.NoError(t, err)
	assert.Contains(t, out, "No characters yet")

	require.NoError(t, rt.repo.PutCharacter(context.Background(), game.Character{ID: "char-1", Name: "Ari", Class: "warrior", IsGuest: true}))
	out, err = runRootCommandForTest(open, "characters")
	require.NoError(t, err)
	assert.Contains(t, out, "char-1  Ari (warrior) [guest]")
}

func TestPlaySession_HandlesInput(t *testing.T) {
	rt, _ := testRuntime(t)
	ctx := context.Background()

	engine, err := rt.buildEngine(generator.Func(func(_ context.Context, req generator.Request) (generator.Payload, error) {
		return generator.Payload{
			Type:    game.EventStory,
			Title:   "갈림길",
			Content: "두 갈래 길이 나타났다",
			Choices: []game.Choice{{ID: 1, Text: "왼쪽"}, {ID: 2, Text: "오른쪽"}},
		}, nil
	}))
	require.NoError(t, err)

	start, err := engine.StartNewGame(ctx, story.NewCharacter{Name: "Ari", Class: "warrior"}, "world-1")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	p := &playSession{engine: engine, characterID: start.Character.ID, out: buf}

	assert.False(t, p.handle(ctx, "1"))
	assert.Contains(t, buf.String(), "[Stage 1] 갈림길")
	assert.Contains(t, buf.String(), "  2) 오른쪽")

	buf.Reset()
	assert.False(t, p.handle(ctx, "7"))
	assert.Contains(t, buf.String(), "choice 7 is not offered")

	buf.Reset()
	assert.False(t, p.handle(ctx, "stats"))
	assert.Contains(t, buf.String(), "HP 100/100")
	assert.Contains(t, buf.String(), "stage 1 (playing)")

	buf.Reset()
	assert.False(t, p.handle(ctx, "save"))
	assert.Contains(t, buf.String(), "Saved 1 game(s).")

	buf.Reset()
	assert.False(t, p.handle(ctx, "dance"))
	assert.Contains(t, buf.String(), "Enter a choice number")

	assert.True(t, p.handle(ctx, "quit"))
}

func TestStatusCommand_ReportsConfiguration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOREWEAVER_CONFIG", filepath.Join(dir, "config.json"))
	t.Setenv("LOREWEAVER_STORAGE_WORKSPACE", dir)

	out, err := runRootCommandForTest(nil, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "loreweaver Status")
	assert.Contains(t, out, "Provider: openrouter")
	assert.Contains(t, out, "not initialized")
	assert.Contains(t, out, "Auto-save: @5minutes")
}
