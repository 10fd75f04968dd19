package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotsetgreg/loreweaver/pkg/autosave"
	"github.com/dotsetgreg/loreweaver/pkg/config"
	"github.com/dotsetgreg/loreweaver/pkg/game"
	"github.com/dotsetgreg/loreweaver/pkg/generator"
	"github.com/dotsetgreg/loreweaver/pkg/memory"
	"github.com/dotsetgreg/loreweaver/pkg/narrative"
	"github.com/dotsetgreg/loreweaver/pkg/providers"
	"github.com/dotsetgreg/loreweaver/pkg/quest"
	"github.com/dotsetgreg/loreweaver/pkg/relationship"
	"github.com/dotsetgreg/loreweaver/pkg/reputation"
	"github.com/dotsetgreg/loreweaver/pkg/store"
	"github.com/dotsetgreg/loreweaver/pkg/story"
)

// appRuntime holds the trackers every command reads from. The story engine
// is only built for commands that generate.
type appRuntime struct {
	cfg           *config.Config
	store         store.Store
	repo          *game.StoreRepository
	memories      *memory.Service
	relationships *relationship.Service
	reputations   *reputation.Service
	quests        *quest.Service
	aggregator    *narrative.Aggregator
}

type runtimeOpener func() (*appRuntime, error)

func openDefaultRuntime() (*appRuntime, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dbPath := cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath, cfg.Storage.CacheSize)
	if err != nil {
		return nil, err
	}
	return newRuntime(cfg, s), nil
}

func newRuntime(cfg *config.Config, s store.Store) *appRuntime {
	memories := memory.NewService(s, memory.Config{
		ImportanceThreshold: cfg.Engine.MemoryImportanceThreshold,
		QueryLimit:          cfg.Engine.MemoryQueryLimit,
	})
	rt := &appRuntime{
		cfg:           cfg,
		store:         s,
		repo:          game.NewStoreRepository(s),
		memories:      memories,
		relationships: relationship.NewService(s),
		reputations:   reputation.NewService(s),
		quests:        quest.NewService(s),
	}
	rt.aggregator = narrative.NewAggregator(rt.memories, rt.relationships, rt.reputations, rt.quests)
	return rt
}

func (rt *appRuntime) Close() error {
	return rt.store.Close()
}

// buildEngine wires the configured provider into a story engine.
func (rt *appRuntime) buildEngine(gen generator.Generator) (*story.Engine, error) {
	if gen == nil {
		if err := providers.ValidateProviderConfig(rt.cfg); err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
		provider, err := providers.CreateProvider(rt.cfg)
		if err != nil {
			return nil, fmt.Errorf("create provider: %w", err)
		}
		gen = generator.NewLLMGenerator(provider, generator.LLMOptions{
			Model:       rt.cfg.Generator.Model,
			MaxTokens:   rt.cfg.Generator.MaxTokens,
			Temperature: rt.cfg.Generator.Temperature,
		})
	}

	return story.NewEngine(story.Deps{
		Repository:    rt.repo,
		Memories:      rt.memories,
		Relationships: rt.relationships,
		Reputations:   rt.reputations,
		Context:       rt.aggregator,
		Generator:     gen,
	}, story.Options{
		GuestModeLimit:    rt.cfg.Engine.GuestModeLimit,
		GenerationTimeout: rt.cfg.GenerationTimeout(),
	})
}

// startAutoSave returns nil when auto-save is disabled.
func (rt *appRuntime) startAutoSave(engine *story.Engine) (*autosave.Scheduler, error) {
	if !rt.cfg.AutoSave.Enabled {
		return nil, nil
	}
	sched, err := autosave.New(engine, rt.cfg.AutoSave.Schedule)
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}
