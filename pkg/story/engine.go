// Loreweaver - narrative state engine for AI-narrated roguelikes
// License: MIT
//
// Copyright (c) 2026 Loreweaver contributors

package story

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/loreweaver/pkg/bus"
	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/game"
	"github.com/dotsetgreg/loreweaver/pkg/generator"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/memory"
	"github.com/dotsetgreg/loreweaver/pkg/narrative"
	"github.com/dotsetgreg/loreweaver/pkg/relationship"
	"github.com/dotsetgreg/loreweaver/pkg/reputation"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

const (
	DefaultGuestModeLimit    = 10
	DefaultGenerationTimeout = 30 * time.Second

	discoveryDescriptionLimit = 200
	saveWaitInterval          = 10 * time.Millisecond
)

// Phase is where a character's request stands. Loading lasts while the
// generator runs; the step's result is reported as success or error on
// its Outcome and the character returns to idle.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Redirect tells the presentation layer to leave the story flow.
type Redirect string

const (
	RedirectNone    Redirect = ""
	RedirectSignup  Redirect = "signup"
	RedirectRestart Redirect = "restart"
)

type MemoryRecorder interface {
	SafeRecord(ctx context.Context, in memory.RecordInput) (memory.Memory, bool)
}

type EmotionUpdater interface {
	UpdateEmotion(ctx context.Context, in relationship.UpdateInput) (relationship.State, error)
}

type ReputationUpdater interface {
	UpdateReputation(ctx context.Context, in reputation.UpdateInput) (reputation.State, error)
}

type ContextBuilder interface {
	BuildContext(ctx context.Context, characterID string) (narrative.Context, error)
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Repository    game.Repository
	Memories      MemoryRecorder
	Relationships EmotionUpdater
	Reputations   ReputationUpdater
	Context       ContextBuilder
	Generator     generator.Generator
	Bus           *bus.EventBus
}

type Options struct {
	GuestModeLimit    int
	GenerationTimeout time.Duration
}

// NewCharacter describes the character StartNewGame creates.
type NewCharacter struct {
	Name         string
	Class        string
	IsGuest      bool
	WorldContext string
}

// Outcome is the result of an engine step.
type Outcome struct {
	Character game.Character
	State     game.State
	Event     *game.StoryEvent
	Redirect  Redirect
	Phase     Phase
}

type session struct {
	character game.Character
	state     game.State
}

// holder records who owns a character's lock.
type holder int

const (
	holderNone holder = iota
	holderPlayer
	holderSave
)

// Engine orchestrates story generation. At most one generation runs per
// character; different characters never block each other.
type Engine struct {
	deps  Deps
	opts  Options
	locks store.KeyedMutex
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]session
	phases   map[string]Phase
	holders  map[string]holder
}

func NewEngine(deps Deps, opts Options) (*Engine, error) {
	switch {
	case deps.Repository == nil:
		return nil, fmt.Errorf("story engine: repository is required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("story engine: generator is required")
	case deps.Memories == nil || deps.Relationships == nil || deps.Reputations == nil || deps.Context == nil:
		return nil, fmt.Errorf("story engine: narrative trackers are required")
	}
	if deps.Bus == nil {
		deps.Bus = bus.NewEventBus()
	}
	if opts.GuestModeLimit <= 0 {
		opts.GuestModeLimit = DefaultGuestModeLimit
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}
	return &Engine{
		deps:     deps,
		opts:     opts,
		now:      time.Now,
		sessions: map[string]session{},
		phases:   map[string]Phase{},
		holders:  map[string]holder{},
	}, nil
}

// Bus returns the event bus the engine publishes to.
func (e *Engine) Bus() *bus.EventBus { return e.deps.Bus }

// Phase reports whether a generation is running for a character.
func (e *Engine) Phase(characterID string) Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.phases[characterID]; ok {
		return p
	}
	return PhaseIdle
}

func (e *Engine) setPhase(characterID string, p Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == PhaseIdle {
		delete(e.phases, characterID)
		return
	}
	e.phases[characterID] = p
}

// acquire takes a character's lock for a player action. A running
// generation is rejected as in flight; a save holding the lock is waited
// out.
func (e *Engine) acquire(ctx context.Context, characterID string) (func(), error) {
	for {
		if unlock, ok := e.locks.TryLock(characterID); ok {
			return e.hold(characterID, holderPlayer, unlock), nil
		}
		e.mu.RLock()
		h := e.holders[characterID]
		e.mu.RUnlock()
		if h == holderPlayer {
			return nil, errInFlight(characterID)
		}
		// holderNone means the lock is changing hands.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(saveWaitInterval):
		}
	}
}

// hold registers h as the owner of a lock already taken and returns the
// release func.
func (e *Engine) hold(characterID string, h holder, unlock func()) func() {
	e.mu.Lock()
	e.holders[characterID] = h
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.holders, characterID)
		e.mu.Unlock()
		unlock()
	}
}

// StartNewGame creates a character and its game state, then generates the
// opening event.
func (e *Engine) StartNewGame(ctx context.Context, nc NewCharacter, worldID string) (Outcome, error) {
	name := strings.TrimSpace(nc.Name)
	if name == "" {
		return Outcome{}, apperrors.Validation("character name is required")
	}

	now := e.now().UTC()
	c := game.Character{
		ID:        "char-" + uuid.NewString(),
		Name:      name,
		Class:     strings.TrimSpace(nc.Class),
		WorldID:   strings.TrimSpace(worldID),
		IsGuest:   nc.IsGuest,
		Stats:     game.DefaultStats(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	st := game.State{
		CharacterID:  c.ID,
		CurrentStage: 0,
		GameStatus:   game.StatusPlaying,
		WorldContext: strings.TrimSpace(nc.WorldContext),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	unlock, err := e.acquire(ctx, c.ID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	if err := e.persist(ctx, "start_game", session{character: c, state: st}); err != nil {
		return Outcome{}, err
	}
	logger.InfoCF("story", "Game started", map[string]interface{}{
		"character_id": c.ID,
		"world_id":     c.WorldID,
		"guest":        c.IsGuest,
	})
	e.deps.Bus.Emit(bus.KindGameStarted, c.ID, map[string]any{
		"name":    c.Name,
		"class":   c.Class,
		"worldId": c.WorldID,
		"isGuest": c.IsGuest,
	})

	return e.generateLocked(ctx, c.ID, "")
}

// ProcessChoice applies the chosen option of the current event and
// generates the next one.
func (e *Engine) ProcessChoice(ctx context.Context, characterID string, choiceID int) (Outcome, error) {
	unlock, err := e.acquire(ctx, characterID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	s, err := e.load(ctx, "process_choice", characterID)
	if err != nil {
		return Outcome{}, err
	}
	if s.state.GameStatus != game.StatusPlaying {
		return Outcome{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			fmt.Sprintf("game is %s", s.state.GameStatus),
			map[string]string{"character_id": characterID})
	}
	if s.state.CurrentEvent == nil {
		return Outcome{}, apperrors.Validation("no current event to choose from")
	}
	choice, ok := s.state.CurrentEvent.FindChoice(choiceID)
	if !ok {
		return Outcome{}, apperrors.WithMetadata(apperrors.CodeValidation,
			fmt.Sprintf("choice %d is not offered by the current event", choiceID),
			map[string]string{"character_id": characterID, "event_id": s.state.CurrentEvent.ID})
	}

	if s.state.CurrentEvent.Type == game.EventGuestLimit {
		return e.handleGuestLimitChoice(ctx, s, choice)
	}

	if choice.Consequences != nil {
		s.character.Stats = game.ApplyStatsChange(s.character.Stats, choice.Consequences.StatsChange)
		e.applyChoiceSideEffects(ctx, characterID, choice)
	}

	now := e.now().UTC()
	s.character.UpdatedAt = now
	s.state.CurrentStage++
	s.state.UpdatedAt = now
	if s.character.Stats.Health == 0 {
		s.state.GameStatus = game.StatusGameOver
	}
	if err := e.persist(ctx, "process_choice", s); err != nil {
		return Outcome{}, err
	}

	e.deps.Bus.Emit(bus.KindChoiceProcessed, characterID, map[string]any{
		"choiceId":   choice.ID,
		"choiceText": choice.Text,
		"stage":      s.state.CurrentStage,
		"gameStatus": string(s.state.GameStatus),
	})

	if s.state.GameStatus != game.StatusPlaying {
		logger.InfoCF("story", "Game over", map[string]interface{}{
			"character_id": characterID,
			"stage":        s.state.CurrentStage,
		})
		return Outcome{Character: s.character, State: s.state, Event: s.state.CurrentEvent, Phase: PhaseIdle}, nil
	}
	return e.generateLocked(ctx, characterID, choice.Text)
}

func (e *Engine) handleGuestLimitChoice(ctx context.Context, s session, choice game.Choice) (Outcome, error) {
	characterID := s.character.ID
	now := e.now().UTC()

	switch choice.ID {
	case ChoiceSignup:
		s.character.IsGuest = false
		s.character.UpdatedAt = now
		if err := e.persist(ctx, "guest_signup", s); err != nil {
			return Outcome{}, err
		}
		e.deps.Bus.Emit(bus.KindGuestSignupRedirect, characterID, map[string]any{"stage": s.state.CurrentStage})
		return Outcome{Character: s.character, State: s.state, Event: s.state.CurrentEvent, Redirect: RedirectSignup, Phase: PhaseIdle}, nil
	default:
		s.state.CurrentStage = 0
		s.state.CurrentEvent = nil
		s.state.GameStatus = game.StatusPlaying
		s.state.UpdatedAt = now
		if err := e.persist(ctx, "guest_restart", s); err != nil {
			return Outcome{}, err
		}
		e.deps.Bus.Emit(bus.KindGuestRestart, characterID, nil)
		return Outcome{Character: s.character, State: s.state, Redirect: RedirectRestart, Phase: PhaseIdle}, nil
	}
}

// GenerateNextStory produces the next event for a character without
// applying a choice.
func (e *Engine) GenerateNextStory(ctx context.Context, characterID, userChoice string) (Outcome, error) {
	unlock, err := e.acquire(ctx, characterID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()
	return e.generateLocked(ctx, characterID, userChoice)
}

// generateLocked requires the caller to hold the character's lock.
func (e *Engine) generateLocked(ctx context.Context, characterID, userChoice string) (Outcome, error) {
	s, err := e.load(ctx, "generate", characterID)
	if err != nil {
		return Outcome{}, err
	}
	e.setPhase(characterID, PhaseLoading)
	defer e.setPhase(characterID, PhaseIdle)

	var (
		event game.StoryEvent
		kind  bus.Kind
		phase Phase
	)
	prev := s
	if s.character.IsGuest && s.state.CurrentStage >= e.opts.GuestModeLimit {
		event = GuestLimitEvent(characterID, s.state.CurrentStage, e.opts.GuestModeLimit, e.now().UTC())
		kind, phase = bus.KindStoryGenerated, PhaseSuccess
	} else {
		s.state.WaitingForAPI = true
		e.cache(s)
		event, kind, phase = e.generate(ctx, s, userChoice)
	}

	s.state.CurrentEvent = &event
	s.state.WaitingForAPI = false
	s.state.UpdatedAt = e.now().UTC()
	if err := e.persist(ctx, "generate", s); err != nil {
		// Keep the last stored session so a later save does not write
		// the in-progress flag.
		e.cache(prev)
		return Outcome{}, err
	}

	e.deps.Bus.Emit(kind, characterID, map[string]any{
		"eventId": event.ID,
		"type":    string(event.Type),
		"title":   event.Title,
		"stage":   event.Stage,
	})
	return Outcome{Character: s.character, State: s.state, Event: s.state.CurrentEvent, Phase: phase}, nil
}

// generate calls the generator under the configured timeout and falls back
// to the canned event on any failure.
func (e *Engine) generate(ctx context.Context, s session, userChoice string) (game.StoryEvent, bus.Kind, Phase) {
	characterID := s.character.ID

	nctx, err := e.deps.Context.BuildContext(ctx, characterID)
	if err != nil {
		logger.WarnCF("story", "Narrative context unavailable, generating without it", map[string]interface{}{
			"character_id": characterID,
			"error":        err.Error(),
		})
		nctx = narrative.Context{CharacterID: characterID}
	}

	genCtx, cancel := context.WithTimeout(ctx, e.opts.GenerationTimeout)
	defer cancel()
	payload, err := e.deps.Generator.Generate(genCtx, generator.Request{
		Character:  s.character,
		State:      s.state,
		UserChoice: userChoice,
		Context:    nctx,
	})
	if err == nil && genCtx.Err() != nil {
		err = genCtx.Err()
	}
	if err == nil {
		payload, err = generator.Normalize(payload)
	}
	if err != nil {
		logger.WarnCF("story", "Story generation failed, using fallback event", map[string]interface{}{
			"character_id": characterID,
			"stage":        s.state.CurrentStage,
			"timeout":      errors.Is(err, context.DeadlineExceeded),
			"error":        err.Error(),
		})
		return FallbackEvent(characterID, s.state.CurrentStage, e.now().UTC()), bus.KindStoryFallback, PhaseError
	}

	event := game.StoryEvent{
		ID:        "event-" + uuid.NewString(),
		Type:      payload.Type,
		Title:     payload.Title,
		Content:   payload.Content,
		Choices:   payload.Choices,
		Stage:     s.state.CurrentStage,
		Metadata:  payload.Metadata,
		CreatedAt: e.now().UTC(),
	}
	e.applyNarrativeSideEffects(ctx, characterID, event)
	return event, bus.KindStoryGenerated, PhaseSuccess
}

// applyNarrativeSideEffects records what a freshly generated event reveals.
// Failures are logged and never affect the event.
func (e *Engine) applyNarrativeSideEffects(ctx context.Context, characterID string, event game.StoryEvent) {
	content := strings.TrimSpace(event.Content)
	if content == "" {
		return
	}
	e.deps.Memories.SafeRecord(ctx, memory.RecordInput{
		CharacterID: characterID,
		EventType:   memory.EventDiscovery,
		Title:       event.Title,
		Description: truncateRunes(content, discoveryDescriptionLimit),
		Tags:        []string{string(event.Type), fmt.Sprintf("stage-%d", event.Stage)},
	})
}

// applyChoiceSideEffects pushes a choice's reputation, emotion and memory
// consequences to the trackers. Each failure is logged and skipped.
func (e *Engine) applyChoiceSideEffects(ctx context.Context, characterID string, choice game.Choice) {
	cons := choice.Consequences
	for _, rc := range cons.ReputationChanges {
		_, err := e.deps.Reputations.UpdateReputation(ctx, reputation.UpdateInput{
			CharacterID: characterID,
			FactionID:   rc.FactionID,
			FactionName: rc.FactionName,
			EventType:   "choice",
			Delta:       rc.Delta,
			Description: valueOr(rc.Description, choice.Text),
		})
		if err != nil {
			logSideEffectFailure(characterID, "reputation", err)
		}
	}
	for _, ec := range cons.EmotionChanges {
		_, err := e.deps.Relationships.UpdateEmotion(ctx, relationship.UpdateInput{
			CharacterID: characterID,
			NPCID:       ec.NPCID,
			NPCName:     ec.NPCName,
			EventType:   "choice",
			Deltas:      ec.Deltas,
			Description: valueOr(ec.Description, choice.Text),
		})
		if err != nil {
			logSideEffectFailure(characterID, "relationship", err)
		}
	}
	if hint := cons.Memory; hint != nil {
		e.deps.Memories.SafeRecord(ctx, memory.RecordInput{
			CharacterID: characterID,
			EventType:   memory.EventType(hint.EventType),
			Title:       valueOr(hint.Title, choice.Text),
			Description: choice.Text,
			Tags:        hint.Tags,
		})
	}
}

func logSideEffectFailure(characterID, tracker string, err error) {
	logger.WarnCF("story", "Choice side effect failed", map[string]interface{}{
		"character_id": characterID,
		"tracker":      tracker,
		"code":         string(apperrors.CodeSideEffect),
		"error":        err.Error(),
	})
}

// SaveAll persists every session the engine has touched. Each save waits
// for the character's in-flight generation to finish.
func (e *Engine) SaveAll(ctx context.Context) (int, error) {
	e.mu.RLock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Strings(ids)

	saved := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.saveOne(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func (e *Engine) saveOne(ctx context.Context, characterID string) error {
	unlock := e.hold(characterID, holderSave, e.locks.Lock(characterID))
	defer unlock()

	e.mu.RLock()
	s, ok := e.sessions[characterID]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	s.state.UpdatedAt = e.now().UTC()
	if err := e.persist(ctx, "autosave", s); err != nil {
		return err
	}
	e.deps.Bus.Emit(bus.KindGameSaved, characterID, map[string]any{"stage": s.state.CurrentStage})
	return nil
}

// Session returns the current character and game state.
func (e *Engine) Session(ctx context.Context, characterID string) (game.Character, game.State, error) {
	s, err := e.load(ctx, "session", characterID)
	if err != nil {
		return game.Character{}, game.State{}, err
	}
	return s.character, s.state, nil
}

func (e *Engine) load(ctx context.Context, op, characterID string) (session, error) {
	e.mu.RLock()
	s, ok := e.sessions[characterID]
	e.mu.RUnlock()
	if ok {
		return s, nil
	}

	c, err := e.deps.Repository.GetCharacter(ctx, characterID)
	if err != nil {
		return session{}, e.storageFailure(characterID, op, err)
	}
	st, err := e.deps.Repository.GetGameState(ctx, characterID)
	if err != nil {
		return session{}, e.storageFailure(characterID, op, err)
	}
	s = session{character: c, state: st}
	e.cache(s)
	return s, nil
}

func (e *Engine) persist(ctx context.Context, op string, s session) error {
	if err := e.deps.Repository.PutCharacter(ctx, s.character); err != nil {
		return e.storageFailure(s.character.ID, op, err)
	}
	if err := e.deps.Repository.PutGameState(ctx, s.state); err != nil {
		return e.storageFailure(s.character.ID, op, err)
	}
	e.cache(s)
	return nil
}

func (e *Engine) cache(s session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[s.character.ID] = s
}

// storageFailure passes validation-class errors through and reports
// anything else on the bus as engine:error.
func (e *Engine) storageFailure(characterID, op string, err error) error {
	if apperrors.IsValidation(err) {
		return err
	}
	logger.ErrorCF("story", "Persistence failure", map[string]interface{}{
		"character_id": characterID,
		"op":           op,
		"error":        err.Error(),
	})
	e.deps.Bus.Emit(bus.KindEngineError, characterID, map[string]any{
		"op":    op,
		"error": err.Error(),
	})
	return fmt.Errorf("%s: %w", op, err)
}

func errInFlight(characterID string) error {
	return apperrors.WithMetadata(apperrors.CodeGenerationInFlight,
		"a story generation is already in progress for this character",
		map[string]string{"character_id": characterID})
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
