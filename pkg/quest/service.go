package quest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

const collectionQuests = "quests"

type Service struct {
	store store.Store
	locks store.KeyedMutex
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Create registers a new available quest for a character.
func (s *Service) Create(ctx context.Context, characterID string, d Draft) (Quest, error) {
	if strings.TrimSpace(characterID) == "" {
		return Quest{}, apperrors.Validation("quest character id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return Quest{}, apperrors.Validation("quest title is required")
	}
	if d.Difficulty == "" {
		d.Difficulty = DifficultyModerate
	}
	if !validDifficulty(d.Difficulty) {
		return Quest{}, apperrors.Validation(fmt.Sprintf("unknown quest difficulty %q", d.Difficulty))
	}
	if d.TimeLimit < 0 {
		return Quest{}, apperrors.Validation("quest time limit must not be negative")
	}

	q := Quest{
		ID:            "quest-" + uuid.NewString(),
		CharacterID:   characterID,
		Title:         strings.TrimSpace(d.Title),
		Description:   d.Description,
		Type:          d.Type,
		Difficulty:    d.Difficulty,
		Status:        StatusAvailable,
		Objectives:    make([]Objective, 0, len(d.Objectives)),
		Rewards:       d.Rewards,
		Prerequisites: d.Prerequisites,
		TimeLimit:     d.TimeLimit,
		CreatedAt:     s.now().UTC(),
	}
	for i, od := range d.Objectives {
		id := od.ID
		if id == "" {
			id = fmt.Sprintf("obj-%d", i+1)
		}
		q.Objectives = append(q.Objectives, Objective{
			ID:          id,
			Description: od.Description,
			Type:        od.Type,
			Target:      od.Target,
			Quantity:    od.Quantity,
			IsOptional:  od.IsOptional,
		})
	}

	if err := s.put(ctx, q); err != nil {
		return Quest{}, err
	}
	logger.InfoCF("quest", "Quest created", map[string]interface{}{
		"character_id": characterID,
		"quest_id":     q.ID,
		"title":        q.Title,
	})
	return q, nil
}

// Accept moves an available quest to active once its prerequisites are
// completed.
func (s *Service) Accept(ctx context.Context, characterID, questID string) (Quest, error) {
	return s.mutate(ctx, characterID, questID, func(q *Quest) error {
		if q.Status != StatusAvailable {
			return invalidTransition(q, StatusActive)
		}
		for _, pre := range q.Prerequisites {
			dep, err := s.Get(ctx, characterID, pre)
			if err != nil {
				return err
			}
			if dep.Status != StatusCompleted {
				return apperrors.WithMetadata(apperrors.CodeValidation,
					fmt.Sprintf("prerequisite %s is not completed", pre),
					map[string]string{"quest_id": q.ID, "prerequisite": pre})
			}
		}
		now := s.now().UTC()
		q.Status = StatusActive
		q.AcceptedAt = &now
		return nil
	})
}

// UpdateProgress sets an objective's progress. Reaching 100 completes the
// objective; an active quest whose required objectives are all done
// completes exactly once.
func (s *Service) UpdateProgress(ctx context.Context, characterID, questID, objectiveID string, progress int) (Quest, error) {
	return s.mutate(ctx, characterID, questID, func(q *Quest) error {
		if q.Status.Terminal() {
			return invalidTransition(q, q.Status)
		}
		idx := -1
		for i := range q.Objectives {
			if q.Objectives[i].ID == objectiveID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.NotFound("objective", objectiveID)
		}

		obj := &q.Objectives[idx]
		obj.CurrentProgress = clampProgress(progress)
		if obj.CurrentProgress >= 100 {
			obj.IsCompleted = true
		}

		if q.Status == StatusActive && q.objectivesDone() && q.CompletedAt == nil {
			now := s.now().UTC()
			q.Status = StatusCompleted
			q.CompletedAt = &now
			logger.InfoCF("quest", "Quest completed", map[string]interface{}{
				"character_id": characterID,
				"quest_id":     q.ID,
			})
		}
		return nil
	})
}

// Fail moves an active quest to failed.
func (s *Service) Fail(ctx context.Context, characterID, questID string) (Quest, error) {
	return s.mutate(ctx, characterID, questID, func(q *Quest) error {
		if q.Status != StatusActive {
			return invalidTransition(q, StatusFailed)
		}
		q.Status = StatusFailed
		return nil
	})
}

// ExpireOverdue fails every active quest whose time limit has passed and
// returns the ones it failed.
func (s *Service) ExpireOverdue(ctx context.Context, characterID string, now time.Time) ([]Quest, error) {
	active, err := s.List(ctx, characterID, StatusActive)
	if err != nil {
		return nil, err
	}
	var expired []Quest
	for _, q := range active {
		if !q.Overdue(now) {
			continue
		}
		failed, err := s.Fail(ctx, characterID, q.ID)
		if apperrors.CodeOf(err) == apperrors.CodeInvalidTransition {
			// Completed or failed since the list was read.
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, failed)
	}
	return expired, nil
}

func (s *Service) Get(ctx context.Context, characterID, questID string) (Quest, error) {
	q, err := store.GetJSON[Quest](ctx, s.store, collectionQuests, store.Key(characterID, questID))
	if errors.Is(err, store.ErrNotFound) {
		return Quest{}, apperrors.NotFound("quest", questID)
	}
	if err != nil {
		return Quest{}, fmt.Errorf("get quest: %w", err)
	}
	return q, nil
}

// List returns a character's quests, optionally restricted to some
// statuses, ordered by creation time.
func (s *Service) List(ctx context.Context, characterID string, statuses ...Status) ([]Quest, error) {
	all, err := store.QueryJSON[Quest](ctx, s.store, collectionQuests, store.Prefix(characterID))
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	out := make([]Quest, 0, len(all))
	for _, q := range all {
		if len(statuses) == 0 || hasStatus(statuses, q.Status) {
			out = append(out, q)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *Service) Summarize(ctx context.Context, characterID string) (Summary, error) {
	all, err := s.List(ctx, characterID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(all), nil
}

// Summarize counts quests by status and lists active ones with progress.
func Summarize(quests []Quest) Summary {
	var sum Summary
	for _, q := range quests {
		switch q.Status {
		case StatusActive:
			sum.Active = append(sum.Active, ActiveLine{ID: q.ID, Title: q.Title, Progress: q.Progress()})
		case StatusAvailable:
			sum.Available++
		case StatusCompleted:
			sum.Completed++
		case StatusFailed:
			sum.Failed++
		}
	}
	return sum
}

// mutate runs fn under the quest's lock and persists the result only when
// fn succeeds.
func (s *Service) mutate(ctx context.Context, characterID, questID string, fn func(*Quest) error) (Quest, error) {
	unlock := s.locks.Lock(store.Key(characterID, questID))
	defer unlock()

	q, err := s.Get(ctx, characterID, questID)
	if err != nil {
		return Quest{}, err
	}
	if err := fn(&q); err != nil {
		return Quest{}, err
	}
	if err := s.put(ctx, q); err != nil {
		return Quest{}, err
	}
	return q, nil
}

func (s *Service) put(ctx context.Context, q Quest) error {
	if err := store.PutJSON(ctx, s.store, collectionQuests, store.Key(q.CharacterID, q.ID), q); err != nil {
		return fmt.Errorf("save quest: %w", err)
	}
	return nil
}

func invalidTransition(q *Quest, to Status) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
		fmt.Sprintf("quest %s cannot move from %s to %s", q.ID, q.Status, to),
		map[string]string{"quest_id": q.ID, "from": string(q.Status), "to": string(to)})
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func hasStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortByCreated(qs []Quest) {
	sort.SliceStable(qs, func(i, j int) bool {
		return qs[i].CreatedAt.Before(qs[j].CreatedAt)
	})
}
