package game

import (
	"context"
	"errors"
	"sort"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

const (
	collectionCharacters = "characters"
	collectionGameStates = "game_states"
)

// Repository is the persistence collaborator for characters and game state.
type Repository interface {
	GetCharacter(ctx context.Context, id string) (Character, error)
	PutCharacter(ctx context.Context, c Character) error
	GetGameState(ctx context.Context, characterID string) (State, error)
	PutGameState(ctx context.Context, s State) error
}

// StoreRepository implements Repository on top of a store.Store.
type StoreRepository struct {
	store store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) GetCharacter(ctx context.Context, id string) (Character, error) {
	c, err := store.GetJSON[Character](ctx, r.store, collectionCharacters, id)
	if errors.Is(err, store.ErrNotFound) {
		return Character{}, apperrors.NotFound("character", id)
	}
	return c, err
}

func (r *StoreRepository) PutCharacter(ctx context.Context, c Character) error {
	if c.ID == "" {
		return apperrors.Validation("character id is required")
	}
	return store.PutJSON(ctx, r.store, collectionCharacters, c.ID, c)
}

func (r *StoreRepository) GetGameState(ctx context.Context, characterID string) (State, error) {
	s, err := store.GetJSON[State](ctx, r.store, collectionGameStates, characterID)
	if errors.Is(err, store.ErrNotFound) {
		return State{}, apperrors.NotFound("game state", characterID)
	}
	return s, err
}

func (r *StoreRepository) PutGameState(ctx context.Context, s State) error {
	if s.CharacterID == "" {
		return apperrors.Validation("game state character id is required")
	}
	return store.PutJSON(ctx, r.store, collectionGameStates, s.CharacterID, s)
}

// ListCharacters returns every stored character, most recently updated
// first.
func (r *StoreRepository) ListCharacters(ctx context.Context) ([]Character, error) {
	cs, err := store.QueryJSON[Character](ctx, r.store, collectionCharacters, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].UpdatedAt.After(cs[j].UpdatedAt) })
	return cs, nil
}
