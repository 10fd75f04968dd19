// Package generator defines the narrative generator contract the story
// engine calls and an implementation backed by a chat-completions model.
package generator

import (
	"context"

	"github.com/dotsetgreg/loreweaver/pkg/game"
	"github.com/dotsetgreg/loreweaver/pkg/narrative"
)

// Request is everything the generator gets to write the next beat.
type Request struct {
	Character  game.Character
	State      game.State
	UserChoice string
	Context    narrative.Context
}

// Payload is the generator's answer before the engine turns it into a
// StoryEvent.
type Payload struct {
	Type     game.EventType `json:"type"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Choices  []game.Choice  `json:"choices"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Generator produces the next story beat. It may fail or time out; the
// engine recovers with a fallback event.
type Generator interface {
	Generate(ctx context.Context, req Request) (Payload, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request) (Payload, error)

func (f Func) Generate(ctx context.Context, req Request) (Payload, error) {
	return f(ctx, req)
}
