package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/game"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/providers"
)

const maxBranchesInPrompt = 3

const systemPrompt = `You are the narrator of a text roguelike adventure. Continue the story in Korean.
Respond with a single JSON object and nothing else:
{"type":"story|combat|event","title":"...","content":"...","choices":[{"id":1,"text":"...","consequences":{"statsChange":{"health":-10},"reputationChanges":[{"factionId":"...","factionName":"...","delta":10}],"emotionChanges":[{"npcId":"...","npcName":"...","deltas":{"trust":5}}],"memory":{"eventType":"combat|dialogue|discovery|achievement|action","title":"..."}}}]}
Offer two to four choices. Consequences are optional and should stay small.`

// LLMOptions tunes model calls.
type LLMOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// LLMGenerator asks a chat model for the next beat as JSON.
type LLMGenerator struct {
	provider providers.LLMProvider
	opts     LLMOptions
}

func NewLLMGenerator(provider providers.LLMProvider, opts LLMOptions) *LLMGenerator {
	return &LLMGenerator{provider: provider, opts: opts}
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (Payload, error) {
	started := time.Now()
	resp, err := g.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(req)},
	}, g.opts.Model, map[string]interface{}{
		"max_tokens":  g.opts.MaxTokens,
		"temperature": g.opts.Temperature,
		"json_mode":   true,
	})
	if err != nil {
		return Payload{}, apperrors.Wrap(apperrors.CodeUpstreamGeneration, "generator call failed", err)
	}

	payload, err := ParsePayload(resp.Content)
	if err != nil {
		return Payload{}, apperrors.Wrap(apperrors.CodeUpstreamGeneration, "generator returned unusable output", err)
	}

	fields := map[string]interface{}{
		"character_id": req.Character.ID,
		"stage":        req.State.CurrentStage,
		"choices":      len(payload.Choices),
		"duration_ms":  time.Since(started).Milliseconds(),
	}
	if resp.Usage != nil {
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	logger.DebugCF("generator", "Story beat generated", fields)
	return payload, nil
}

// BuildPrompt renders the user message for a generation request.
func BuildPrompt(req Request) string {
	var b strings.Builder
	c := req.Character
	fmt.Fprintf(&b, "# Character\n%s (%s), level %d, HP %d/%d, MP %d/%d, gold %d\n",
		c.Name, c.Class, c.Stats.Level, c.Stats.Health, c.Stats.MaxHealth, c.Stats.Mana, c.Stats.MaxMana, c.Stats.Gold)
	fmt.Fprintf(&b, "Stage: %d\n", req.State.CurrentStage)
	if req.State.WorldContext != "" {
		fmt.Fprintf(&b, "World: %s\n", req.State.WorldContext)
	}

	if text := strings.TrimSpace(req.Context.CurrentContextText); text != "" {
		b.WriteString("\n# Narrative state\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nOverall NPC mood: %s\n", req.Context.Mood)

	if branches := req.Context.AvailableBranches; len(branches) > 0 {
		b.WriteString("\n# Suggested directions\n")
		for i, br := range branches {
			if i >= maxBranchesInPrompt {
				break
			}
			fmt.Fprintf(&b, "- [%s, priority %d] %s\n", br.Type, br.Priority, br.Description)
		}
	}

	if choice := strings.TrimSpace(req.UserChoice); choice != "" {
		fmt.Fprintf(&b, "\n# Player choice\n%s\n", choice)
	} else {
		b.WriteString("\n# Opening\nBegin the adventure.\n")
	}
	return b.String()
}

// ParsePayload extracts the JSON object from model output. Output without
// content or choices is rejected.
func ParsePayload(raw string) (Payload, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Payload{}, fmt.Errorf("no JSON object in output")
	}

	var p Payload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return Normalize(p)
}

// Normalize enforces what every generated event must satisfy, whichever
// generator produced it. Engine-only event types become story; blank
// choices are dropped and duplicate or missing ids renumbered.
func Normalize(p Payload) (Payload, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	if p.Content == "" {
		return Payload{}, fmt.Errorf("payload has no content")
	}

	switch p.Type {
	case game.EventStory, game.EventCombat, game.EventEvent:
	default:
		p.Type = game.EventStory
	}

	choices := make([]game.Choice, 0, len(p.Choices))
	for _, c := range p.Choices {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		choices = append(choices, c)
	}
	if len(choices) == 0 {
		return Payload{}, fmt.Errorf("payload has no choices")
	}
	// Ids must be unique for FindChoice; renumber when the model repeats
	// or omits them.
	seen := map[int]bool{}
	renumber := false
	for _, c := range choices {
		if c.ID <= 0 || seen[c.ID] {
			renumber = true
			break
		}
		seen[c.ID] = true
	}
	if renumber {
		for i := range choices {
			choices[i].ID = i + 1
		}
	}
	p.Choices = choices
	return p, nil
}
