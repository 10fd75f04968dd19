package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/game"
	"github.com/dotsetgreg/loreweaver/pkg/narrative"
	"github.com/dotsetgreg/loreweaver/pkg/providers"
)

type stubProvider struct {
	content  string
	err      error
	messages []providers.Message
	options  map[string]interface{}
	model    string
}

func (s *stubProvider) Chat(_ context.Context, messages []providers.Message, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	s.messages = messages
	s.model = model
	s.options = options
	if s.err != nil {
		return nil, s.err
	}
	return &providers.LLMResponse{Content: s.content, FinishReason: "stop"}, nil
}

func (s *stubProvider) GetDefaultModel() string { return "stub" }

func testRequest() Request {
	return Request{
		Character:  game.Character{ID: "c1", Name: "Ari", Class: "warrior", Stats: game.DefaultStats()},
		State:      game.State{CharacterID: "c1", CurrentStage: 3},
		UserChoice: "문을 연다",
		Context: narrative.Context{
			CurrentContextText: "## 최근 기억\n- [combat/major] goblin",
			AvailableBranches: []narrative.Branch{
				{Type: narrative.BranchQuest, Description: "finish escort", Priority: 85},
			},
		},
	}
}

func TestLLMGenerator_ParsesFencedJSON(t *testing.T) {
	stub := &stubProvider{content: "```json\n" + `{"type":"combat","title":"매복","content":"고블린이 나타났다","choices":[{"id":1,"text":"싸운다","consequences":{"statsChange":{"health":-10}}},{"id":2,"text":"도망친다"}]}` + "\n```"}
	g := NewLLMGenerator(stub, LLMOptions{Model: "acme/story", MaxTokens: 256, Temperature: 0.5})

	p, err := g.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, game.EventCombat, p.Type)
	require.Len(t, p.Choices, 2)
	require.NotNil(t, p.Choices[0].Consequences)
	assert.Equal(t, -10, p.Choices[0].Consequences.StatsChange["health"])

	assert.Equal(t, "acme/story", stub.model)
	assert.Equal(t, true, stub.options["json_mode"])
	require.Len(t, stub.messages, 2)
	assert.Contains(t, stub.messages[1].Content, "문을 연다")
	assert.Contains(t, stub.messages[1].Content, "finish escort")
	assert.Contains(t, stub.messages[1].Content, "Stage: 3")
}

func TestLLMGenerator_ProviderErrorIsUpstream(t *testing.T) {
	g := NewLLMGenerator(&stubProvider{err: errors.New("connection reset")}, LLMOptions{})

	_, err := g.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUpstreamGeneration, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsValidation(err))
}

func TestParsePayload_RejectsGarbledOutput(t *testing.T) {
	testcases := []struct {
		name string
		raw  string
	}{
		{"no json", "the story continues..."},
		{"broken json", `{"content": "x", "choices": [}`},
		{"no content", `{"title":"t","content":"  ","choices":[{"id":1,"text":"a"}]}`},
		{"no choices", `{"content":"x","choices":[]}`},
		{"blank choices", `{"content":"x","choices":[{"id":1,"text":" "}]}`},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePayload(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestParsePayload_NormalizesTypeAndIDs(t *testing.T) {
	p, err := ParsePayload(`{"type":"guestLimit","content":"x","choices":[{"id":1,"text":"a"},{"id":1,"text":"b"},{"text":"c"}]}`)
	require.NoError(t, err)
	assert.Equal(t, game.EventStory, p.Type, "engine-only types are not accepted from the model")
	require.Len(t, p.Choices, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{p.Choices[0].ID, p.Choices[1].ID, p.Choices[2].ID})
}

func TestNormalize_GuardsDirectPayloads(t *testing.T) {
	in := Payload{
		Type:    game.EventFallback,
		Title:   "  갈림길 ",
		Content: "두 갈래 길",
		Choices: []game.Choice{{ID: 0, Text: "왼쪽"}, {ID: 5, Text: "  "}, {ID: 0, Text: "오른쪽"}},
	}
	p, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, game.EventStory, p.Type)
	assert.Equal(t, "갈림길", p.Title)
	require.Len(t, p.Choices, 2)
	assert.Equal(t, 1, p.Choices[0].ID)
	assert.Equal(t, 2, p.Choices[1].ID)
	assert.Equal(t, 0, in.Choices[0].ID, "input choices are not modified")

	_, err = Normalize(Payload{Type: game.EventStory, Content: "x"})
	assert.Error(t, err)
}

func TestFunc_AdaptsPlainFunctions(t *testing.T) {
	var g Generator = Func(func(ctx context.Context, req Request) (Payload, error) {
		return Payload{Content: req.UserChoice}, nil
	})
	p, err := g.Generate(context.Background(), Request{UserChoice: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", p.Content)
}
