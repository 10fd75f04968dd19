package story

import (
	"fmt"
	"time"

	"github.com/dotsetgreg/loreweaver/pkg/game"
)

// Canned choice ids shared by the fallback and guest-limit events.
const (
	ChoiceContinue = 1
	ChoiceRetry    = 2

	ChoiceSignup  = 1
	ChoiceRestart = 2
)

// FallbackEvent is the deterministic event shown when generation fails.
// The same character and stage always produce the same event apart from
// its creation time.
func FallbackEvent(characterID string, stage int, now time.Time) game.StoryEvent {
	return game.StoryEvent{
		ID:      fmt.Sprintf("fallback-%s-%d", characterID, stage),
		Type:    game.EventFallback,
		Title:   "연결 문제",
		Content: "이야기의 실타래가 잠시 엉켰습니다. 잠시 숨을 고른 뒤 모험을 이어가거나 다시 시도할 수 있습니다.",
		Choices: []game.Choice{
			{ID: ChoiceContinue, Text: "계속하기"},
			{ID: ChoiceRetry, Text: "다시 시도"},
		},
		Stage:     stage,
		Metadata:  map[string]any{"fallback": true},
		CreatedAt: now,
	}
}

// GuestLimitEvent ends the guest trial and offers signup or a restart.
func GuestLimitEvent(characterID string, stage, limit int, now time.Time) game.StoryEvent {
	return game.StoryEvent{
		ID:      fmt.Sprintf("guest-limit-%s-%d", characterID, stage),
		Type:    game.EventGuestLimit,
		Title:   "체험 모드 종료",
		Content: fmt.Sprintf("체험 모드에서는 %d단계까지 플레이할 수 있습니다. 가입하면 지금까지의 모험을 이어갈 수 있습니다.", limit),
		Choices: []game.Choice{
			{ID: ChoiceSignup, Text: "회원가입하고 계속하기"},
			{ID: ChoiceRestart, Text: "처음부터 다시 시작"},
		},
		Stage:     stage,
		Metadata:  map[string]any{"guestLimit": limit},
		CreatedAt: now,
	}
}
