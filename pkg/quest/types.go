// Package quest tracks side quests and their objective progress.
package quest

import "time"

type Status string

const (
	StatusAvailable Status = "available"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
	DifficultyExtreme  Difficulty = "extreme"
)

func validDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyModerate, DifficultyHard, DifficultyExtreme:
		return true
	}
	return false
}

// Objective is one step of a quest. Progress is a percentage.
type Objective struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	Type            string `json:"type"`
	Target          string `json:"target"`
	Quantity        int    `json:"quantity,omitempty"`
	CurrentProgress int    `json:"currentProgress"`
	IsCompleted     bool   `json:"isCompleted"`
	IsOptional      bool   `json:"isOptional"`
}

// Rewards are granted by the caller when a quest completes.
type Rewards struct {
	Experience int            `json:"experience,omitempty"`
	Gold       int            `json:"gold,omitempty"`
	Items      []string       `json:"items,omitempty"`
	Reputation map[string]int `json:"reputation,omitempty"`
}

type Quest struct {
	ID            string        `json:"id"`
	CharacterID   string        `json:"characterId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Type          string        `json:"type"`
	Difficulty    Difficulty    `json:"difficulty"`
	Status        Status        `json:"status"`
	Objectives    []Objective   `json:"objectives"`
	Rewards       Rewards       `json:"rewards"`
	Prerequisites []string      `json:"prerequisites,omitempty"`
	TimeLimit     time.Duration `json:"timeLimit,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	AcceptedAt    *time.Time    `json:"acceptedAt,omitempty"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
}

// Progress is the mean progress of the required objectives.
func (q Quest) Progress() int {
	total, n := 0, 0
	for _, o := range q.Objectives {
		if o.IsOptional {
			continue
		}
		total += o.CurrentProgress
		n++
	}
	if n == 0 {
		return 100
	}
	return total / n
}

// Overdue reports whether a time-limited quest has run out of time.
func (q Quest) Overdue(now time.Time) bool {
	return q.TimeLimit > 0 && now.After(q.CreatedAt.Add(q.TimeLimit))
}

func (q Quest) objectivesDone() bool {
	for _, o := range q.Objectives {
		if !o.IsCompleted && !o.IsOptional {
			return false
		}
	}
	return true
}

// ObjectiveDraft describes an objective of a quest being created.
type ObjectiveDraft struct {
	ID          string
	Description string
	Type        string
	Target      string
	Quantity    int
	IsOptional  bool
}

// Draft describes a quest being created.
type Draft struct {
	Title         string
	Description   string
	Type          string
	Difficulty    Difficulty
	Objectives    []ObjectiveDraft
	Rewards       Rewards
	Prerequisites []string
	TimeLimit     time.Duration
}

// ActiveLine is one active quest in a Summary.
type ActiveLine struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Progress int    `json:"progress"`
}

type Summary struct {
	Active    []ActiveLine `json:"active"`
	Available int          `json:"available"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
}
