package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/dotsetgreg/loreweaver/pkg/bus"
	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/game"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/story"
)

func newPlayCommand(open runtimeOpener) *cobra.Command {
	var (
		characterID  string
		name         string
		class        string
		worldID      string
		worldContext string
		guest        bool
		debug        bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start a new adventure or resume a saved one",
		Long:  "Run the interactive story loop. Type a choice number to continue, or save, retry, stats and quit.",
		Example: strings.Join([]string{
			"  loreweaver play --name Ari --class warrior",
			"  loreweaver play --name Guest --guest",
			"  loreweaver play --character char-123",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enableDebug(debug)
			if characterID == "" && strings.TrimSpace(name) == "" {
				return fmt.Errorf("either --character or --name is required")
			}

			return withRuntime(open, func(rt *appRuntime) error {
				engine, err := rt.buildEngine(nil)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				go watchEvents(ctx, engine.Bus())

				sched, err := rt.startAutoSave(engine)
				if err != nil {
					return err
				}
				if sched != nil {
					defer func() {
						if err := sched.Close(context.Background()); err != nil {
							logger.WarnCF("play", "Final save failed", map[string]interface{}{"error": err.Error()})
						}
					}()
				}

				var out story.Outcome
				if characterID != "" {
					out, err = resumeGame(ctx, engine, characterID)
				} else {
					out, err = engine.StartNewGame(ctx, story.NewCharacter{
						Name:         name,
						Class:        class,
						IsGuest:      guest,
						WorldContext: worldContext,
					}, worldID)
				}
				if err != nil {
					return err
				}

				p := &playSession{engine: engine, characterID: out.Character.ID, out: cmd.OutOrStdout()}
				fmt.Fprintf(p.out, "%s: %s (%s)\n\n", appName, out.Character.Name, out.Character.ID)
				p.render(out)
				return p.loop(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&characterID, "character", "c", "", "Resume the character with this id")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name for a new character")
	cmd.Flags().StringVar(&class, "class", "adventurer", "Class for a new character")
	cmd.Flags().StringVar(&worldID, "world", "default", "World id for a new character")
	cmd.Flags().StringVar(&worldContext, "world-context", "", "Setting description handed to the narrator")
	cmd.Flags().BoolVar(&guest, "guest", false, "Play in guest mode with a limited number of stages")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// resumeGame shows the saved event, generating one when none is pending.
func resumeGame(ctx context.Context, engine *story.Engine, characterID string) (story.Outcome, error) {
	c, st, err := engine.Session(ctx, characterID)
	if err != nil {
		return story.Outcome{}, err
	}
	if st.CurrentEvent == nil && st.GameStatus == game.StatusPlaying {
		return engine.GenerateNextStory(ctx, characterID, "")
	}
	return story.Outcome{Character: c, State: st, Event: st.CurrentEvent}, nil
}

func watchEvents(ctx context.Context, eb *bus.EventBus) {
	sub := eb.Subscribe(64)
	defer sub.Cancel()
	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			return
		}
		fields := map[string]interface{}{"character_id": ev.CharacterID}
		for k, v := range ev.Payload {
			fields[k] = v
		}
		logger.DebugCF("events", string(ev.Kind), fields)
	}
}

type playSession struct {
	engine      *story.Engine
	characterID string
	out         io.Writer
}

func (p *playSession) loop(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".loreweaver_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Fprintf(p.out, "Error initializing readline: %v\n", err)
		fmt.Fprintln(p.out, "Falling back to simple input mode...")
		return p.simpleLoop(ctx, os.Stdin)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Fprintln(p.out, "\nFarewell, adventurer.")
				return nil
			}
			fmt.Fprintf(p.out, "Error reading input: %v\n", err)
			continue
		}
		if done := p.handle(ctx, line); done {
			return nil
		}
	}
}

func (p *playSession) simpleLoop(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(p.out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(p.out, "\nFarewell, adventurer.")
				return nil
			}
			return err
		}
		if done := p.handle(ctx, line); done {
			return nil
		}
	}
}

// handle processes one line of input and reports whether the loop should end.
func (p *playSession) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	switch strings.ToLower(input) {
	case "":
		return false
	case "quit", "exit":
		fmt.Fprintln(p.out, "Farewell, adventurer.")
		return true
	case "save":
		saved, err := p.engine.SaveAll(ctx)
		if err != nil {
			fmt.Fprintf(p.out, "Save failed: %v\n", err)
			return false
		}
		fmt.Fprintf(p.out, "Saved %d game(s).\n", saved)
		return false
	case "stats":
		c, st, err := p.engine.Session(ctx, p.characterID)
		if err != nil {
			fmt.Fprintf(p.out, "Error: %v\n", err)
			return false
		}
		p.renderStats(c, st)
		return false
	case "retry":
		out, err := p.engine.GenerateNextStory(ctx, p.characterID, "")
		if err != nil {
			p.renderError(err)
			return false
		}
		p.render(out)
		return false
	}

	choiceID, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintln(p.out, "Enter a choice number, or save, retry, stats, quit.")
		return false
	}
	out, err := p.engine.ProcessChoice(ctx, p.characterID, choiceID)
	if err != nil {
		p.renderError(err)
		return false
	}

	switch out.Redirect {
	case story.RedirectSignup:
		fmt.Fprintln(p.out, "\nWelcome aboard! Your adventure continues as a registered player.")
		out, err = p.engine.GenerateNextStory(ctx, p.characterID, "")
	case story.RedirectRestart:
		fmt.Fprintln(p.out, "\nThe tale begins anew...")
		out, err = p.engine.GenerateNextStory(ctx, p.characterID, "")
	}
	if err != nil {
		p.renderError(err)
		return false
	}

	p.render(out)
	if out.State.GameStatus == game.StatusGameOver {
		fmt.Fprintln(p.out, "\n*** GAME OVER ***")
		return true
	}
	return false
}

func (p *playSession) render(out story.Outcome) {
	ev := out.Event
	if ev == nil {
		return
	}
	fmt.Fprintf(p.out, "\n[Stage %d] %s\n", ev.Stage, ev.Title)
	fmt.Fprintln(p.out, ev.Content)
	fmt.Fprintln(p.out)
	if out.State.GameStatus != game.StatusPlaying {
		return
	}
	for _, c := range ev.Choices {
		fmt.Fprintf(p.out, "  %d) %s\n", c.ID, c.Text)
	}
}

func (p *playSession) renderStats(c game.Character, st game.State) {
	s := c.Stats
	fmt.Fprintf(p.out, "%s the %s, level %d, stage %d (%s)\n", c.Name, c.Class, s.Level, st.CurrentStage, st.GameStatus)
	fmt.Fprintf(p.out, "  HP %d/%d  MP %d/%d  STR %d  AGI %d  INT %d  Gold %d  XP %d\n",
		s.Health, s.MaxHealth, s.Mana, s.MaxMana, s.Strength, s.Agility, s.Intelligence, s.Gold, s.Experience)
}

func (p *playSession) renderError(err error) {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeGenerationInFlight:
		fmt.Fprintln(p.out, "The narrator is still writing. Please wait.")
	case apperrors.CodeValidation:
		fmt.Fprintf(p.out, "%v\n", err)
	default:
		fmt.Fprintf(p.out, "Error: %v\n", err)
	}
}
