package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dotsetgreg/loreweaver/pkg/config"
	"github.com/dotsetgreg/loreweaver/pkg/logger"
	"github.com/dotsetgreg/loreweaver/pkg/memory"
	"github.com/dotsetgreg/loreweaver/pkg/providers"
	"github.com/dotsetgreg/loreweaver/pkg/quest"
)

func executeCLI() error {
	return buildRootCommand(openDefaultRuntime).Execute()
}

func buildRootCommand(open runtimeOpener) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   appName,
		Short: "Narrative state engine for AI-narrated roguelikes",
		Long: strings.TrimSpace(`loreweaver runs an AI-narrated text roguelike.

Characters accumulate memories, NPC relationships, faction reputation and
quests while the story engine generates each stage. Use play to start or
resume a game and the inspection commands to look at tracked state.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newPlayCommand(open))
	root.AddCommand(newCharactersCommand(open))
	root.AddCommand(newMemoriesCommand(open))
	root.AddCommand(newRelationshipsCommand(open))
	root.AddCommand(newReputationCommand(open))
	root.AddCommand(newQuestsCommand(open))
	root.AddCommand(newContextCommand(open))
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// withRuntime opens the runtime for one command invocation.
func withRuntime(open runtimeOpener, fn func(rt *appRuntime) error) error {
	rt, err := open()
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func newCharactersCommand(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:     "characters",
		Short:   "List saved characters",
		Example: "  loreweaver characters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				ctx := cmd.Context()
				cs, err := rt.repo.ListCharacters(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(cs) == 0 {
					fmt.Fprintln(out, "No characters yet. Start one with: loreweaver play --name <name>")
					return nil
				}
				for _, c := range cs {
					stage := "-"
					if st, err := rt.repo.GetGameState(ctx, c.ID); err == nil {
						stage = fmt.Sprintf("stage %d, %s", st.CurrentStage, st.GameStatus)
					}
					guest := ""
					if c.IsGuest {
						guest = " [guest]"
					}
					fmt.Fprintf(out, "%s  %s (%s)%s  %s  updated %s\n",
						c.ID, c.Name, c.Class, guest, stage, humanize.Time(c.UpdatedAt))
				}
				return nil
			})
		},
	}
}

func newMemoriesCommand(open runtimeOpener) *cobra.Command {
	var (
		eventType string
		tags      []string
		npc       string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "memories <character-id>",
		Short: "Show a character's recorded memories",
		Example: strings.Join([]string{
			"  loreweaver memories char-123",
			"  loreweaver memories char-123 --type combat --limit 10",
		}, "\n"),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				ctx := cmd.Context()
				ms, err := rt.memories.Query(ctx, args[0], memory.Filter{
					EventType:   memory.EventType(eventType),
					Tags:        tags,
					NPCInvolved: npc,
					Limit:       limit,
				})
				if err != nil {
					return err
				}
				stats, err := rt.memories.Stats(ctx, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Memories: %d total\n", stats.Total)
				for _, m := range ms {
					fmt.Fprintf(out, "- [%s/%s] %s", m.EventType, m.Importance, m.Title)
					if m.Description != "" && m.Description != m.Title {
						fmt.Fprintf(out, ": %s", m.Description)
					}
					fmt.Fprintf(out, " (%s)\n", humanize.Time(m.Timestamp))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Filter by event type (combat, dialogue, discovery, achievement, action)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Filter by tag (repeatable)")
	cmd.Flags().StringVar(&npc, "npc", "", "Only memories involving this NPC id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum memories to show")
	return cmd
}

func newRelationshipsCommand(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:     "relationships <character-id>",
		Short:   "Show NPC relationships and the overall mood",
		Example: "  loreweaver relationships char-123",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				sum, err := rt.relationships.Summarize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Overall mood: %s\n", sum.OverallMood)
				for _, r := range sum.Relationships {
					fmt.Fprintf(out, "- %s [%s] %s\n", r.NPCName, r.Label, r.Summary)
				}
				if len(sum.RecentChanges) > 0 {
					fmt.Fprintln(out, "\nRecent changes:")
					for _, c := range sum.RecentChanges {
						fmt.Fprintf(out, "- %s: %s (%s)\n", c.NPCName, c.Description, humanize.Time(c.Timestamp))
					}
				}
				return nil
			})
		},
	}
}

func newReputationCommand(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:     "reputation <character-id>",
		Short:   "Show faction standings, opportunities and warnings",
		Example: "  loreweaver reputation char-123",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				sum, err := rt.reputations.Summarize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sum.Standings) == 0 {
					fmt.Fprintln(out, "No known factions.")
				}
				for _, s := range sum.Standings {
					fmt.Fprintf(out, "- %s: %d %s (%s, %s)\n", s.FactionName, s.Reputation, s.Level, s.Standing, s.Trend)
				}
				for _, o := range sum.Opportunities {
					fmt.Fprintf(out, "+ %s\n", o)
				}
				for _, w := range sum.Warnings {
					fmt.Fprintf(out, "! %s\n", w)
				}
				return nil
			})
		},
	}
}

func newQuestsCommand(open runtimeOpener) *cobra.Command {
	var statuses []string

	questsRoot := &cobra.Command{
		Use:   "quests <character-id>",
		Short: "List and manage a character's quests",
		Example: strings.Join([]string{
			"  loreweaver quests char-123",
			"  loreweaver quests char-123 --status active",
		}, "\n"),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				ctx := cmd.Context()
				filter := make([]quest.Status, 0, len(statuses))
				for _, s := range statuses {
					filter = append(filter, quest.Status(strings.TrimSpace(s)))
				}
				if _, err := rt.quests.ExpireOverdue(ctx, args[0], time.Now()); err != nil {
					return err
				}
				qs, err := rt.quests.List(ctx, args[0], filter...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, q := range qs {
					printQuest(out, q)
				}
				sum := quest.Summarize(qs)
				fmt.Fprintf(out, "%d active, %d available, %d completed, %d failed\n",
					len(sum.Active), sum.Available, sum.Completed, sum.Failed)
				return nil
			})
		},
	}
	questsRoot.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (available, active, completed, failed)")

	questsRoot.AddCommand(newQuestAddCommand(open))
	questsRoot.AddCommand(newQuestTransitionCommand(open, "accept", "Accept an available quest"))
	questsRoot.AddCommand(newQuestTransitionCommand(open, "fail", "Fail an active quest"))
	questsRoot.AddCommand(newQuestProgressCommand(open))
	return questsRoot
}

func printQuest(out io.Writer, q quest.Quest) {
	fmt.Fprintf(out, "%s  %s [%s, %s] %d%%\n", q.ID, q.Title, q.Status, q.Difficulty, q.Progress())
	for _, o := range q.Objectives {
		mark := " "
		if o.IsCompleted {
			mark = "x"
		}
		optional := ""
		if o.IsOptional {
			optional = " (optional)"
		}
		fmt.Fprintf(out, "    [%s] %s %s%s\n", mark, o.ID, o.Description, optional)
	}
}

func newQuestAddCommand(open runtimeOpener) *cobra.Command {
	var (
		title       string
		description string
		questType   string
		difficulty  string
		objectives  []string
		requires    []string
		timeLimit   time.Duration
		gold        int
		experience  int
	)

	cmd := &cobra.Command{
		Use:   "add <character-id>",
		Short: "Offer a new quest to a character",
		Example: strings.Join([]string{
			`  loreweaver quests add char-123 --title "잃어버린 검" --objective "동굴 탐색" --objective "검 회수"`,
			"  loreweaver quests add char-123 --title Escort --difficulty hard --time-limit 2h",
		}, "\n"),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				draft := quest.Draft{
					Title:         title,
					Description:   description,
					Type:          questType,
					Difficulty:    quest.Difficulty(difficulty),
					Prerequisites: requires,
					TimeLimit:     timeLimit,
					Rewards:       quest.Rewards{Gold: gold, Experience: experience},
				}
				for _, o := range objectives {
					draft.Objectives = append(draft.Objectives, quest.ObjectiveDraft{Description: o})
				}
				q, err := rt.quests.Create(cmd.Context(), args[0], draft)
				if err != nil {
					return err
				}
				printQuest(cmd.OutOrStdout(), q)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Quest title")
	cmd.Flags().StringVar(&description, "description", "", "Quest description")
	cmd.Flags().StringVar(&questType, "type", "side", "Quest type")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(quest.DifficultyModerate), "easy, moderate, hard or extreme")
	cmd.Flags().StringArrayVar(&objectives, "objective", nil, "Objective description (repeatable)")
	cmd.Flags().StringSliceVar(&requires, "requires", nil, "Quest ids that must be completed first")
	cmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "Fail the quest if still active after this long")
	cmd.Flags().IntVar(&gold, "gold", 0, "Gold reward")
	cmd.Flags().IntVar(&experience, "experience", 0, "Experience reward")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newQuestTransitionCommand(open runtimeOpener, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <character-id> <quest-id>",
		Short:   short,
		Example: fmt.Sprintf("  loreweaver quests %s char-123 quest-456", use),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				transition := rt.quests.Accept
				if use == "fail" {
					transition = rt.quests.Fail
				}
				q, err := transition(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				printQuest(cmd.OutOrStdout(), q)
				return nil
			})
		},
	}
}

func newQuestProgressCommand(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:     "progress <character-id> <quest-id> <objective-id> <percent>",
		Short:   "Set an objective's progress (100 completes it)",
		Example: "  loreweaver quests progress char-123 quest-456 obj-1 100",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			percent, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid progress %q: %w", args[3], err)
			}
			return withRuntime(open, func(rt *appRuntime) error {
				q, err := rt.quests.UpdateProgress(cmd.Context(), args[0], args[1], args[2], percent)
				if err != nil {
					return err
				}
				printQuest(cmd.OutOrStdout(), q)
				return nil
			})
		},
	}
}

func newContextCommand(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:     "context <character-id>",
		Short:   "Show the narrative context the generator would receive",
		Example: "  loreweaver context char-123",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(open, func(rt *appRuntime) error {
				nc, err := rt.aggregator.BuildContext(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if text := strings.TrimSpace(nc.CurrentContextText); text != "" {
					fmt.Fprintln(out, text)
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Mood: %s\n", nc.Mood)
				if len(nc.AvailableBranches) > 0 {
					fmt.Fprintln(out, "\nBranches:")
					for _, b := range nc.AvailableBranches {
						fmt.Fprintf(out, "- [%d] %s: %s\n", b.Priority, b.Type, b.Description)
					}
				}
				if len(nc.Recommendations) > 0 {
					fmt.Fprintln(out, "\nRecommendations:")
					for _, r := range nc.Recommendations {
						fmt.Fprintf(out, "- %s\n", r)
					}
				}
				return nil
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, provider, and storage readiness",
		Example: "  loreweaver status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := getConfigPath()
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			printStatus(cmd.OutOrStdout(), cfg, configPath)
			return nil
		},
	}
}

func printStatus(out io.Writer, cfg *config.Config, configPath string) {
	fmt.Fprintf(out, "%s Status\n", appName)
	fmt.Fprintf(out, "Version: %s\n\n", formatVersion())

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}
	_, err := os.Stat(configPath)
	fmt.Fprintln(out, "Config:", configPath, mark(err == nil))
	dbPath := cfg.DatabasePath()
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Fprintf(out, "State DB: %s ✓ (%s)\n", dbPath, humanize.Bytes(uint64(info.Size())))
	} else {
		fmt.Fprintln(out, "State DB:", dbPath, "not initialized")
	}

	provider, configured, mode, err := providers.ProviderCredentialStatus(cfg)
	if err != nil {
		fmt.Fprintf(out, "Provider: %v\n", err)
	} else {
		fmt.Fprintf(out, "Provider: %s (credentials %s", provider, mark(configured))
		if mode != "" {
			fmt.Fprintf(out, ", %s", mode)
		}
		fmt.Fprintln(out, ")")
	}
	fmt.Fprintf(out, "Model: %s\n", cfg.Generator.Model)
	fmt.Fprintf(out, "Guest mode limit: %d stages\n", cfg.Engine.GuestModeLimit)
	if cfg.AutoSave.Enabled {
		fmt.Fprintf(out, "Auto-save: %s\n", cfg.AutoSave.Schedule)
	} else {
		fmt.Fprintln(out, "Auto-save: disabled")
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  loreweaver version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd.OutOrStdout())
			return nil
		},
	}
}

func enableDebug(debug bool) {
	if debug {
		logger.SetLevel(logger.DEBUG)
	}
}
