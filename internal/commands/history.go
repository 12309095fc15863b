package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guildwarden/internal/analytics"
	"guildwarden/internal/args"
	"guildwarden/internal/caselog"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/command"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/perm"
)

// History lists the cases recorded against a user.
type History struct {
	deps Deps
}

func (h *History) Name() string             { return "history" }
func (h *History) Aliases() []command.Alias { return []command.Alias{{Name: "cases"}} }
func (h *History) Flags() args.Options      { return args.Options{} }

func (h *History) Permission() perm.Predicate {
	return perm.AccessLevel(guildconfig.LevelTrainee, perm.KickMembers)
}

func (h *History) Run(ctx context.Context, c *command.Context) (string, error) {
	if c.Invocation.Arg(0) == "" {
		return "", cmderr.MentionUser()
	}
	user, ok, err := targetUser(ctx, h.deps, c)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", cmderr.ResolveID(c.Invocation.Arg(0))
	}
	cases, err := h.deps.Store.CasesForUser(ctx, c.Guild.ID, user.ID)
	if err != nil {
		return "", fmt.Errorf("load case history: %w", err)
	}
	if len(cases) == 0 {
		return fmt.Sprintf("%s has no cases.", user.Tag()), nil
	}
	ids := make([]string, 0, len(cases))
	for _, record := range cases {
		ids = append(ids, record.ModeratorID)
	}
	lines := caselog.RenderHistory(cases, userTags(ctx, h.deps, c.Guild.ID, ids))
	return fmt.Sprintf("**Cases for %s**\n%s", user.Tag(), strings.Join(lines, "\n")), nil
}

var modStatsFlags = args.Options{Flags: []args.FlagSpec{{Name: "days", Type: args.Number}}, Closed: true}

// ModStats summarises audit events over a window, 7 days unless --days says
// otherwise.
type ModStats struct {
	deps Deps
}

func (m *ModStats) Name() string             { return "modstats" }
func (m *ModStats) Aliases() []command.Alias { return nil }
func (m *ModStats) Flags() args.Options      { return modStatsFlags }

func (m *ModStats) Permission() perm.Predicate {
	return perm.AccessLevel(guildconfig.LevelAdmin, perm.Administrator)
}

func (m *ModStats) Run(ctx context.Context, c *command.Context) (string, error) {
	days := int64(7)
	if value, ok := c.Invocation.Flags.Int("days"); ok {
		if value < 1 || value > 90 {
			return "", cmderr.InvalidFlagType("days", "an integer between 1 and 90")
		}
		days = value
	}
	since := time.Now().AddDate(0, 0, -int(days))
	report, err := m.deps.Analytics.Report(ctx, c.Guild.ID, since)
	if err != nil {
		return "", fmt.Errorf("build audit report: %w", err)
	}

	lines := []string{fmt.Sprintf("**Audit events in the last %d days:** %d", days, report.Total)}
	for _, count := range analytics.Ranked(report.ByEvent) {
		lines = append(lines, fmt.Sprintf("%s: %d", count.Key, count.Count))
	}
	ranked := analytics.Ranked(report.Moderators)
	if len(ranked) > 0 {
		ids := make([]string, 0, len(ranked))
		for _, count := range ranked {
			ids = append(ids, count.Key)
		}
		tags := userTags(ctx, m.deps, c.Guild.ID, ids)
		lines = append(lines, "**Cases by moderator**")
		for _, count := range ranked {
			name := count.Key
			if tag, ok := tags[count.Key]; ok {
				name = tag
			}
			lines = append(lines, fmt.Sprintf("%s: %d", name, count.Count))
		}
	}
	return strings.Join(lines, "\n"), nil
}
