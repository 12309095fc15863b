package commands

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"guildwarden/internal/args"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/command"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/perm"
)

var (
	giveawayModes = []string{"start", "end"}
	giveawayFlags = args.Options{Flags: []args.FlagSpec{
		{Name: "messages", Type: args.Number},
		{Name: "requirement", Type: args.String},
	}, Closed: true}
	durationPart = regexp.MustCompile(`(\d+)([wdhms])`)
)

// Giveaway handles `giveaway start <duration> <prize>` and
// `giveaway end <message id>`.
type Giveaway struct {
	deps Deps
}

func (g *Giveaway) Name() string             { return "giveaway" }
func (g *Giveaway) Aliases() []command.Alias { return []command.Alias{{Name: "gw"}} }
func (g *Giveaway) Flags() args.Options      { return giveawayFlags }

func (g *Giveaway) Permission() perm.Predicate {
	return perm.AccessLevel(guildconfig.LevelModerator, perm.ManageServer)
}

func (g *Giveaway) Run(ctx context.Context, c *command.Context) (string, error) {
	switch mode := strings.ToLower(c.Invocation.Arg(0)); mode {
	case "start":
		return g.start(ctx, c)
	case "end":
		_, err := g.deps.Giveaways.EndByID(ctx, c.Invocation.Arg(1))
		return "", err
	default:
		return "", cmderr.InvalidMode(c.Invocation.Arg(0), giveawayModes)
	}
}

func (g *Giveaway) start(ctx context.Context, c *command.Context) (string, error) {
	duration, err := ParseDuration(c.Invocation.Arg(1))
	if err != nil {
		return "", err
	}
	prize := c.Invocation.Rest(2)
	if prize == "" {
		return "", cmderr.ProvidePrize()
	}
	req := giveaway.StartRequest{
		GuildID:   c.Guild.ID,
		ChannelID: c.Message.ChannelID,
		CreatedBy: c.Author().ID,
		Prize:     prize,
		Duration:  duration,
	}
	if value, ok := c.Invocation.Flags.Int("messages"); ok {
		if value < 1 {
			return "", cmderr.InvalidFlagType("messages", "an integer bigger than 0")
		}
		req.MessageRequirement = &value
	}
	if value, ok := c.Invocation.Flags.String("requirement"); ok && value != "" {
		req.Requirement = &value
	}
	_, err = g.deps.Giveaways.Start(ctx, req)
	return "", err
}

// ParseDuration accepts Go durations plus day and week units, e.g. 2d12h or
// 1w.
func ParseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, cmderr.InvalidDuration(raw)
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, cmderr.InvalidDuration(raw)
		}
		return d, nil
	}
	lowered := strings.ToLower(raw)
	matches := durationPart.FindAllStringSubmatchIndex(lowered, -1)
	var (
		total time.Duration
		end   int
	)
	for _, m := range matches {
		if m[0] != end {
			return 0, cmderr.InvalidDuration(raw)
		}
		end = m[1]
		n, err := strconv.Atoi(lowered[m[2]:m[3]])
		if err != nil {
			return 0, cmderr.InvalidDuration(raw)
		}
		total += time.Duration(n) * unit(lowered[m[4]:m[5]])
	}
	if end != len(lowered) || total <= 0 {
		return 0, cmderr.InvalidDuration(raw)
	}
	return total, nil
}

func unit(u string) time.Duration {
	switch u {
	case "w":
		return 7 * 24 * time.Hour
	case "d":
		return 24 * time.Hour
	case "h":
		return time.Hour
	case "m":
		return time.Minute
	default:
		return time.Second
	}
}
