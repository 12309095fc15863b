package commands

import (
	"context"
	"fmt"
	"strconv"

	"guildwarden/internal/args"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/command"
	"guildwarden/internal/modules/points"
	"guildwarden/internal/perm"
	"guildwarden/internal/resolve"
)

type Transfer struct {
	deps Deps
}

func (t *Transfer) Name() string               { return "transfer" }
func (t *Transfer) Aliases() []command.Alias   { return nil }
func (t *Transfer) Flags() args.Options        { return args.Options{} }
func (t *Transfer) Permission() perm.Predicate { return perm.Static(0) }

// Run handles `transfer <user> <amount>`.
func (t *Transfer) Run(ctx context.Context, c *command.Context) (string, error) {
	author := c.Author()
	if t.deps.Points.Locked(author.ID) {
		return "", cmderr.LockedPoints(true)
	}
	entity, ok, err := t.deps.Resolver.Resolve(ctx, c.Invocation.Arg(0), resolve.KindUser, c.Guild.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", cmderr.MentionUser()
	}
	recipient, err := t.deps.Resolver.User(ctx, c.Guild.ID, entity.ID)
	if err != nil {
		return "", fmt.Errorf("load transfer recipient: %w", err)
	}
	amount, err := strconv.ParseInt(c.Invocation.Arg(1), 10, 64)
	if err != nil {
		return "", cmderr.InvalidNumber(1)
	}
	if _, _, err := t.deps.Points.Transfer(ctx, c.Guild.ID, author, recipient, amount); err != nil {
		return "", err
	}
	return points.RenderTransfer(recipient, amount), nil
}

// PointsBalance shows a user's point balances.
type PointsBalance struct {
	deps Deps
}

func (p *PointsBalance) Name() string               { return "points" }
func (p *PointsBalance) Aliases() []command.Alias   { return nil }
func (p *PointsBalance) Flags() args.Options        { return args.Options{} }
func (p *PointsBalance) Permission() perm.Predicate { return perm.Static(0) }

func (p *PointsBalance) Run(ctx context.Context, c *command.Context) (string, error) {
	user, ok, err := targetUser(ctx, p.deps, c)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", cmderr.MentionUser()
	}
	balance, err := p.deps.Points.Balance(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load points: %w", err)
	}
	return fmt.Sprintf("**%s**\nPoints: **%d**\nVault: **%d**", user.Tag(), balance.Amount, balance.Vault), nil
}

type Level struct {
	deps Deps
}

func (l *Level) Name() string               { return "level" }
func (l *Level) Aliases() []command.Alias   { return []command.Alias{{Name: "rank"}} }
func (l *Level) Flags() args.Options        { return args.Options{} }
func (l *Level) Permission() perm.Predicate { return perm.Static(0) }

func (l *Level) Run(ctx context.Context, c *command.Context) (string, error) {
	user, ok, err := targetUser(ctx, l.deps, c)
	if err != nil {
		return "", err
	}
	if !ok {
		user = c.Author()
	}
	level, err := l.deps.Points.Level(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load level: %w", err)
	}
	return points.RenderLevel(user, level), nil
}

type Top struct {
	deps Deps
}

func (t *Top) Name() string               { return "top" }
func (t *Top) Aliases() []command.Alias   { return nil }
func (t *Top) Flags() args.Options        { return args.Options{} }
func (t *Top) Permission() perm.Predicate { return perm.Static(0) }

func (t *Top) Run(ctx context.Context, c *command.Context) (string, error) {
	levels, err := t.deps.Points.Top(ctx)
	if err != nil {
		return "", fmt.Errorf("load top levels: %w", err)
	}
	if len(levels) == 0 {
		return "Nobody has earned any XP yet.", nil
	}
	ids := make([]string, 0, len(levels))
	for _, level := range levels {
		ids = append(ids, level.UserID)
	}
	return points.RenderTop(levels, userTags(ctx, t.deps, c.Guild.ID, ids)), nil
}
