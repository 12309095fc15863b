package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guildwarden/internal/args"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/command"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/perm"
	"guildwarden/internal/storage"
)

var starModes = []string{"refresh"}

// Star handles `star refresh <message id>`, which rebuilds a starboard entry
// from the reactions currently on the message.
type Star struct {
	deps Deps
}

func (s *Star) Name() string             { return "star" }
func (s *Star) Aliases() []command.Alias { return nil }
func (s *Star) Flags() args.Options      { return args.Options{} }

func (s *Star) Permission() perm.Predicate {
	return perm.AccessLevel(guildconfig.LevelModerator, perm.ManageMessages)
}

func (s *Star) Run(ctx context.Context, c *command.Context) (string, error) {
	if mode := strings.ToLower(c.Invocation.Arg(0)); mode != "refresh" {
		return "", cmderr.InvalidMode(c.Invocation.Arg(0), starModes)
	}
	id := c.Invocation.Arg(1)
	star, err := s.deps.Starboard.Refresh(ctx, c.Guild.ID, id)
	if errors.Is(err, storage.ErrStarNotFound) {
		return "", cmderr.StarNotFound(id)
	}
	if err != nil {
		return "", fmt.Errorf("refresh star: %w", err)
	}
	return fmt.Sprintf("Refreshed the starboard entry for %s: **%d** stars.", id, len(star.Users)), nil
}
