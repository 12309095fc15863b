// Package command defines prefix commands and routes guild messages to them.
package command

import (
	"context"
	"fmt"
	"strings"

	"guildwarden/internal/args"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/perm"
	"guildwarden/internal/platform"
)

// Alias is an alternative name for a command. Args are appended to the
// invocation, so alias flags override what the user typed.
type Alias struct {
	Name string
	Args string
}

type Command interface {
	Name() string
	Aliases() []Alias
	Flags() args.Options
	Permission() perm.Predicate
	// Run returns the reply to post in the invoking channel, if any.
	Run(ctx context.Context, c *Context) (string, error)
}

// Context is everything a command knows about one invocation.
type Context struct {
	Guild      platform.Guild
	Message    platform.Message
	Member     platform.Member
	Actor      perm.Context
	Config     *guildconfig.GuildConfig
	Invocation args.Invocation
	// Alias is the name the command was invoked under.
	Alias string
}

func (c *Context) Author() platform.User {
	return c.Message.Author
}

type entry struct {
	command  Command
	appended string
}

type Registry struct {
	commands []Command
	names    map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]entry)}
}

// Register adds commands; a name or alias already taken is an error.
func (r *Registry) Register(commands ...Command) error {
	for _, cmd := range commands {
		if err := r.add(cmd.Name(), entry{command: cmd}); err != nil {
			return err
		}
		for _, alias := range cmd.Aliases() {
			if err := r.add(alias.Name, entry{command: cmd, appended: alias.Args}); err != nil {
				return err
			}
		}
		r.commands = append(r.commands, cmd)
	}
	return nil
}

func (r *Registry) add(name string, e entry) error {
	key := strings.ToLower(name)
	if existing, ok := r.names[key]; ok {
		return fmt.Errorf("command name %q already used by %s", name, existing.command.Name())
	}
	r.names[key] = e
	return nil
}

// Lookup resolves name case-insensitively, returning the command and the
// arguments its alias appends.
func (r *Registry) Lookup(name string) (Command, string, bool) {
	e, ok := r.names[strings.ToLower(name)]
	if !ok {
		return nil, "", false
	}
	return e.command, e.appended, true
}

func (r *Registry) Commands() []Command {
	return r.commands
}
