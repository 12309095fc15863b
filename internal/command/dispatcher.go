package command

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"

	"guildwarden/internal/args"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/perm"
	"guildwarden/internal/platform"
	"guildwarden/internal/utils"

	"go.uber.org/zap"
)

type Config struct {
	// Prefix is used when the guild configuration document sets none.
	Prefix   string
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{Prefix: "!", Cooldown: 5 * time.Second}
}

type Dispatcher struct {
	registry  *Registry
	transport platform.Transport
	configs   *guildconfig.Registry
	logger    *zap.Logger
	config    Config
	errorHook *platform.Webhook
	now       func() time.Time

	mu      sync.Mutex
	windows map[string]*utils.SlidingWindow
}

func NewDispatcher(registry *Registry, transport platform.Transport, configs *guildconfig.Registry, cfg Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		transport: transport,
		configs:   configs,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
		windows:   make(map[string]*utils.SlidingWindow),
	}
}

// WithErrorWebhook relays unexpected command failures to hook.
func (d *Dispatcher) WithErrorWebhook(hook platform.Webhook) {
	d.errorHook = &hook
}

func (d *Dispatcher) WithClock(now func() time.Time) {
	d.now = now
}

// Dispatch runs the command msg invokes. handled is false when msg is not a
// command; err is the command's failure after it has been reported in the
// channel.
func (d *Dispatcher) Dispatch(ctx context.Context, msg platform.Message) (handled bool, err error) {
	if msg.Author.Bot || msg.GuildID == "" {
		return false, nil
	}
	prefix := d.configs.Prefix(d.config.Prefix)
	if prefix == "" || !strings.HasPrefix(msg.Content, prefix) {
		return false, nil
	}
	body := msg.Content[len(prefix):]
	name, rest := body, ""
	if idx := strings.IndexFunc(body, unicode.IsSpace); idx >= 0 {
		name, rest = body[:idx], strings.TrimSpace(body[idx:])
	}
	cmd, appended, ok := d.registry.Lookup(name)
	if !ok {
		return false, nil
	}

	logger := d.logger.With(
		zap.String("command", cmd.Name()),
		zap.String("guild_id", msg.GuildID),
		zap.String("user_id", msg.Author.ID),
	)
	raw := rest
	if appended != "" {
		raw = strings.TrimSpace(raw + " " + appended)
	}
	if err := d.run(ctx, msg, cmd, name, raw); err != nil {
		d.fail(ctx, logger, msg, err)
		return true, err
	}
	logger.Debug("command completed")
	return true, nil
}

func (d *Dispatcher) run(ctx context.Context, msg platform.Message, cmd Command, alias, raw string) error {
	guild, err := d.transport.Guild(ctx, msg.GuildID)
	if err != nil {
		return fmt.Errorf("load guild: %w", err)
	}
	member, err := d.transport.Member(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		return fmt.Errorf("load invoking member: %w", err)
	}
	var cfg *guildconfig.GuildConfig
	if loaded, ok := d.configs.Get(msg.GuildID); ok {
		cfg = &loaded
	}
	actor, err := perm.Build(ctx, d.transport, guild, member, cfg)
	if err != nil {
		return err
	}
	if !perm.Evaluate(cmd.Permission(), actor, nil) {
		return cmderr.InsufficientPermissions()
	}
	if err := d.cooldown(msg.Author.ID, cmd.Name()); err != nil {
		return err
	}

	invocation, err := args.Parse(raw, cmd.Flags())
	if err != nil {
		return err
	}
	reply, err := cmd.Run(ctx, &Context{
		Guild:      guild,
		Message:    msg,
		Member:     member,
		Actor:      actor,
		Config:     cfg,
		Invocation: invocation,
		Alias:      alias,
	})
	if err != nil {
		return err
	}
	if reply == "" {
		return nil
	}
	if _, err := d.transport.SendMessage(ctx, msg.ChannelID, reply); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (d *Dispatcher) cooldown(userID, command string) error {
	if d.config.Cooldown <= 0 {
		return nil
	}
	key := userID + ":" + command
	d.mu.Lock()
	window, ok := d.windows[key]
	if !ok {
		window = utils.NewSlidingWindow(d.config.Cooldown)
		d.windows[key] = window
	}
	d.mu.Unlock()

	now := d.now()
	if window.Count(now) > 0 {
		return cmderr.Cooldown(int(math.Ceil(window.Retry(now).Seconds())))
	}
	window.Add(now)
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, logger *zap.Logger, msg platform.Message, err error) {
	if cmdErr, ok := cmderr.As(err); ok && cmdErr.Kind != cmderr.Transport {
		logger.Debug("command rejected", zap.String("code", cmdErr.Code), zap.String("kind", cmdErr.Kind.String()))
	} else {
		logger.Error("command failed", zap.Error(err))
		if d.errorHook != nil {
			report := fmt.Sprintf("An unexpected error has occurred in <#%s>: `%v`", msg.ChannelID, err)
			if hookErr := d.transport.ExecuteWebhook(ctx, *d.errorHook, report); hookErr != nil {
				logger.Warn("failed to relay command error", zap.Error(hookErr))
			}
		}
	}
	if _, sendErr := d.transport.SendMessage(ctx, msg.ChannelID, cmderr.Render(err)); sendErr != nil {
		logger.Warn("failed to report command error", zap.Error(sendErr))
	}
}
