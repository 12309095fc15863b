// Package wizard runs the interactive guild setup dialogue: it asks for each
// configuration item in turn, provisions the staff server and commits the
// result as a new guild configuration.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"guildwarden/internal/cmderr"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/platform"
	"guildwarden/internal/resolve"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	invalidRole    = "That is not a valid role, please try again"
	invalidChannel = "That is not a valid channel, please try again"
	invalidGuild   = "That is not a valid guild ID, please try again"
	invalidBoolean = "Please answer with y or n."
)

var roleSeparator = regexp.MustCompile(` *, *`)

// Awaiter delivers the next message a user posts in a channel.
type Awaiter interface {
	Await(ctx context.Context, channelID, userID string, timeout time.Duration) (platform.Message, error)
}

type Config struct {
	Timeout     time.Duration
	DeleteBatch int
	// DeletesPerSecond paces transcript cleanup calls.
	DeletesPerSecond float64
}

func DefaultConfig() Config {
	return Config{Timeout: 3 * time.Minute, DeleteBatch: platform.BulkDeleteLimit, DeletesPerSecond: 1}
}

type Wizard struct {
	transport   platform.Transport
	resolver    *resolve.Resolver
	configs     *guildconfig.Registry
	awaiter     Awaiter
	provisioner *Provisioner
	audit       *audit.Logger
	logger      *zap.Logger
	config      Config
	items       []Item
}

func New(transport platform.Transport, resolver *resolve.Resolver, configs *guildconfig.Registry, awaiter Awaiter, cfg Config, auditLogger *audit.Logger, logger *zap.Logger) *Wizard {
	return &Wizard{
		transport:   transport,
		resolver:    resolver,
		configs:     configs,
		awaiter:     awaiter,
		provisioner: NewProvisioner(transport),
		audit:       auditLogger,
		logger:      logger,
		config:      cfg,
		items:       Items,
	}
}

// WithItems replaces the dialogue.
func (w *Wizard) WithItems(items []Item) {
	w.items = items
}

type Request struct {
	Guild     platform.Guild
	ChannelID string
	UserID    string
	// Edited is set when the invocation came from an edited message.
	Edited bool
}

// session is the state of one run: the draft being filled and every message
// id produced in the channel so far.
type session struct {
	req        Request
	runID      string
	draft      *guildconfig.Draft
	transcript []string
	logger     *zap.Logger
	// closed is set once the transcript has been cleaned up.
	closed bool
}

func (s *session) record(ids ...string) {
	s.transcript = append(s.transcript, ids...)
}

// Run walks every item, retrying invalid answers until one is accepted or the
// user goes quiet. A run that ends without a committed config, for any reason,
// removes its transcript and persists nothing.
func (w *Wizard) Run(ctx context.Context, req Request) (_ guildconfig.GuildConfig, err error) {
	if req.Edited {
		return guildconfig.GuildConfig{}, cmderr.EditedInvocation()
	}
	if w.configs.Has(req.Guild.ID) {
		return guildconfig.GuildConfig{}, cmderr.ConfigExists()
	}

	s := &session{req: req, runID: uuid.NewString(), draft: guildconfig.NewDraft()}
	s.logger = w.logger.With(zap.String("run_id", s.runID), zap.String("guild_id", req.Guild.ID))
	s.logger.Info("setup wizard started", zap.String("user_id", req.UserID))
	defer func() {
		if err != nil && !s.closed {
			w.fail(context.WithoutCancel(ctx), s, err)
		}
	}()

	for i := 0; i < len(w.items); {
		item := w.items[i]
		if item.Default != nil {
			value, ok, err := item.Default(ctx, w.transport, req.Guild)
			if err != nil {
				return guildconfig.GuildConfig{}, err
			}
			if ok {
				w.set(s, item, value)
				i++
				continue
			}
		}

		question, err := w.transport.SendMessage(ctx, req.ChannelID, Prompt(item))
		if err != nil {
			return guildconfig.GuildConfig{}, fmt.Errorf("send wizard prompt: %w", err)
		}
		s.record(question.ID)

		reply, err := w.awaiter.Await(ctx, req.ChannelID, req.UserID, w.config.Timeout)
		if errors.Is(err, platform.ErrAwaitTimeout) {
			return guildconfig.GuildConfig{}, w.abort(ctx, s, item)
		}
		if err != nil {
			return guildconfig.GuildConfig{}, err
		}
		s.record(reply.ID)

		answer := strings.TrimSpace(reply.Content)
		if item.Optional && strings.EqualFold(answer, "n") {
			i++
			continue
		}
		correction, err := w.apply(ctx, s, item, answer)
		if err != nil {
			return guildconfig.GuildConfig{}, err
		}
		if correction != "" {
			sent, err := w.transport.SendMessage(ctx, req.ChannelID, correction)
			if err != nil {
				return guildconfig.GuildConfig{}, fmt.Errorf("send wizard correction: %w", err)
			}
			s.record(sent.ID)
			continue
		}
		i++
	}

	if missing := s.draft.Missing(w.required()); len(missing) > 0 {
		return guildconfig.GuildConfig{}, fmt.Errorf("setup wizard finished without %s", strings.Join(missing, ", "))
	}
	cfg, err := w.configs.Commit(s.draft)
	if errors.Is(err, guildconfig.ErrExists) {
		return guildconfig.GuildConfig{}, cmderr.ConfigExists()
	}
	if err != nil {
		return guildconfig.GuildConfig{}, fmt.Errorf("commit guild config: %w", err)
	}

	w.cleanup(ctx, s)
	if _, err := w.transport.SendMessage(ctx, req.ChannelID, "Added guild config for "+req.Guild.Name); err != nil {
		s.logger.Warn("failed to send wizard confirmation", zap.Error(err))
	}
	w.audit.Log(ctx, audit.LevelInfo, req.Guild.ID, req.UserID, audit.EventConfigCommitted, "run="+s.runID)
	s.logger.Info("setup wizard committed config")
	return cfg, nil
}

func (w *Wizard) required() []string {
	var keys []string
	for _, item := range w.items {
		if !item.Optional {
			keys = append(keys, item.Key)
		}
	}
	return keys
}

func (w *Wizard) set(s *session, item Item, value any) {
	s.draft.Set(item.Key, value)
	if item.Key == StarboardChannelKey {
		s.draft.Set("starboard.enabled", true)
	}
}

// apply validates answer for item and stores it. A non-empty correction means
// the answer was rejected and the item must be asked again.
func (w *Wizard) apply(ctx context.Context, s *session, item Item, answer string) (string, error) {
	guildID := s.req.Guild.ID
	switch item.Kind {
	case KindBoolean:
		switch strings.ToLower(answer) {
		case "y", "yes":
			w.set(s, item, true)
		case "n", "no":
			w.set(s, item, false)
		default:
			return invalidBoolean, nil
		}
	case KindRole:
		role, ok, err := w.resolver.Resolve(ctx, answer, resolve.KindRole, guildID)
		if err != nil {
			return "", err
		}
		if !ok {
			return invalidRole, nil
		}
		w.set(s, item, role.ID)
	case KindChannel:
		channel, ok, err := w.resolver.Resolve(ctx, answer, resolve.KindChannel, guildID)
		if err != nil {
			return "", err
		}
		if !ok {
			return invalidChannel, nil
		}
		w.set(s, item, channel.ID)
	case KindChannelID:
		if !resolve.IsID(answer) {
			return invalidChannel, nil
		}
		channel, err := w.transport.Channel(ctx, answer)
		if errors.Is(err, platform.ErrNotFound) {
			return invalidChannel, nil
		}
		if err != nil {
			return "", err
		}
		w.set(s, item, channel.ID)
	case KindRoles:
		return w.applyRoles(ctx, s, item, answer)
	case KindGuildID:
		if !resolve.IsID(answer) {
			return invalidGuild, nil
		}
		guild, ok, err := w.resolver.Resolve(ctx, answer, resolve.KindGuild, "")
		if err != nil {
			return "", err
		}
		if !ok {
			return invalidGuild, nil
		}
		w.set(s, item, guild.ID)
		if item.Key == StaffServerKey {
			return "", w.provision(ctx, s, guild.ID)
		}
	}
	return "", nil
}

func (w *Wizard) applyRoles(ctx context.Context, s *session, item Item, answer string) (string, error) {
	parts := roleSeparator.Split(answer, -1)
	if len(parts) != item.Count {
		return rolesCorrection(item.Count), nil
	}
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		role, ok, err := w.resolver.Resolve(ctx, part, resolve.KindRole, s.req.Guild.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return rolesCorrection(item.Count), nil
		}
		ids = append(ids, role.ID)
	}
	w.set(s, item, ids)
	return "", nil
}

func rolesCorrection(count int) string {
	text := fmt.Sprintf("Please provide %d roles seperated by a comma.", count)
	if count == len(guildconfig.AccessLevelNames) {
		text += " in the order: " + strings.Join(guildconfig.AccessLevelNames, ", ") + " (the roles don't have to be named this, just the respective roles)."
	}
	return text
}

func (w *Wizard) provision(ctx context.Context, s *session, staffGuildID string) error {
	notice, err := w.transport.SendMessage(ctx, s.req.ChannelID, "Creating channels... please wait.")
	if err != nil {
		return fmt.Errorf("send provisioning notice: %w", err)
	}
	s.record(notice.ID)

	out, err := w.provisioner.Provision(ctx, staffGuildID, s.req.Guild)
	if err != nil {
		return err
	}
	s.draft.Set("webhooks", out.Webhooks)
	s.draft.Set("staff_server_category", out.CategoryID)
	s.draft.Set("reports_channel", out.ReportsID)
	s.draft.Set("staff_commands_channel", out.CommandsID)
	s.draft.Set("punishment_channel", out.CasesID)
	s.logger.Info("staff server provisioned", zap.String("staff_guild_id", staffGuildID), zap.Int("webhooks", len(out.Webhooks)))

	done, err := w.transport.SendMessage(ctx, s.req.ChannelID, "Finished creating channels")
	if err != nil {
		return fmt.Errorf("send provisioning notice: %w", err)
	}
	s.record(done.ID)
	return nil
}

func (w *Wizard) abort(ctx context.Context, s *session, item Item) error {
	w.cleanup(ctx, s)
	w.audit.Log(ctx, audit.LevelWarn, s.req.Guild.ID, s.req.UserID, audit.EventWizardAborted, fmt.Sprintf("run=%s item=%s", s.runID, item.Key))
	s.logger.Info("setup wizard timed out", zap.String("item", item.Key))
	return cmderr.WizardTimeout()
}

func (w *Wizard) fail(ctx context.Context, s *session, cause error) {
	w.cleanup(ctx, s)
	w.audit.Log(ctx, audit.LevelWarn, s.req.Guild.ID, s.req.UserID, audit.EventWizardAborted, fmt.Sprintf("run=%s error=%v", s.runID, cause))
	s.logger.Warn("setup wizard aborted", zap.Error(cause))
}

// cleanup removes the transcript in bulk-delete sized chunks. Failures are
// logged; the run outcome does not depend on them.
func (w *Wizard) cleanup(ctx context.Context, s *session) {
	s.closed = true
	if len(s.transcript) == 0 {
		return
	}
	batch := w.config.DeleteBatch
	if batch <= 0 || batch > platform.BulkDeleteLimit {
		batch = platform.BulkDeleteLimit
	}
	limiter := rate.NewLimiter(rate.Limit(w.config.DeletesPerSecond), 1)
	for start := 0; start < len(s.transcript); start += batch {
		end := min(start+batch, len(s.transcript))
		chunk := s.transcript[start:end]
		if err := limiter.Wait(ctx); err != nil {
			s.logger.Warn("transcript cleanup interrupted", zap.Error(err))
			return
		}
		var err error
		if len(chunk) == 1 {
			err = w.transport.DeleteMessage(ctx, s.req.ChannelID, chunk[0])
		} else {
			err = w.transport.BulkDelete(ctx, s.req.ChannelID, chunk)
		}
		if err != nil {
			s.logger.Warn("failed to delete wizard transcript", zap.Int("messages", len(chunk)), zap.Error(err))
		}
	}
}
