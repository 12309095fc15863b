// Package moderation runs ban and kick actions from parsed arguments to an
// applied, logged and announced outcome.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"guildwarden/internal/args"
	"guildwarden/internal/caselog"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/perm"
	"guildwarden/internal/platform"
	"guildwarden/internal/resolve"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

type State int

const (
	CollectingArgs State = iota
	Validating
	CheckingPriorState
	Logging
	Applying
	Notifying
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case CollectingArgs:
		return "COLLECTING_ARGS"
	case Validating:
		return "VALIDATING"
	case CheckingPriorState:
		return "CHECKING_PRIOR_STATE"
	case Logging:
		return "LOGGING"
	case Applying:
		return "APPLYING"
	case Notifying:
		return "NOTIFYING"
	case Done:
		return "DONE"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

type Action int

const (
	ActionBan Action = iota
	ActionKick
)

const DaysExtra = "Days of Messages Deleted"

// BanFlags and KickFlags are the flag sets the pipeline reads.
var (
	BanFlags = args.Options{Flags: []args.FlagSpec{
		{Name: "days", Type: args.Number},
		{Name: "silent", Type: args.Boolean},
		{Name: "soft", Type: args.Boolean},
	}}
	KickFlags = args.Options{Flags: []args.FlagSpec{
		{Name: "silent", Type: args.Boolean},
	}}
)

// Request is one invocation of a moderation command.
type Request struct {
	Action     Action
	Guild      platform.Guild
	Moderator  platform.User
	Actor      perm.Context
	ChannelID  string
	MessageID  string
	Invocation args.Invocation
}

type Failure struct {
	User platform.User
	Err  error
}

// Result describes how far a request got. Trace lists every state entered.
type Result struct {
	Trace    []State
	Case     storage.Case
	Targets  []platform.User
	Actioned []platform.User
	Excluded []platform.User
	Failed   []Failure
	Summary  []string
}

func (r *Result) enter(state State) {
	r.Trace = append(r.Trace, state)
}

func (r *Result) State() State {
	if len(r.Trace) == 0 {
		return CollectingArgs
	}
	return r.Trace[len(r.Trace)-1]
}

type Module struct {
	transport platform.Transport
	resolver  *resolve.Resolver
	cases     *caselog.Log
	notifier  Notifier
	audit     *audit.Logger
	logger    *zap.Logger
}

func New(transport platform.Transport, resolver *resolve.Resolver, cases *caselog.Log, notifier Notifier, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{
		transport: transport,
		resolver:  resolver,
		cases:     cases,
		notifier:  notifier,
		audit:     auditLogger,
		logger:    logger,
	}
}

type plan struct {
	action caselog.Action
	days   int
	silent bool
	reason string
	extras caselog.Extras
}

// Run drives req through every state. Errors returned before the Logging
// state leave no case behind; failures while applying are reported in the
// result instead.
func (m *Module) Run(ctx context.Context, req Request) (Result, error) {
	var result Result

	result.enter(CollectingArgs)
	users, consumed, err := m.resolver.LeadingUsers(ctx, req.Invocation.Tokens, req.Guild.ID)
	if err != nil {
		return m.abort(&result, err)
	}
	result.Targets = users
	p := plan{reason: req.Invocation.Rest(consumed)}

	result.enter(Validating)
	if err := m.validate(req, &p, users); err != nil {
		return m.abort(&result, err)
	}

	result.enter(CheckingPriorState)
	if err := m.checkManageable(ctx, req, p, users); err != nil {
		return m.abort(&result, err)
	}
	actionable, excluded, err := m.partition(ctx, req, users)
	if err != nil {
		return m.abort(&result, err)
	}
	if len(actionable) == 0 {
		return m.abort(&result, cmderr.AlreadyRemovedUsers(len(users) > 1, req.Action == ActionKick))
	}
	if len(excluded) > 0 {
		p.extras.Set("Note", excludedNote(len(excluded), req.Action))
	}
	result.Actioned = actionable
	result.Excluded = excluded

	result.enter(Logging)
	record, err := m.cases.Create(ctx, caselog.Entry{
		GuildID:          req.Guild.ID,
		Action:           p.action,
		Moderator:        req.Moderator,
		Users:            actionable,
		Reason:           p.reason,
		Extras:           p.extras,
		ContextMessageID: req.MessageID,
	})
	if err != nil {
		return m.abort(&result, err)
	}
	result.Case = record

	result.enter(Applying)
	result.Failed = m.apply(ctx, req, p, record, actionable)

	result.enter(Notifying)
	result.Summary = summary(req.Action, actionable, excluded, result.Failed)
	if !p.silent {
		if _, err := m.transport.SendMessage(ctx, req.ChannelID, strings.Join(result.Summary, "\n")); err != nil {
			m.logger.Warn("moderation summary failed", zap.String("guild_id", req.Guild.ID), zap.Error(err))
		}
	}

	result.enter(Done)
	return result, nil
}

func (m *Module) abort(result *Result, err error) (Result, error) {
	result.enter(Aborted)
	return *result, err
}

func (m *Module) validate(req Request, p *plan, users []platform.User) error {
	if p.reason == "" {
		return cmderr.ProvideReason()
	}
	if len(users) == 0 {
		return cmderr.MentionUsers(req.Action == ActionBan)
	}

	flags := req.Invocation.Flags
	p.silent = flags.Bool("silent")
	if req.Action == ActionKick {
		p.action = caselog.Kick
		return nil
	}

	p.action = caselog.Ban
	if flags.Bool("soft") {
		p.action = caselog.SoftBan
		p.days = 7
	}
	if flags.Has("days") {
		days, ok := flags.Int("days")
		if !ok || days < 1 || days > 7 {
			return cmderr.InvalidFlagType("days", "an integer bigger than 0 and lower than 8")
		}
		p.days = int(days)
		p.extras.Set(DaysExtra, strconv.FormatInt(days, 10))
	}
	return nil
}

// checkManageable checks every target that is still a guild member. Any
// target the actor cannot manage aborts the whole action.
func (m *Module) checkManageable(ctx context.Context, req Request, p plan, users []platform.User) error {
	var targets []perm.Context
	for _, user := range users {
		member, err := m.transport.Member(ctx, req.Guild.ID, user.ID)
		if errors.Is(err, platform.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch member %s: %w", user.ID, err)
		}
		target, err := perm.Build(ctx, m.transport, req.Guild, member, nil)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}
	for _, target := range targets {
		if !perm.Manageable(req.Actor, target) {
			return cmderr.CannotActionUser(actionName(p.action), len(targets) > 1)
		}
	}
	return nil
}

// partition splits users into those the action still applies to and those
// already in the end state: banned for bans, gone from the guild for kicks.
func (m *Module) partition(ctx context.Context, req Request, users []platform.User) (actionable, excluded []platform.User, err error) {
	for _, user := range users {
		done, err := m.alreadyApplied(ctx, req, user)
		if err != nil {
			return nil, nil, err
		}
		if done {
			excluded = append(excluded, user)
		} else {
			actionable = append(actionable, user)
		}
	}
	return actionable, excluded, nil
}

func (m *Module) alreadyApplied(ctx context.Context, req Request, user platform.User) (bool, error) {
	if req.Action == ActionKick {
		_, err := m.transport.Member(ctx, req.Guild.ID, user.ID)
		if errors.Is(err, platform.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("fetch member %s: %w", user.ID, err)
		}
		return false, nil
	}
	banned, err := m.transport.IsBanned(ctx, req.Guild.ID, user.ID)
	if err != nil {
		return false, fmt.Errorf("fetch ban %s: %w", user.ID, err)
	}
	return banned, nil
}

func (m *Module) apply(ctx context.Context, req Request, p plan, record storage.Case, users []platform.User) []Failure {
	notice := punishmentNotice(req.Guild, p.action, p.reason)
	var failed []Failure
	for _, user := range users {
		_ = m.notifier.Notify(ctx, user, notice)

		if err := m.applyOne(ctx, req, p, record.AuditLine, user); err != nil {
			failed = append(failed, Failure{User: user, Err: err})
			m.logger.Warn("moderation action failed",
				zap.String("guild_id", req.Guild.ID),
				zap.String("user_id", user.ID),
				zap.Int64("case_id", record.ID),
				zap.Error(err),
			)
			m.audit.Log(ctx, audit.LevelWarn, req.Guild.ID, user.ID, audit.EventActionFailed, fmt.Sprintf("case %d %s: %v", record.ID, p.action, err))
		}
	}
	return failed
}

func (m *Module) applyOne(ctx context.Context, req Request, p plan, auditLine string, user platform.User) error {
	if req.Action == ActionKick {
		return m.transport.Kick(ctx, req.Guild.ID, user.ID, auditLine)
	}
	if err := m.transport.Ban(ctx, req.Guild.ID, user.ID, auditLine, p.days); err != nil {
		return err
	}
	if p.action == caselog.SoftBan {
		return m.transport.Unban(ctx, req.Guild.ID, user.ID)
	}
	return nil
}

func actionName(action caselog.Action) string {
	if action == caselog.Kick {
		return "kick"
	}
	return "ban"
}

func excludedNote(count int, action Action) string {
	verb, state := "banned", "already banned"
	if action == ActionKick {
		verb, state = "kicked", "already left or been kicked"
	}
	if count > 1 {
		return fmt.Sprintf("%d Other users were attempted to be %s, however they were %s.", count, verb, state)
	}
	return fmt.Sprintf("%d Other user was attempted to be %s, however they were %s.", count, verb, state)
}

func summary(action Action, actioned, excluded []platform.User, failed []Failure) []string {
	verb, base, state := "Banned", "ban", "been banned"
	if action == ActionKick {
		verb, base, state = "Kicked", "kick", "left/been kicked"
	}

	var lines []string
	if len(actioned) == 1 {
		lines = append(lines, fmt.Sprintf("%s %s.", verb, actioned[0].Tag()))
	} else {
		lines = append(lines, fmt.Sprintf("%s %d members.", verb, len(actioned)))
	}
	if n := len(excluded); n > 0 {
		lines = append(lines, fmt.Sprintf("Couldn't %s %d other %s, as they had already %s.", base, n, plural(n, "user"), state))
	}
	if n := len(failed); n > 0 {
		lines = append(lines, fmt.Sprintf("Failed to %s %d %s, check my permissions.", base, n, plural(n, "user")))
	}
	return lines
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
