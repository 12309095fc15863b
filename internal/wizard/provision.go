package wizard

import (
	"context"
	"fmt"

	"guildwarden/internal/platform"

	"golang.org/x/sync/errgroup"
)

// LogChannels are created under the logs category, each with a webhook of
// the same name.
var LogChannels = []string{"audit-logs", "member-logs", "invite-logs"}

type Provisioned struct {
	CategoryID     string
	CasesID        string
	CommandsID     string
	ReportsID      string
	LogsCategoryID string
	LogChannelIDs  []string
	Webhooks       []platform.Webhook
}

// Provisioner lays out the staff server channels for a guild.
type Provisioner struct {
	transport platform.Transport
}

func NewProvisioner(transport platform.Transport) *Provisioner {
	return &Provisioner{transport: transport}
}

// Provision creates, in staffGuildID, a category named after the source
// guild holding cases/commands/reports and a "<id>-LOGS" category holding
// the log channels and their webhooks.
func (p *Provisioner) Provision(ctx context.Context, staffGuildID string, source platform.Guild) (Provisioned, error) {
	var out Provisioned

	category, err := p.transport.CreateChannel(ctx, staffGuildID, platform.ChannelCreate{Name: source.ID, Type: platform.ChannelCategory})
	if err != nil {
		return Provisioned{}, fmt.Errorf("create staff category: %w", err)
	}
	out.CategoryID = category.ID

	staff := []string{"cases", "commands", "reports"}
	staffIDs := make([]string, len(staff))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range staff {
		i, name := i, name
		g.Go(func() error {
			channel, err := p.transport.CreateChannel(gctx, staffGuildID, platform.ChannelCreate{Name: name, Type: platform.ChannelText, ParentID: category.ID})
			if err != nil {
				return fmt.Errorf("create %s channel: %w", name, err)
			}
			staffIDs[i] = channel.ID
			return nil
		})
	}
	g.Go(func() error {
		logs, err := p.transport.CreateChannel(gctx, staffGuildID, platform.ChannelCreate{Name: source.ID + "-LOGS", Type: platform.ChannelCategory})
		if err != nil {
			return fmt.Errorf("create logs category: %w", err)
		}
		out.LogsCategoryID = logs.ID
		return nil
	})
	if err := g.Wait(); err != nil {
		return Provisioned{}, err
	}
	out.CasesID, out.CommandsID, out.ReportsID = staffIDs[0], staffIDs[1], staffIDs[2]

	out.LogChannelIDs = make([]string, len(LogChannels))
	out.Webhooks = make([]platform.Webhook, len(LogChannels))
	g, gctx = errgroup.WithContext(ctx)
	for i, name := range LogChannels {
		i, name := i, name
		g.Go(func() error {
			channel, err := p.transport.CreateChannel(gctx, staffGuildID, platform.ChannelCreate{Name: name, Type: platform.ChannelText, ParentID: out.LogsCategoryID})
			if err != nil {
				return fmt.Errorf("create %s channel: %w", name, err)
			}
			hook, err := p.transport.CreateWebhook(gctx, channel.ID, name, "")
			if err != nil {
				return fmt.Errorf("create %s webhook: %w", name, err)
			}
			hook.Name = name
			out.LogChannelIDs[i] = channel.ID
			out.Webhooks[i] = hook
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Provisioned{}, err
	}
	return out, nil
}
