package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var ErrNotWebhookURL = errors.New("not a webhook url")

var webhookHosts = map[string]struct{}{
	"discord.com":           {},
	"discordapp.com":        {},
	"canary.discord.com":    {},
	"ptb.discord.com":       {},
	"canary.discordapp.com": {},
	"ptb.discordapp.com":    {},
}

// NormalizeHost lowercases host and converts it to its ASCII form.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// ParseWebhookURL extracts the id and token from an execute url such as
// https://discord.com/api/webhooks/<id>/<token>. A versioned api path is
// accepted; query and fragment are ignored.
func ParseWebhookURL(raw string) (id, token string, err error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	if _, ok := webhookHosts[NormalizeHost(parsed.Hostname())]; !ok {
		return "", "", ErrNotWebhookURL
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) > 0 && parts[0] == "api" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.HasPrefix(parts[0], "v") {
		parts = parts[1:]
	}
	if len(parts) != 3 || parts[0] != "webhooks" || parts[1] == "" || parts[2] == "" {
		return "", "", ErrNotWebhookURL
	}
	return parts[1], parts[2], nil
}
