package utils

import (
	"errors"
	"testing"
)

func TestParseWebhookURL(t *testing.T) {
	cases := []struct {
		raw   string
		id    string
		token string
	}{
		{"https://discord.com/api/webhooks/123/abc", "123", "abc"},
		{"https://Discord.com/api/v10/webhooks/123/abc?wait=true", "123", "abc"},
		{"canary.discordapp.com/api/webhooks/9/tok-en", "9", "tok-en"},
	}
	for _, tc := range cases {
		id, token, err := ParseWebhookURL(tc.raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.raw, err)
		}
		if id != tc.id || token != tc.token {
			t.Fatalf("%s: got %s/%s", tc.raw, id, token)
		}
	}
}

func TestParseWebhookURLRejects(t *testing.T) {
	for _, raw := range []string{
		"https://example.com/api/webhooks/1/a",
		"https://discord.com/api/channels/1/messages",
		"https://discord.com/api/webhooks/1",
	} {
		if _, _, err := ParseWebhookURL(raw); !errors.Is(err, ErrNotWebhookURL) {
			t.Fatalf("%s: expected ErrNotWebhookURL, got %v", raw, err)
		}
	}
}

func TestNormalizeHost(t *testing.T) {
	if host := NormalizeHost("Bücher.Example."); host != "xn--bcher-kva.example" {
		t.Fatalf("unexpected host: %s", host)
	}
}
